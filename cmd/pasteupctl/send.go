// The send command forwards a synthetic paste or drop event to the
// daemon, standing in for an editor: the named image files become the
// event's transfer items and the rewritten document comes back.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"pasteup/internal/ipc"
	"pasteup/pkg/uploader"
)

func cmdSend(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	kind := fs.String("kind", "paste", `event kind: "paste" or "drop"`)
	docPath := fs.String("doc", "", "document file receiving the embeds")
	line := fs.Int("line", 0, "cursor line")
	ch := fs.Int("ch", 0, "cursor column")
	write := fs.Bool("write", false, "write the rewritten document back to -doc")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: pasteupctl send [-kind paste|drop] [-doc file] [-line N] [-ch N] [-write] <image>...")
		os.Exit(1)
	}
	if *write && *docPath == "" {
		fmt.Fprintln(os.Stderr, "-write needs -doc")
		os.Exit(1)
	}

	docText := ""
	if *docPath != "" {
		data, err := os.ReadFile(*docPath)
		if err != nil {
			printError(fmt.Sprintf("Cannot read %s: %v", *docPath, err))
			os.Exit(1)
		}
		docText = string(data)
	}

	files := make([]ipc.FilePayload, 0, fs.NArg())
	for _, path := range fs.Args() {
		f, err := uploader.ReadFile(path)
		if err != nil {
			printError(fmt.Sprintf("Cannot read %s: %v", path, err))
			os.Exit(1)
		}
		files = append(files, ipc.FilePayload{
			Name:        f.Name,
			ContentType: f.ContentType,
			Data:        f.Data,
		})
	}

	req := &ipc.EditorEventRequest{
		Kind:          *kind,
		DocText:       docText,
		Cursor:        ipc.CursorPos{Line: *line, Ch: *ch},
		TransferTypes: []string{"Files"},
		Files:         files,
	}

	client := dialDaemon()
	defer client.Close()

	resp, err := client.SendEditorEvent(req)
	if err != nil {
		printError(fmt.Sprintf("Send failed: %v", err))
		os.Exit(1)
	}

	failed := 0
	for _, out := range resp.Outcomes {
		if out.Error != "" {
			fmt.Fprintf(os.Stderr, "  %s%s%s  %s\n", c.Red, out.Name, c.Reset, out.Error)
			failed++
			continue
		}
		fmt.Fprintf(os.Stderr, "  %s%s%s  %s\n", c.Green, out.Name, c.Reset, out.URL)
	}

	switch {
	case resp.Handled && resp.RunNativeHandler:
		fmt.Fprintf(os.Stderr, "Files passed back to the editor: %s\n", strings.Join(resp.ResidualFiles, ", "))
	case !resp.Handled && resp.RunNativeHandler:
		fmt.Fprintln(os.Stderr, "Event not eligible for upload; the editor's native handler applies.")
	case !resp.Handled:
		fmt.Fprintln(os.Stderr, "Event abandoned without a confirmation decision.")
	}

	if resp.Handled {
		if *write {
			if err := os.WriteFile(*docPath, []byte(resp.DocText), 0o644); err != nil {
				printError(fmt.Sprintf("Cannot write %s: %v", *docPath, err))
				os.Exit(1)
			}
			fmt.Fprintf(os.Stderr, "Updated %s\n", *docPath)
		} else {
			fmt.Print(resp.DocText)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
