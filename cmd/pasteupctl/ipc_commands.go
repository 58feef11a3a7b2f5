// Commands that talk to a running pasteupd over its Unix socket.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"pasteup/internal/ipc"
	"pasteup/pkg/uploader"
)

func cmdStatus() {
	client := dialDaemon()
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		printError(fmt.Sprintf("Failed to get status: %v", err))
		os.Exit(1)
	}

	printSection("DAEMON")
	fmt.Printf("  %sVersion%s   %s%s%s\n", c.Dim, c.Reset, c.Cyan, status.Version, c.Reset)
	fmt.Printf("  %sStarted%s   %s\n", c.Dim, c.Reset, status.StartedAt.Format(time.RFC3339))
	fmt.Printf("  %sUptime%s    %s\n", c.Dim, c.Reset, status.Uptime.Round(time.Second))

	printSection("UPLOADS")
	if status.Provider == "" {
		fmt.Printf("  %sProvider%s  %s%snone%s\n", c.Dim, c.Reset, c.Bold, c.Yellow, c.Reset)
	} else {
		fmt.Printf("  %sProvider%s  %s%s%s%s\n", c.Dim, c.Reset, c.Bold, c.Green, status.Provider, c.Reset)
	}
	if status.ConfirmBeforeUpload {
		fmt.Printf("  %sConfirm%s   ask before every upload\n", c.Dim, c.Reset)
	} else {
		fmt.Printf("  %sConfirm%s   off\n", c.Dim, c.Reset)
	}

	if status.History != nil {
		printSection("HISTORY")
		fmt.Printf("  %sUploads%s   %d (%d failed)\n", c.Dim, c.Reset, status.History.Total, status.History.Failed)
		fmt.Printf("  %sData%s      %s\n", c.Dim, c.Reset, formatBytes(status.History.Bytes))
	}

	if len(status.Editors) > 0 {
		printSection("EDITORS")
		for _, id := range status.Editors {
			fmt.Printf("  %s%s%s\n", c.Cyan, id, c.Reset)
		}
	}

	fmt.Println()
}

func cmdPing() {
	client := dialDaemon()
	defer client.Close()

	start := time.Now()
	if err := client.Ping(); err != nil {
		printError(fmt.Sprintf("Ping failed: %v", err))
		os.Exit(1)
	}

	fmt.Printf("  %sDaemon%s  %s%sRUNNING%s (latency: %s)\n",
		c.Dim, c.Reset, c.Bold, c.Green, c.Reset,
		time.Since(start).Round(time.Microsecond))
}

func cmdSettings(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: pasteupctl settings <get|set|reload> [args]")
		os.Exit(1)
	}

	client := dialDaemon()
	defer client.Close()

	switch args[0] {
	case "get":
		settings, err := client.Settings(args[1:]...)
		if err != nil {
			printError(fmt.Sprintf("Failed to get settings: %v", err))
			os.Exit(1)
		}

		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			fmt.Printf("  %s%-22s%s %v\n", c.Dim, k, c.Reset, settings[k])
		}

	case "set":
		pairs := args[1:]
		if len(pairs) == 0 || len(pairs)%2 != 0 {
			fmt.Fprintln(os.Stderr, "Usage: pasteupctl settings set <key> <value> [<key> <value>...]")
			os.Exit(1)
		}

		settings := make(map[string]any, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			settings[pairs[i]] = parseSettingValue(pairs[i], pairs[i+1])
		}

		if err := client.SetSettings(settings); err != nil {
			printError(err.Error())
			os.Exit(1)
		}
		fmt.Println("Settings updated.")

	case "reload":
		if err := client.ReloadSettings(); err != nil {
			printError(err.Error())
			os.Exit(1)
		}
		fmt.Println("Config reloaded.")

	default:
		fmt.Fprintf(os.Stderr, "Unknown settings action: %s\n", args[0])
		os.Exit(1)
	}
}

// parseSettingValue keeps everything a string except the boolean flags;
// the daemon rejects wrongly typed values anyway, this just saves a
// round trip for the obvious case.
func parseSettingValue(key, value string) any {
	switch key {
	case "confirm_before_upload", "history_enabled", "notify_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Value for %s must be true or false\n", key)
			os.Exit(1)
		}
		return b
	default:
		return value
	}
}

func cmdHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 20, "number of records to show")
	eventID := fs.String("event", "", "only records for this event")
	fs.Parse(args)

	client := dialDaemon()
	defer client.Close()

	resp, err := client.History(*eventID, *limit)
	if err != nil {
		printError(fmt.Sprintf("Failed to fetch history: %v", err))
		os.Exit(1)
	}

	if len(resp.Records) == 0 {
		fmt.Println("No uploads recorded.")
		return
	}

	for _, rec := range resp.Records {
		when := rec.StartedAt.Local().Format("2006-01-02 15:04:05")
		if rec.Error != "" {
			fmt.Printf("  %s%s%s  %-24s %s%sFAILED%s %s\n",
				c.Dim, when, c.Reset, rec.FileName, c.Bold, c.Red, c.Reset, rec.Error)
			continue
		}
		fmt.Printf("  %s%s%s  %-24s %s%s%s\n",
			c.Dim, when, c.Reset, rec.FileName, c.Green, rec.URL, c.Reset)
	}

	if resp.Stats != nil {
		fmt.Printf("\n  %d uploads, %d failed, %s transferred\n",
			resp.Stats.Total, resp.Stats.Failed, formatBytes(resp.Stats.Bytes))
	}
}

func cmdUpload(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: pasteupctl upload <file>...")
		os.Exit(1)
	}

	payload := make([]ipc.FilePayload, 0, len(args))
	for _, path := range args {
		f, err := uploader.ReadFile(path)
		if err != nil {
			printError(fmt.Sprintf("Cannot read %s: %v", path, err))
			os.Exit(1)
		}
		payload = append(payload, ipc.FilePayload{
			Name:        f.Name,
			ContentType: f.ContentType,
			Data:        f.Data,
		})
	}

	client := dialDaemon()
	defer client.Close()

	resp, err := client.Upload(payload)
	if err != nil {
		printError(fmt.Sprintf("Upload failed: %v", err))
		os.Exit(1)
	}

	failed := 0
	for _, out := range resp.Outcomes {
		if out.Error != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", out.Name, out.Error)
			failed++
			continue
		}
		fmt.Println(out.URL)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func cmdWatch() {
	client := dialDaemon()
	defer client.Close()

	if err := client.Subscribe(); err != nil {
		printError(fmt.Sprintf("Failed to subscribe: %v", err))
		os.Exit(1)
	}

	fmt.Println("Watching daemon events. Press Ctrl+C to stop.")
	fmt.Println()

	for b := range client.Broadcasts() {
		fmt.Printf("[%s] %s%s%s", b.Timestamp.Format("15:04:05"), c.Bold, eventTypeName(b.Type), c.Reset)
		if b.EventID != "" {
			fmt.Printf(" %s%s%s", c.Dim, b.EventID, c.Reset)
		}
		fmt.Println()

		if len(b.Data) > 0 {
			data, _ := json.MarshalIndent(b.Data, "  ", "  ")
			fmt.Printf("  %s\n", data)
		}
	}
}

func cmdStop() {
	client := dialDaemon()
	defer client.Close()

	if err := client.Shutdown(); err != nil {
		printError(fmt.Sprintf("Shutdown failed: %v", err))
		os.Exit(1)
	}
	fmt.Println("Daemon stopping.")
}

// eventTypeName returns a readable broadcast type name.
func eventTypeName(et ipc.EventType) string {
	switch et {
	case ipc.EventUploadStarted:
		return "UploadStarted"
	case ipc.EventUploadSucceeded:
		return "UploadSucceeded"
	case ipc.EventUploadFailed:
		return "UploadFailed"
	case ipc.EventSettingsChanged:
		return "SettingsChanged"
	case ipc.EventDaemonShutdown:
		return "DaemonShutdown"
	default:
		return fmt.Sprintf("Unknown(%d)", et)
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
