// pasteupd - Image upload daemon for editor paste and drop events
//
// The daemon owns the upload providers, the confirmation flag, and the
// upload journal; editors talk to it over a Unix socket:
//
//	pasteupd init           Create the data directory and default config
//	pasteupd run            Run the daemon in the foreground
//	pasteupd upload <file>  Upload files directly, bypassing the socket
//	pasteupd status         Show configuration and daemon state
//	pasteupd version        Print the version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"pasteup/internal/config"
	"pasteup/internal/confirm"
	"pasteup/internal/event"
	"pasteup/internal/history"
	"pasteup/internal/ipc"
	"pasteup/internal/providers"
	"pasteup/internal/security"
	"pasteup/pkg/uploader"
)

// Version is the pasteupd release version.
const Version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	switch cmd {
	case "init":
		cmdInit()
	case "run":
		cmdRun()
	case "upload":
		cmdUpload()
	case "status":
		cmdStatus()
	case "version", "-v", "--version":
		fmt.Println("pasteupd " + Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`pasteupd - Image upload daemon for editor paste and drop events

USAGE:
    pasteupd <command> [options]

COMMANDS:
    init                Create the data directory and a default config
    run                 Run the daemon in the foreground
    upload <file>...    Upload files with the configured provider
    status              Show configuration and daemon state
    version             Print the version
    help                Show this help message

SETUP:
    1. pasteupd init                                # One-time setup
    2. pasteupctl settings set strategy imgur       # Pick a provider
    3. pasteupctl settings set client_id <id>       # Add its credential
    4. pasteupd run                                 # Start the daemon

Editors connect over the daemon socket and forward paste and drop
events; eligible image files are uploaded and replaced with markdown
embeds, everything else passes through to the editor untouched.

See the pasteupctl command for talking to a running daemon.`)
}

// configPathArg resolves the -config flag, falling back to the
// per-user default location.
func configPathArg(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return config.ConfigPath()
}

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(os.Args[2:])

	path := configPathArg(*configPath)

	cfg, created, err := config.LoadOrCreate(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directories: %v\n", err)
		os.Exit(1)
	}

	// Generate the machine key now so the first sealed credential does
	// not race daemon startup.
	if _, err := security.LoadMachineKey(config.MachineKeyPath()); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating machine key: %v\n", err)
		os.Exit(1)
	}

	if created {
		fmt.Printf("Created %s\n", path)
	} else {
		fmt.Printf("Config already exists at %s\n", path)
	}

	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Start the daemon with 'pasteupd run'")
	fmt.Println("  2. Pick a provider with 'pasteupctl settings set strategy imgur'")
	fmt.Println("  3. Add its credential with 'pasteupctl settings set client_id <id>'")
}

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	logLevel := fs.String("log-level", "", "Override the configured log level")
	fs.Parse(os.Args[2:])

	d, err := newDaemon(configPathArg(*configPath), *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := d.run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdUpload() {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	askConfirm := fs.Bool("confirm", false, "Ask before uploading even when the config does not require it")
	fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pasteupd upload [-confirm] <file>...")
		os.Exit(1)
	}

	cfg, err := config.Load(configPathArg(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	up, err := providers.FromConfig(cfg)
	if err != nil {
		if errors.Is(err, uploader.ErrNotConfigured) {
			fmt.Fprintln(os.Stderr, "No uploader is configured.")
			fmt.Fprintln(os.Stderr, "Pick one with: pasteupctl settings set strategy imgur")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}

	files := make([]uploader.File, 0, fs.NArg())
	for _, path := range fs.Args() {
		f, err := uploader.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
			os.Exit(1)
		}
		files = append(files, f)
	}

	if *askConfirm || cfg.ConfirmBeforeUpload() {
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = f.Name
		}

		prompter := confirm.NewTerminalPrompter(os.Stdin, os.Stderr)
		resp, err := prompter.Prompt(context.Background(), confirm.Request{
			EventID:   "cli",
			Kind:      event.KindPaste,
			FileNames: names,
			Provider:  up.DisplayName(),
		})
		if err != nil || resp.Decision != confirm.Approved {
			fmt.Fprintln(os.Stderr, "Upload cancelled.")
			os.Exit(1)
		}
	}

	timeout := 60 * time.Second
	if cfg.UploaderSettings().TimeoutSec > 0 {
		timeout = time.Duration(cfg.UploaderSettings().TimeoutSec) * time.Second
	}

	failed := 0
	for _, f := range files {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		url, err := up.Upload(ctx, f)
		cancel()

		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", f.Name, err)
			failed++
			continue
		}
		fmt.Println(url)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func cmdStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(os.Args[2:])

	path := configPathArg(*configPath)

	fmt.Println("=== pasteupd Status ===")
	fmt.Println()

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Load falls back to defaults when the file is missing.
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		fmt.Println("No config file yet; showing defaults. Run 'pasteupd init' to create one.")
		fmt.Println()
	}

	fmt.Printf("Config file: %s\n", path)
	fmt.Printf("Data directory: %s\n", config.PasteupDir())

	settings := cfg.UploaderSettings()
	if settings.Strategy == "" || settings.Strategy == "none" {
		fmt.Println("Provider: none")
	} else if up, err := providers.FromConfig(cfg); err != nil {
		fmt.Printf("Provider: %s (unusable: %v)\n", settings.Strategy, err)
	} else {
		fmt.Printf("Provider: %s\n", up.DisplayName())
	}

	if cfg.ConfirmBeforeUpload() {
		fmt.Println("Confirmation: ask before every upload")
	} else {
		fmt.Println("Confirmation: off")
	}

	hist := cfg.HistorySettings()
	if hist.Enabled {
		fmt.Printf("History: %s\n", hist.Path)
		if store, err := history.Open(hist.Path); err == nil {
			if stats, err := store.Stats(); err == nil {
				fmt.Printf("Uploads recorded: %d (%d failed)\n", stats.Total, stats.Failed)
			}
			store.Close()
		}
	} else {
		fmt.Println("History: disabled")
	}

	fmt.Printf("Socket: %s\n", socketPath(cfg))
	fmt.Println()
	fmt.Print("Daemon: ")

	clientCfg := ipc.DefaultClientConfig()
	clientCfg.SocketPath = socketPath(cfg)
	clientCfg.ClientName = "pasteupd-status"
	clientCfg.ClientVersion = Version
	clientCfg.ConnectTimeout = 2 * time.Second

	client := ipc.NewClient(clientCfg)
	if err := client.Connect(); err != nil {
		fmt.Println("not running")
		return
	}
	defer client.Close()

	st, err := client.Status()
	if err != nil {
		fmt.Printf("unreachable (%v)\n", err)
		return
	}

	fmt.Printf("RUNNING (version %s, up %s)\n", st.Version, st.Uptime.Round(time.Second))
	if len(st.Editors) > 0 {
		fmt.Printf("Registered editors: %s\n", strings.Join(st.Editors, ", "))
	}
}

// socketPath returns the configured socket, falling back to the
// per-user runtime default.
func socketPath(cfg *config.Config) string {
	if cfg.IPC.SocketPath != "" {
		return cfg.IPC.SocketPath
	}
	return config.DefaultSocketPath()
}
