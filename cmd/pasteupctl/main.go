// pasteupctl is the control CLI for pasteupd.
package main

import (
	"flag"
	"fmt"
	"os"

	"pasteup/internal/config"
	"pasteup/internal/ipc"
)

// Version is the pasteupctl release version.
const Version = "0.3.0"

var (
	configPath = flag.String("config", "", "path to config file")
	socketPath = flag.String("socket", "", "path to the daemon socket")
)

// Terminal escapes used across command output.
var c = struct {
	Reset, Bold, Dim, Red, Green, Yellow, Blue, Cyan string
}{
	Reset:  "\033[0m",
	Bold:   "\033[1m",
	Dim:    "\033[2m",
	Red:    "\033[31m",
	Green:  "\033[32m",
	Yellow: "\033[33m",
	Blue:   "\033[34m",
	Cyan:   "\033[36m",
}

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)

	switch cmd {
	case "status":
		cmdStatus()
	case "ping":
		cmdPing()
	case "settings":
		cmdSettings(flag.Args()[1:])
	case "history":
		cmdHistory(flag.Args()[1:])
	case "send":
		cmdSend(flag.Args()[1:])
	case "upload":
		cmdUpload(flag.Args()[1:])
	case "watch":
		cmdWatch()
	case "stop":
		cmdStop()
	case "version":
		fmt.Println("pasteupctl " + Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `pasteupctl - Control utility for pasteupd

Usage: pasteupctl [options] <command> [args]

Commands:
  status                     Show daemon status
  ping                       Measure daemon round-trip latency
  settings get [key...]      Print settings (all, or the named keys)
  settings set <key> <value> Change a setting (repeatable key/value pairs)
  settings reload            Re-read the config file on the daemon side
  history [-n N] [-event ID] Print the upload journal
  send [options] <image>...  Forward a paste or drop event to the daemon
  upload <file>...           Upload files through the daemon
  watch                      Print daemon events as they happen
  stop                       Ask the daemon to shut down
  help                       Show this help message

Options:
  -config <path>  Path to config file (default: per-user location)
  -socket <path>  Daemon socket (default: from config)`)
}

func printError(msg string) {
	fmt.Fprintf(os.Stderr, "%s%sError:%s %s\n", c.Bold, c.Red, c.Reset, msg)
}

func printSection(title string) {
	fmt.Printf("\n%s%s%s%s\n\n", c.Bold, c.Blue, title, c.Reset)
}

// clientConfig resolves the socket from flags, then the local config
// file, then the per-user default.
func clientConfig() ipc.ClientConfig {
	cfg := ipc.DefaultClientConfig()
	cfg.ClientName = "pasteupctl"
	cfg.ClientVersion = Version

	if *socketPath != "" {
		cfg.SocketPath = *socketPath
		return cfg
	}

	if local, err := config.Load(*configPath); err == nil && local.IPC.SocketPath != "" {
		cfg.SocketPath = local.IPC.SocketPath
	}
	return cfg
}

// dialDaemon connects or exits with a hint.
func dialDaemon() *ipc.Client {
	client := ipc.NewClient(clientConfig())
	if err := client.Connect(); err != nil {
		printError(fmt.Sprintf("Cannot connect to daemon: %v", err))
		fmt.Fprintf(os.Stderr, "  %sTip%s: start it with: pasteupd run\n", c.Dim, c.Reset)
		os.Exit(1)
	}
	return client
}
