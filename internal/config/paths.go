package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// PasteupDir returns the base data directory, honoring the
// PASTEUP_DATA_DIR override used by tests and sandboxed installs.
func PasteupDir() string {
	if dir := os.Getenv("PASTEUP_DATA_DIR"); dir != "" {
		return dir
	}
	return PlatformDataDir()
}

// MachineKeyPath returns the path of the per-machine credential
// sealing key.
func MachineKeyPath() string {
	return filepath.Join(PasteupDir(), "machine.key")
}

// PlatformDataDir returns the platform-specific data directory.
//
//   - macOS:   ~/Library/Application Support/pasteup/
//   - Linux:   $XDG_DATA_HOME/pasteup/ or ~/.local/share/pasteup/
//   - Windows: %APPDATA%\pasteup\
//
// Falls back to ~/.pasteup when platform detection fails.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return fallbackDataDir()
		}
		return filepath.Join(home, "Library", "Application Support", "pasteup")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "pasteup")
		}
		return fallbackDataDir()
	case "linux":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "pasteup")
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return fallbackDataDir()
		}
		return filepath.Join(home, ".local", "share", "pasteup")
	default:
		return fallbackDataDir()
	}
}

// PlatformLogDir returns the platform-specific log directory.
//
//   - macOS:   ~/Library/Logs/pasteup/
//   - Linux:   $XDG_STATE_HOME/pasteup/ or ~/.local/state/pasteup/
//   - Windows: %LOCALAPPDATA%\pasteup\logs\
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(fallbackDataDir(), "logs")
		}
		return filepath.Join(home, "Library", "Logs", "pasteup")
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "pasteup", "logs")
		}
		return filepath.Join(fallbackDataDir(), "logs")
	default:
		if state := os.Getenv("XDG_STATE_HOME"); state != "" {
			return filepath.Join(state, "pasteup")
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(fallbackDataDir(), "logs")
		}
		return filepath.Join(home, ".local", "state", "pasteup")
	}
}

// PlatformRuntimeDir returns the directory for sockets.
//
//   - macOS:   ~/Library/Application Support/pasteup/
//   - Linux:   $XDG_RUNTIME_DIR/pasteup/ or /tmp/pasteup-$UID/
//   - Windows: "" (named pipes carry their own namespace)
func PlatformRuntimeDir() string {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
			return filepath.Join(xdg, "pasteup")
		}
		return filepath.Join(os.TempDir(), fmt.Sprintf("pasteup-%d", os.Getuid()))
	case "windows":
		return ""
	default:
		return PlatformDataDir()
	}
}

// DefaultSocketPath returns the daemon socket location.
func DefaultSocketPath() string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\pasteupd`
	}
	if dir := os.Getenv("PASTEUP_DATA_DIR"); dir != "" {
		return filepath.Join(dir, "pasteupd.sock")
	}
	return filepath.Join(PlatformRuntimeDir(), "pasteupd.sock")
}

func fallbackDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pasteup"
	}
	return filepath.Join(home, ".pasteup")
}
