//go:build !linux

package notify

import "errors"

// newPlatformNotifier reports that no desktop bus is available, which
// routes notices to the structured log.
func newPlatformNotifier() (Notifier, error) {
	return nil, errors.New("no desktop notification backend on this platform")
}
