//go:build linux

package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

// Desktop notification D-Bus constants
const (
	notifyService = "org.freedesktop.Notifications"
	notifyPath    = "/org/freedesktop/Notifications"
	notifyMethod  = "org.freedesktop.Notifications.Notify"
	notifyAppName = "pasteup"
)

// Desktop sends notices to org.freedesktop.Notifications over the
// session bus.
type Desktop struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

// newPlatformNotifier connects to the session bus.
func newPlatformNotifier() (Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	return &Desktop{conn: conn}, nil
}

// Notify implements Notifier. A timeout of zero or less leaves the
// expiry to the notification server.
func (d *Desktop) Notify(summary, body string, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	expire := int32(-1)
	if timeout > 0 {
		expire = int32(timeout / time.Millisecond)
	}

	hints := map[string]dbus.Variant{
		"transient": dbus.MakeVariant(true),
	}

	obj := d.conn.Object(notifyService, notifyPath)
	call := obj.Call(notifyMethod, 0,
		notifyAppName, uint32(0), "", summary, body, []string{}, hints, expire)
	if call.Err != nil {
		return fmt.Errorf("send notice: %w", call.Err)
	}
	return nil
}

// Close releases the bus connection.
func (d *Desktop) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}
