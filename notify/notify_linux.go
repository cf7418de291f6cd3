//go:build linux

package notify

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	busName   = "org.freedesktop.Notifications"
	busPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	busIfaceN = busName + ".Notify"
	busIfaceC = busName + ".CloseNotification"
)

// busObject is the slice of dbus.BusObject the notifier uses.
type busObject interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

type dbusNotifier struct {
	appName string
	conn    *dbus.Conn
	obj     busObject

	mu  sync.Mutex
	ids map[int]uint32 // our id -> server id
}

// New connects to the session bus and returns a freedesktop notifier.
func New(appName string) (Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &dbusNotifier{
		appName: appName,
		conn:    conn,
		obj:     conn.Object(busName, busPath),
		ids:     make(map[int]uint32),
	}, nil
}

func (d *dbusNotifier) Post(n Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(1)),
	}
	expire := int32(-1)
	if n.Persistent {
		hints["resident"] = dbus.MakeVariant(true)
		expire = 0
	}

	call := d.obj.Call(busIfaceN, 0,
		d.appName, d.ids[n.ID], "", n.Title, n.Message,
		[]string{}, hints, expire)
	if call.Err != nil {
		return fmt.Errorf("notify: %w", call.Err)
	}
	var serverID uint32
	if err := call.Store(&serverID); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	d.ids[n.ID] = serverID
	return nil
}

func (d *dbusNotifier) CancelAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for id, serverID := range d.ids {
		if call := d.obj.Call(busIfaceC, 0, serverID); call.Err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close notification %d: %w", id, call.Err)
		}
		delete(d.ids, id)
	}
	return firstErr
}

func (d *dbusNotifier) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}
