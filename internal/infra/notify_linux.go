//go:build linux

package infra

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

const (
	notificationsDest   = "org.freedesktop.Notifications"
	notificationsPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsMethod = notificationsDest + ".Notify"

	desktopExpireMs = 4000
)

// DesktopNotifier shows notifications through the freedesktop notification
// service on the session bus.
type DesktopNotifier struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	logger *zap.Logger
}

// NewDesktopNotifier connects to the session bus.
func NewDesktopNotifier(logger *zap.Logger) (*DesktopNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &DesktopNotifier{
		conn:   conn,
		obj:    conn.Object(notificationsDest, notificationsPath),
		logger: logger,
	}, nil
}

// Notify posts n without waiting for the notification daemon's reply.
func (d *DesktopNotifier) Notify(n domain.Notification) {
	summary, body := desktopMessage(n)
	icon := "video-display"
	if n.Status == domain.StatusError {
		icon = "dialog-error"
	}

	call := d.obj.Call(notificationsMethod, dbus.FlagNoReplyExpected,
		AppName,                   // app_name
		uint32(0),                 // replaces_id
		icon,                      // app_icon
		summary,                   // summary
		body,                      // body
		[]string{},                // actions
		map[string]dbus.Variant{}, // hints
		int32(desktopExpireMs),    // expire_timeout
	)
	if call.Err != nil {
		d.logger.Debug("desktop notification failed", zap.Error(call.Err))
	}
}

// Close releases the bus connection.
func (d *DesktopNotifier) Close() error {
	return d.conn.Close()
}

var _ domain.Notifier = (*DesktopNotifier)(nil)
