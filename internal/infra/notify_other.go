//go:build !linux

package infra

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// DesktopNotifier is only available on Linux.
type DesktopNotifier struct{}

// NewDesktopNotifier returns domain.ErrUnsupported.
func NewDesktopNotifier(*zap.Logger) (*DesktopNotifier, error) {
	return nil, domain.ErrUnsupported
}

// Notify does nothing.
func (d *DesktopNotifier) Notify(domain.Notification) {}

// Close does nothing.
func (d *DesktopNotifier) Close() error { return nil }
