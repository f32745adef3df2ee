//go:build windows

package infra

import (
	"go.uber.org/zap"
)

// NewPlatform returns the Win32 adapters.
func NewPlatform(logger *zap.Logger) (*Platform, error) {
	windowsMgr := NewWin32Windows()
	return &Platform{
		Name:    "win32",
		Display: NewWin32Display(),
		Windows: windowsMgr,
		Focus:   NewWin32Focus(logger),
		closers: []func() error{windowsMgr.ReleaseCursor},
	}, nil
}
