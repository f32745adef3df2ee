//go:build linux

package infra

import (
	"errors"
	"os"

	"go.uber.org/zap"
)

// NewPlatform returns the X11 adapters. Wayland-only sessions are not supported.
func NewPlatform(logger *zap.Logger) (*Platform, error) {
	if os.Getenv("DISPLAY") == "" {
		return nil, errors.New("no X11 display (DISPLAY is unset)")
	}

	x, err := dialX11()
	if err != nil {
		return nil, err
	}

	display, err := NewX11Display(x)
	if err != nil {
		x.Close()
		return nil, err
	}
	windowsMgr := NewX11Windows(x)
	if !windowsMgr.barriers {
		logger.Warn("XFixes pointer barriers unavailable, cursor lock disabled")
	}

	return &Platform{
		Name:    "x11",
		Display: display,
		Windows: windowsMgr,
		Focus:   NewX11Focus(logger),
		closers: []func() error{x.Close, windowsMgr.ReleaseCursor},
	}, nil
}
