//go:build linux

package infra

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jezek/xgb/xproto"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// X11Focus implements domain.FocusSource by watching _NET_ACTIVE_WINDOW on
// the root window. It owns a dedicated X connection for its event loop.
type X11Focus struct {
	logger *zap.Logger

	mu   sync.Mutex
	x    *x11Conn
	done chan struct{}
}

// NewX11Focus creates a focus source; the connection is opened on Subscribe.
func NewX11Focus(logger *zap.Logger) *X11Focus {
	return &X11Focus{logger: logger}
}

// Subscribe starts listening for active-window changes and reports the
// current active window once.
func (f *X11Focus) Subscribe(handler func(domain.WindowHandle)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done != nil {
		return errors.New("focus listener already running")
	}

	x, err := dialX11()
	if err != nil {
		return err
	}

	err = xproto.ChangeWindowAttributesChecked(x.conn, x.root,
		xproto.CwEventMask, []uint32{xproto.EventMaskPropertyChange}).Check()
	if err != nil {
		x.Close()
		return fmt.Errorf("select PropertyNotify on root: %w", err)
	}

	f.x = x
	f.done = make(chan struct{})
	go f.loop(x, handler, f.done)

	if w := x.activeWindow(); w != 0 {
		handler(domain.WindowHandle(w))
	}
	return nil
}

func (f *X11Focus) loop(x *x11Conn, handler func(domain.WindowHandle), done chan<- struct{}) {
	defer close(done)

	active := x.atoms["_NET_ACTIVE_WINDOW"]
	var changes activeWindowFilter
	for {
		ev, err := x.conn.WaitForEvent()
		if ev == nil && err == nil {
			return // connection closed
		}
		if err != nil {
			f.logger.Debug("X event error", zap.Error(err))
			continue
		}

		pn, ok := ev.(xproto.PropertyNotifyEvent)
		if !ok || pn.Atom != active {
			continue
		}
		if w, ok := changes.next(x.activeWindow()); ok {
			handler(domain.WindowHandle(w))
		}
	}
}

// activeWindowFilter drops repeated PropertyNotify events for the same
// window. _NET_ACTIVE_WINDOW set to None is never reported but forgets the
// last window, so returning to it from the bare root is seen again.
type activeWindowFilter struct {
	last xproto.Window
}

func (f *activeWindowFilter) next(w xproto.Window) (xproto.Window, bool) {
	if w == 0 {
		f.last = 0
		return 0, false
	}
	if w == f.last {
		return 0, false
	}
	f.last = w
	return w, true
}

// Close stops the event loop.
func (f *X11Focus) Close() error {
	f.mu.Lock()
	x, done := f.x, f.done
	f.x, f.done = nil, nil
	f.mu.Unlock()

	if x == nil {
		return nil
	}
	x.Close()
	<-done
	return nil
}

var _ domain.FocusSource = (*X11Focus)(nil)
