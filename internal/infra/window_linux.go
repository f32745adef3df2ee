//go:build linux

package infra

import (
	"fmt"
	"sync"

	"github.com/jezek/xgb/xfixes"
	"github.com/jezek/xgb/xproto"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// X11Windows implements domain.WindowManager. Cursor confinement uses four
// XFixes pointer barriers around the region, so input still reaches the
// focused client.
type X11Windows struct {
	x        *x11Conn
	barriers bool

	mu      sync.Mutex
	active  []xfixes.Barrier
	clipped domain.Rect
}

// NewX11Windows initializes XFixes 5 for pointer barriers. Without it,
// ClipCursor returns domain.ErrUnsupported.
func NewX11Windows(x *x11Conn) *X11Windows {
	w := &X11Windows{x: x}
	if err := xfixes.Init(x.conn); err == nil {
		if v, err := xfixes.QueryVersion(x.conn, 5, 0).Reply(); err == nil && v.MajorVersion >= 5 {
			w.barriers = true
		}
	}
	return w
}

// WindowPID reads _NET_WM_PID.
func (w *X11Windows) WindowPID(hwnd domain.WindowHandle) (int32, error) {
	pid := w.x.windowPID(xproto.Window(hwnd))
	if pid == 0 {
		return 0, fmt.Errorf("window %#x has no _NET_WM_PID", uintptr(hwnd))
	}
	return int32(pid), nil
}

// WindowRect returns the window's area in root coordinates. Unmapped
// windows are unavailable.
func (w *X11Windows) WindowRect(hwnd domain.WindowHandle) (domain.Rect, error) {
	win := xproto.Window(hwnd)

	attrs, err := xproto.GetWindowAttributes(w.x.conn, win).Reply()
	if err != nil {
		return domain.Rect{}, fmt.Errorf("%w: %v", domain.ErrWindowUnavailable, err)
	}
	if attrs.MapState != xproto.MapStateViewable {
		return domain.Rect{}, fmt.Errorf("%w: window %#x not viewable", domain.ErrWindowUnavailable, uintptr(hwnd))
	}

	geom, err := xproto.GetGeometry(w.x.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return domain.Rect{}, fmt.Errorf("%w: %v", domain.ErrWindowUnavailable, err)
	}
	origin, err := xproto.TranslateCoordinates(w.x.conn, win, w.x.root, 0, 0).Reply()
	if err != nil {
		return domain.Rect{}, fmt.Errorf("%w: %v", domain.ErrWindowUnavailable, err)
	}

	left, top := int(origin.DstX), int(origin.DstY)
	return domain.Rect{
		Left:   left,
		Top:    top,
		Right:  left + int(geom.Width),
		Bottom: top + int(geom.Height),
	}, nil
}

// ClipCursor fences the pointer into rect. Re-clipping the same region is a no-op.
func (w *X11Windows) ClipCursor(rect domain.Rect) error {
	if !w.barriers {
		return domain.ErrUnsupported
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.active) > 0 && w.clipped == rect {
		return nil
	}
	w.deleteBarriersLocked()
	w.warpInside(rect)

	l, t, r, b := u16(rect.Left), u16(rect.Top), u16(rect.Right), u16(rect.Bottom)
	lines := [][4]uint16{
		{l, t, l, b}, // left
		{r, t, r, b}, // right
		{l, t, r, t}, // top
		{l, b, r, b}, // bottom
	}
	for _, line := range lines {
		id, err := xfixes.NewBarrierId(w.x.conn)
		if err != nil {
			w.deleteBarriersLocked()
			return fmt.Errorf("allocate barrier: %w", err)
		}
		err = xfixes.CreatePointerBarrierChecked(w.x.conn, id, w.x.root,
			line[0], line[1], line[2], line[3], 0, 0, nil).Check()
		if err != nil {
			w.deleteBarriersLocked()
			return fmt.Errorf("create pointer barrier: %w", err)
		}
		w.active = append(w.active, id)
	}
	w.clipped = rect
	return nil
}

// warpInside moves the pointer into rect if it is outside, otherwise the
// barriers would fence it out.
func (w *X11Windows) warpInside(rect domain.Rect) {
	ptr, err := xproto.QueryPointer(w.x.conn, w.x.root).Reply()
	if err != nil {
		return
	}
	x, y := int(ptr.RootX), int(ptr.RootY)
	cx := min(max(x, rect.Left), max(rect.Right-1, rect.Left))
	cy := min(max(y, rect.Top), max(rect.Bottom-1, rect.Top))
	if cx == x && cy == y {
		return
	}
	xproto.WarpPointer(w.x.conn, 0, w.x.root, 0, 0, 0, 0, int16(cx), int16(cy))
}

// ReleaseCursor removes the barriers.
func (w *X11Windows) ReleaseCursor() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deleteBarriersLocked()
	return nil
}

func (w *X11Windows) deleteBarriersLocked() {
	for _, id := range w.active {
		xfixes.DeletePointerBarrier(w.x.conn, id)
	}
	w.active = nil
	w.clipped = domain.Rect{}
}

var _ domain.WindowManager = (*X11Windows)(nil)
