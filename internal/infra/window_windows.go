//go:build windows

package infra

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// Win32Windows implements domain.WindowManager with user32 window queries
// and ClipCursor.
type Win32Windows struct{}

// NewWin32Windows creates the window manager.
func NewWin32Windows() *Win32Windows {
	return &Win32Windows{}
}

// WindowPID returns the owning process of hwnd.
func (w *Win32Windows) WindowPID(hwnd domain.WindowHandle) (int32, error) {
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(windows.HWND(hwnd), &pid); err != nil {
		return 0, fmt.Errorf("GetWindowThreadProcessId: %w", err)
	}
	return int32(pid), nil
}

// WindowRect returns the window rectangle in screen coordinates. Closed and
// minimized windows are unavailable.
func (w *Win32Windows) WindowRect(hwnd domain.WindowHandle) (domain.Rect, error) {
	h := windows.HWND(hwnd)
	if !windows.IsWindow(h) {
		return domain.Rect{}, fmt.Errorf("%w: window %#x closed", domain.ErrWindowUnavailable, uintptr(hwnd))
	}
	if iconic, _, _ := procIsIconic.Call(uintptr(h)); iconic != 0 {
		return domain.Rect{}, fmt.Errorf("%w: window %#x minimized", domain.ErrWindowUnavailable, uintptr(hwnd))
	}

	var r windows.Rect
	ok, _, err := procGetWindowRect.Call(uintptr(h), uintptr(unsafe.Pointer(&r)))
	if ok == 0 {
		return domain.Rect{}, fmt.Errorf("%w: GetWindowRect: %v", domain.ErrWindowUnavailable, err)
	}
	return domain.Rect{Left: int(r.Left), Top: int(r.Top), Right: int(r.Right), Bottom: int(r.Bottom)}, nil
}

// ClipCursor confines the pointer to rect.
func (w *Win32Windows) ClipCursor(rect domain.Rect) error {
	r := windows.Rect{
		Left:   int32(rect.Left),
		Top:    int32(rect.Top),
		Right:  int32(rect.Right),
		Bottom: int32(rect.Bottom),
	}
	if ok, _, err := procClipCursor.Call(uintptr(unsafe.Pointer(&r))); ok == 0 {
		return fmt.Errorf("ClipCursor: %w", err)
	}
	return nil
}

// ReleaseCursor removes any confinement.
func (w *Win32Windows) ReleaseCursor() error {
	if ok, _, err := procClipCursor.Call(0); ok == 0 {
		return fmt.Errorf("ClipCursor(NULL): %w", err)
	}
	return nil
}

var _ domain.WindowManager = (*Win32Windows)(nil)
