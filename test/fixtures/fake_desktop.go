// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"sync"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// FakeWindow is a top-level window owned by a named process.
type FakeWindow struct {
	PID       int32
	Process   string
	Rect      domain.Rect
	Minimized bool
}

// FakeDesktop simulates a single-monitor desktop. It implements
// domain.DisplayController, domain.WindowManager, domain.ProcessResolver and
// domain.FocusSource.
type FakeDesktop struct {
	mu      sync.Mutex
	modes   []domain.Resolution
	current domain.Resolution
	applied []domain.Resolution
	windows map[domain.WindowHandle]*FakeWindow

	clip    *domain.Rect
	clips   int
	handler func(domain.WindowHandle)
}

// NewFakeDesktop creates a desktop running at initial with the given
// additional supported modes.
func NewFakeDesktop(initial domain.Resolution, modes ...domain.Resolution) *FakeDesktop {
	return &FakeDesktop{
		modes:   append([]domain.Resolution{initial}, modes...),
		current: initial,
		windows: make(map[domain.WindowHandle]*FakeWindow),
	}
}

// OpenWindow adds a window owned by process.
func (d *FakeDesktop) OpenWindow(hwnd domain.WindowHandle, pid int32, process string, rect domain.Rect) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windows[hwnd] = &FakeWindow{PID: pid, Process: process, Rect: rect}
}

// MoveWindow changes a window's rectangle.
func (d *FakeDesktop) MoveWindow(hwnd domain.WindowHandle, rect domain.Rect) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w, ok := d.windows[hwnd]; ok {
		w.Rect = rect
	}
}

// CloseWindow removes a window.
func (d *FakeDesktop) CloseWindow(hwnd domain.WindowHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.windows, hwnd)
}

// Focus brings hwnd to the foreground and fires the subscribed handler.
func (d *FakeDesktop) Focus(hwnd domain.WindowHandle) {
	d.mu.Lock()
	h := d.handler
	d.mu.Unlock()
	if h != nil {
		h(hwnd)
	}
}

// Mode returns the current display mode.
func (d *FakeDesktop) Mode() domain.Resolution {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Applied returns every mode committed so far.
func (d *FakeDesktop) Applied() []domain.Resolution {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Resolution(nil), d.applied...)
}

// Clip returns the active cursor confinement, if any.
func (d *FakeDesktop) Clip() (domain.Rect, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.clip == nil {
		return domain.Rect{}, false
	}
	return *d.clip, true
}

// ClipCount returns how many times the cursor has been confined.
func (d *FakeDesktop) ClipCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clips
}

// Subscribed reports whether a focus handler is installed.
func (d *FakeDesktop) Subscribed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handler != nil
}

// SupportedModes implements domain.DisplayController.
func (d *FakeDesktop) SupportedModes() ([]domain.Resolution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Resolution(nil), d.modes...), nil
}

// Current implements domain.DisplayController.
func (d *FakeDesktop) Current() (domain.Resolution, error) {
	return d.Mode(), nil
}

// Apply implements domain.DisplayController.
func (d *FakeDesktop) Apply(mode domain.Resolution) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.modes {
		if m == mode {
			d.current = mode
			d.applied = append(d.applied, mode)
			return nil
		}
	}
	return fmt.Errorf("apply %s: %w", mode, domain.ErrModeNotFound)
}

// WindowPID implements domain.WindowManager.
func (d *FakeDesktop) WindowPID(hwnd domain.WindowHandle) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[hwnd]
	if !ok {
		return 0, fmt.Errorf("window %#x: %w", hwnd, domain.ErrProcessUnavailable)
	}
	return w.PID, nil
}

// WindowRect implements domain.WindowManager.
func (d *FakeDesktop) WindowRect(hwnd domain.WindowHandle) (domain.Rect, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[hwnd]
	if !ok || w.Minimized {
		return domain.Rect{}, domain.ErrWindowUnavailable
	}
	return w.Rect, nil
}

// ClipCursor implements domain.WindowManager.
func (d *FakeDesktop) ClipCursor(rect domain.Rect) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clip = &rect
	d.clips++
	return nil
}

// ReleaseCursor implements domain.WindowManager.
func (d *FakeDesktop) ReleaseCursor() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clip = nil
	return nil
}

// ResolveWindow implements domain.ProcessResolver.
func (d *FakeDesktop) ResolveWindow(hwnd domain.WindowHandle) (domain.ProcessName, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.windows[hwnd]
	if !ok {
		return domain.ProcessName{}, fmt.Errorf("window %#x: %w", hwnd, domain.ErrProcessUnavailable)
	}
	return domain.NewProcessName(w.Process), nil
}

// Subscribe implements domain.FocusSource.
func (d *FakeDesktop) Subscribe(handler func(domain.WindowHandle)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = handler
	return nil
}

// Close implements domain.FocusSource.
func (d *FakeDesktop) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = nil
	return nil
}
