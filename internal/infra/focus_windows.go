//go:build windows

package infra

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// activeHook receives callbacks from the single process-wide WinEvent hook.
var activeHook atomic.Pointer[Win32Focus]

// winEventCallback is created once; Windows callbacks are a finite resource.
var winEventCallback = windows.NewCallback(func(hook, event, hwnd, idObject, idChild, thread, eventTime uintptr) uintptr {
	if event == eventSystemForeground && hwnd != 0 {
		if f := activeHook.Load(); f != nil {
			f.handler(domain.WindowHandle(hwnd))
		}
	}
	return 0
})

// Win32Focus implements domain.FocusSource with SetWinEventHook on
// EVENT_SYSTEM_FOREGROUND. The hook thread pumps messages until Close.
type Win32Focus struct {
	logger *zap.Logger

	mu       sync.Mutex
	handler  func(domain.WindowHandle)
	threadID uint32
	done     chan struct{}
}

// NewWin32Focus creates a focus source.
func NewWin32Focus(logger *zap.Logger) *Win32Focus {
	return &Win32Focus{logger: logger}
}

// Subscribe installs the hook on a dedicated OS thread and reports the
// current foreground window once.
func (f *Win32Focus) Subscribe(handler func(domain.WindowHandle)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done != nil {
		return errors.New("focus hook already installed")
	}
	f.handler = handler
	if !activeHook.CompareAndSwap(nil, f) {
		return errors.New("another focus hook is active in this process")
	}

	ready := make(chan hookStart, 1)
	done := make(chan struct{})
	go f.pump(ready, done)

	start := <-ready
	if start.err != nil {
		activeHook.Store(nil)
		return start.err
	}
	f.done = done
	f.threadID = start.threadID

	if fg := windows.GetForegroundWindow(); fg != 0 {
		handler(domain.WindowHandle(fg))
	}
	return nil
}

type hookStart struct {
	threadID uint32
	err      error
}

// pump owns the hook for its whole life: hooks are bound to the installing thread.
func (f *Win32Focus) pump(ready chan<- hookStart, done chan<- struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	hook, _, err := procSetWinEventHook.Call(
		eventSystemForeground, eventSystemForeground,
		0, winEventCallback,
		0, 0,
		wineventOutOfContext|wineventSkipOwnProc,
	)
	if hook == 0 {
		ready <- hookStart{err: fmt.Errorf("SetWinEventHook: %w", err)}
		return
	}
	defer procUnhookWinEvent.Call(hook)

	ready <- hookStart{threadID: windows.GetCurrentThreadId()}

	var m msg
	for {
		r, _, err := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		switch int32(r) {
		case 0: // WM_QUIT
			return
		case -1:
			f.logger.Error("GetMessageW failed, focus hook stopped", zap.Error(err))
			return
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
}

// Close stops the message loop and removes the hook.
func (f *Win32Focus) Close() error {
	f.mu.Lock()
	done, tid := f.done, f.threadID
	f.done = nil
	f.mu.Unlock()

	if done == nil {
		return nil
	}
	activeHook.CompareAndSwap(f, nil)

	if ok, _, err := procPostThreadMessageW.Call(uintptr(tid), wmQuit, 0, 0); ok == 0 {
		return fmt.Errorf("PostThreadMessageW: %w", err)
	}
	<-done
	return nil
}

var _ domain.FocusSource = (*Win32Focus)(nil)
