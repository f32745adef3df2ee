package domain

// DisplayController is the display-mode query/command surface.
// Implementations: Win32 EnumDisplaySettings/ChangeDisplaySettings, X11 RandR.
type DisplayController interface {
	// SupportedModes returns distinct modes, sorted width, height, frequency descending.
	SupportedModes() ([]Resolution, error)

	// Current returns the active mode.
	Current() (Resolution, error)

	// Apply commits an exact supported mode.
	// Returns ErrModeNotFound if no supported mode matches.
	Apply(mode Resolution) error
}

// WindowManager answers window geometry/ownership questions and owns the
// global cursor confinement.
type WindowManager interface {
	// WindowPID returns the owning process ID of a window.
	WindowPID(hwnd WindowHandle) (int32, error)

	// WindowRect returns the window's bounding rectangle in screen coordinates.
	// Returns ErrWindowUnavailable for closed or minimized windows.
	WindowRect(hwnd WindowHandle) (Rect, error)

	// ClipCursor confines the pointer to rect.
	ClipCursor(rect Rect) error

	// ReleaseCursor removes any confinement.
	ReleaseCursor() error
}

// ProcessResolver maps a window to the name of its owning process.
// Implementation: WindowManager for the PID, gopsutil for the name.
type ProcessResolver interface {
	// ResolveWindow returns ErrProcessUnavailable when the owner can't be read.
	ResolveWindow(hwnd WindowHandle) (ProcessName, error)
}

// ProcessLister enumerates running processes.
type ProcessLister interface {
	// List returns processes sorted by memory, largest first.
	List() ([]ProcessInfo, error)
}

// FocusSource delivers foreground-window changes.
type FocusSource interface {
	// Subscribe registers handler for every foreground change. The handler
	// must return quickly. Returns an error if the OS hook can't be installed.
	// The subscription ends when Close is called.
	Subscribe(handler func(WindowHandle)) error

	// Close removes the hook.
	Close() error
}

// ConfigSource provides the automation configuration. Current is called on
// every focus event and every scheduler tick, so it must be cheap.
type ConfigSource interface {
	Current() AutomationConfig
}

// Notifier receives core notifications. Notify must not block.
type Notifier interface {
	Notify(n Notification)
}

// DaemonRegistry provides daemon discovery for CLI invocations.
// Implementation: JSON file in the data directory.
type DaemonRegistry interface {
	// Register records the running daemon.
	Register(info DaemonInfo) error

	// Get returns the recorded daemon, or nil if none.
	Get() (*DaemonInfo, error)

	// IsAlive checks whether the recorded daemon process is running.
	IsAlive() (bool, error)

	// Clear removes the registry file.
	Clear() error

	// Path returns the registry file path (for tests).
	Path() string
}

// Automator is the automation state machine driven by the focus dispatcher
// and the two periodic loops.
type Automator interface {
	// HandleFocus evaluates a foreground change.
	HandleFocus(hwnd WindowHandle)

	// Tick expires a pending revert whose delay has elapsed.
	Tick()

	// EnforceLock re-applies cursor confinement for the locked window.
	EnforceLock()

	// ForceRevert expires a pending revert so the next Tick reverts.
	// Returns false when no revert is pending.
	ForceRevert() bool

	// Restore reverts any active profile and releases the cursor immediately.
	Restore() error

	// Snapshot returns a copy of the current state.
	Snapshot() StateSnapshot
}

// AutostartManager installs the login entry that starts the daemon.
// Implementations: XDG autostart desktop entry (Linux), LaunchAgent plist
// (macOS), HKCU Run key (Windows).
type AutostartManager interface {
	// Install writes and activates the entry for execPath.
	Install(execPath string) error

	// Uninstall removes the entry. Removing a missing entry is not an error.
	Uninstall() error

	// IsInstalled checks if the entry exists.
	IsInstalled() bool

	// NeedsUpdate reports whether an existing entry points somewhere else.
	NeedsUpdate(execPath string) bool

	// Location describes where the entry lives (file path or registry value).
	Location() string
}
