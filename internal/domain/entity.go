// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Sentinel errors shared by the core and its adapters.
var (
	ErrModeNotFound       = errors.New("resolution not found in supported modes")
	ErrModeChangeRejected = errors.New("display rejected mode change")
	ErrProcessUnavailable = errors.New("process not readable")
	ErrWindowUnavailable  = errors.New("window geometry unavailable")
	ErrUnsupported        = errors.New("not supported on this platform")
	ErrDaemonNotRunning   = errors.New("autores daemon is not running")
)

// WindowHandle is an opaque platform window identifier (HWND on Windows, XID on X11).
type WindowHandle uintptr

// Resolution is a display mode: width, height and refresh rate.
type Resolution struct {
	Width       int `json:"width" toml:"width" yaml:"width"`
	Height      int `json:"height" toml:"height" yaml:"height"`
	FrequencyHz int `json:"frequencyHz" toml:"frequencyHz" yaml:"frequencyHz"`
}

// String renders the mode as "WxH@FHz".
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d@%dHz", r.Width, r.Height, r.FrequencyHz)
}

// Valid reports whether all components are positive.
func (r Resolution) Valid() bool {
	return r.Width > 0 && r.Height > 0 && r.FrequencyHz > 0
}

// ParseResolution parses "WxH@F" or "WxH@FHz".
func ParseResolution(s string) (Resolution, error) {
	var r Resolution
	trimmed := strings.TrimSuffix(strings.TrimSpace(s), "Hz")
	if _, err := fmt.Sscanf(trimmed, "%dx%d@%d", &r.Width, &r.Height, &r.FrequencyHz); err != nil {
		return Resolution{}, fmt.Errorf("invalid resolution %q (want WxH@F): %w", s, err)
	}
	if !r.Valid() {
		return Resolution{}, fmt.Errorf("invalid resolution %q: components must be positive", s)
	}
	return r, nil
}

// ProcessName identifies a running application. Comparisons are case-insensitive
// against either the raw name or its filename stem.
type ProcessName struct {
	Raw  string
	Stem string
}

// NewProcessName normalizes a raw executable name like "game.exe".
func NewProcessName(raw string) ProcessName {
	raw = strings.TrimSpace(raw)
	return ProcessName{
		Raw:  raw,
		Stem: strings.TrimSuffix(raw, filepath.Ext(raw)),
	}
}

func (p ProcessName) String() string { return p.Raw }

// IsZero reports whether the name is empty.
func (p ProcessName) IsZero() bool { return p.Raw == "" }

// ResolutionProfile binds a process to the mode applied while it has focus.
type ResolutionProfile struct {
	MatchKey   string `json:"process" toml:"process" yaml:"process"`
	Resolution `yaml:",inline"`
}

// Key returns the process key this profile matches.
func (p ResolutionProfile) Key() string { return p.MatchKey }

// CursorLockRule confines the cursor to a process's window, inset by padding.
type CursorLockRule struct {
	MatchKey string `json:"process" toml:"process" yaml:"process"`
	PaddingX int    `json:"paddingX" toml:"paddingX" yaml:"paddingX"`
	PaddingY int    `json:"paddingY" toml:"paddingY" yaml:"paddingY"`
}

// Key returns the process key this rule matches.
func (r CursorLockRule) Key() string { return r.MatchKey }

// Rect is a screen rectangle in pixels; Right and Bottom are exclusive edges.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Inset shrinks the rectangle by dx on the left/right and dy on the top/bottom.
// An axis whose padding exceeds half its extent collapses to the midpoint.
func (r Rect) Inset(dx, dy int) Rect {
	out := Rect{Left: r.Left + dx, Top: r.Top + dy, Right: r.Right - dx, Bottom: r.Bottom - dy}
	if out.Left > out.Right {
		mid := r.Left + (r.Right-r.Left)/2
		out.Left, out.Right = mid, mid
	}
	if out.Top > out.Bottom {
		mid := r.Top + (r.Bottom-r.Top)/2
		out.Top, out.Bottom = mid, mid
	}
	return out
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
}

// AutoResConfig is the automation.autoRes section.
type AutoResConfig struct {
	RevertDelayMs  int64               `json:"revertDelay" toml:"revertDelay" yaml:"revertDelay"`
	DefaultProfile *Resolution         `json:"defaultProfile,omitempty" toml:"defaultProfile,omitempty" yaml:"defaultProfile,omitempty"`
	Profiles       []ResolutionProfile `json:"profiles" toml:"profiles" yaml:"profiles"`
}

// RevertDelay returns the configured delay as a duration.
func (c AutoResConfig) RevertDelay() time.Duration {
	return time.Duration(c.RevertDelayMs) * time.Millisecond
}

// AutomationConfig is the read-only view of the automation section the core consumes.
// Rule slices are ordered: earlier entries take priority.
type AutomationConfig struct {
	MouseLock []CursorLockRule `json:"mouseLock" toml:"mouseLock" yaml:"mouseLock"`
	AutoRes   AutoResConfig    `json:"autoRes" toml:"autoRes" yaml:"autoRes"`
}

// DefaultRevertDelayMs is used when no configuration is readable.
const DefaultRevertDelayMs = 15000

// DefaultAutomationConfig returns the empty rule set with the default delay.
func DefaultAutomationConfig() AutomationConfig {
	return AutomationConfig{
		MouseLock: []CursorLockRule{},
		AutoRes: AutoResConfig{
			RevertDelayMs: DefaultRevertDelayMs,
			Profiles:      []ResolutionProfile{},
		},
	}
}

// Clone returns a deep copy so callers can't mutate a shared snapshot.
func (c AutomationConfig) Clone() AutomationConfig {
	out := c
	out.MouseLock = append([]CursorLockRule(nil), c.MouseLock...)
	out.AutoRes.Profiles = append([]ResolutionProfile(nil), c.AutoRes.Profiles...)
	if c.AutoRes.DefaultProfile != nil {
		def := *c.AutoRes.DefaultProfile
		out.AutoRes.DefaultProfile = &def
	}
	return out
}

// Event names emitted to observers.
const (
	EventResolutionChanged = "resolution-changed"
	EventMouseLockChanged  = "mouse-lock-changed"
	EventConfigReloaded    = "config-reloaded"
)

// Notification statuses.
const (
	StatusChanged       = "changed"
	StatusRevertPending = "revert-pending"
	StatusReverted      = "reverted"
	StatusError         = "error"
	StatusActive        = "active"
	StatusInactive      = "inactive"
)

// Notification is a named event with a payload for UI/tray observers.
type Notification struct {
	ID         string    `json:"id,omitempty"`
	Event      string    `json:"event"`
	Process    string    `json:"process,omitempty"`
	Resolution string    `json:"resolution,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// StateSnapshot is a copy of the automation state for status reporting.
type StateSnapshot struct {
	OriginalResolution *Resolution  `json:"originalResolution,omitempty"`
	ActiveProfile      string       `json:"activeProfile,omitempty"`
	RevertDeadline     *time.Time   `json:"revertDeadline,omitempty"`
	LockedWindow       WindowHandle `json:"lockedWindow,omitempty"`
	LockedPaddingX     int          `json:"lockedPaddingX,omitempty"`
	LockedPaddingY     int          `json:"lockedPaddingY,omitempty"`
	LockedProcess      string       `json:"lockedProcess,omitempty"`
}

// Idle reports whether no profile is active and no cursor lock is held.
func (s StateSnapshot) Idle() bool {
	return s.OriginalResolution == nil && s.ActiveProfile == "" && s.RevertDeadline == nil &&
		s.LockedWindow == 0 && s.LockedProcess == ""
}

// ProcessInfo describes a running process for the picker listing.
type ProcessInfo struct {
	PID    int32  `json:"pid"`
	Name   string `json:"name"`
	Memory uint64 `json:"memory"`
}

// DaemonInfo is persisted so CLI invocations can find the running daemon.
type DaemonInfo struct {
	Version     int       `json:"version"`
	PID         int       `json:"pid"`
	ControlAddr string    `json:"control_addr"`
	AppVersion  string    `json:"app_version,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}
