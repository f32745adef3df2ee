package usecase

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/autores/internal/clock"
	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// mockDisplay implements domain.DisplayController for testing
type mockDisplay struct {
	mu         sync.Mutex
	current    domain.Resolution
	currentErr error
	applyErr   error
	applied    []domain.Resolution
}

func (m *mockDisplay) SupportedModes() ([]domain.Resolution, error) {
	return []domain.Resolution{m.current}, nil
}

func (m *mockDisplay) Current() (domain.Resolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.currentErr
}

func (m *mockDisplay) Apply(mode domain.Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}
	m.applied = append(m.applied, mode)
	m.current = mode
	return nil
}

func (m *mockDisplay) setApplyErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyErr = err
}

func (m *mockDisplay) appliedModes() []domain.Resolution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Resolution(nil), m.applied...)
}

// mockWindows implements domain.WindowManager for testing
type mockWindows struct {
	mu       sync.Mutex
	rects    map[domain.WindowHandle]domain.Rect
	rectErr  error
	clips    []domain.Rect
	releases int
}

func newMockWindows() *mockWindows {
	return &mockWindows{rects: make(map[domain.WindowHandle]domain.Rect)}
}

func (m *mockWindows) WindowPID(hwnd domain.WindowHandle) (int32, error) {
	return int32(hwnd), nil
}

func (m *mockWindows) WindowRect(hwnd domain.WindowHandle) (domain.Rect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rectErr != nil {
		return domain.Rect{}, m.rectErr
	}
	r, ok := m.rects[hwnd]
	if !ok {
		return domain.Rect{}, domain.ErrWindowUnavailable
	}
	return r, nil
}

func (m *mockWindows) ClipCursor(rect domain.Rect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clips = append(m.clips, rect)
	return nil
}

func (m *mockWindows) ReleaseCursor() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	return nil
}

func (m *mockWindows) setRect(hwnd domain.WindowHandle, r domain.Rect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rects[hwnd] = r
}

func (m *mockWindows) lastClip() (domain.Rect, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.clips) == 0 {
		return domain.Rect{}, 0
	}
	return m.clips[len(m.clips)-1], len(m.clips)
}

// mockResolver implements domain.ProcessResolver for testing
type mockResolver struct {
	names map[domain.WindowHandle]string
}

func (m *mockResolver) ResolveWindow(hwnd domain.WindowHandle) (domain.ProcessName, error) {
	name, ok := m.names[hwnd]
	if !ok {
		return domain.ProcessName{}, domain.ErrProcessUnavailable
	}
	return domain.NewProcessName(name), nil
}

// mutableConfig implements domain.ConfigSource for testing
type mutableConfig struct {
	mu  sync.Mutex
	cfg domain.AutomationConfig
}

func (m *mutableConfig) Current() domain.AutomationConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Clone()
}

func (m *mutableConfig) update(fn func(*domain.AutomationConfig)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.cfg)
}

// recordingNotifier implements domain.Notifier for testing
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Notification
}

func (r *recordingNotifier) Notify(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

func (r *recordingNotifier) all() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.events...)
}

func (r *recordingNotifier) statuses() []string {
	var out []string
	for _, n := range r.all() {
		out = append(out, n.Status)
	}
	return out
}

// Window handles used across tests.
const (
	hwndGame    domain.WindowHandle = 0x10
	hwndRacer   domain.WindowHandle = 0x20
	hwndEditor  domain.WindowHandle = 0x30
	hwndShooter domain.WindowHandle = 0x40
	hwndSystem  domain.WindowHandle = 0x50
)

var (
	desktopMode = domain.Resolution{Width: 2560, Height: 1440, FrequencyHz: 144}
	gameMode    = domain.Resolution{Width: 1920, Height: 1080, FrequencyHz: 240}
	racerMode   = domain.Resolution{Width: 1280, Height: 720, FrequencyHz: 60}
)

type fixture struct {
	display  *mockDisplay
	windows  *mockWindows
	config   *mutableConfig
	notifier *recordingNotifier
	clock    *clock.FakeClock
	t0       time.Time
	auto     *AutomatorImpl
}

func newFixture(cfg domain.AutomationConfig) *fixture {
	t0 := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		display:  &mockDisplay{current: desktopMode},
		windows:  newMockWindows(),
		config:   &mutableConfig{cfg: cfg},
		notifier: &recordingNotifier{},
		clock:    clock.Fake(t0),
		t0:       t0,
	}
	resolver := &mockResolver{names: map[domain.WindowHandle]string{
		hwndGame:    "game.exe",
		hwndRacer:   "Racer.exe",
		hwndEditor:  "editor.exe",
		hwndShooter: "shooter.exe",
	}}
	f.auto = NewAutomator(f.display, f.windows, resolver, f.config, f.notifier, f.clock, zap.NewNop())
	return f
}

// profileConfig configures game.exe and racer profiles with a 1s delay.
func profileConfig() domain.AutomationConfig {
	cfg := domain.DefaultAutomationConfig()
	cfg.AutoRes.RevertDelayMs = 1000
	cfg.AutoRes.Profiles = []domain.ResolutionProfile{
		{MatchKey: "game.exe", Resolution: gameMode},
		{MatchKey: "racer", Resolution: racerMode},
	}
	return cfg
}
