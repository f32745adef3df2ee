// Package daemon runs the automation engine: the focus dispatcher, the revert
// scheduler and the cursor lock enforcer.
package daemon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/autores/internal/clock"
	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// EngineConfig holds engine loop configuration.
type EngineConfig struct {
	RevertCheckInterval time.Duration // How often pending reverts are checked
	LockEnforceInterval time.Duration // How often cursor confinement is re-applied
}

// DefaultEngineConfig returns default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		RevertCheckInterval: time.Second,
		LockEnforceInterval: 50 * time.Millisecond,
	}
}

// Engine drives an Automator from OS focus events and two periodic loops.
// Each loop runs in its own goroutine so a slow display change never delays
// cursor enforcement.
type Engine struct {
	config    EngineConfig
	automator domain.Automator
	focus     domain.FocusSource
	clock     clock.Clock
	logger    *zap.Logger

	// pending holds the newest focused window not yet dispatched. The OS
	// callback only stores it and pokes wake.
	pending  atomic.Uintptr
	wake     chan struct{}
	degraded atomic.Bool
}

// NewEngine creates a new engine. focus may be nil, in which case the engine
// starts in degraded mode.
func NewEngine(
	config EngineConfig,
	automator domain.Automator,
	focus domain.FocusSource,
	clk clock.Clock,
	logger *zap.Logger,
) *Engine {
	if clk == nil {
		clk = clock.Real()
	}
	return &Engine{
		config:    config,
		automator: automator,
		focus:     focus,
		clock:     clk,
		logger:    logger,
		wake:      make(chan struct{}, 1),
	}
}

// Degraded reports whether focus events are unavailable. In degraded mode no
// new profile or lock ever activates, but the periodic loops keep running.
func (e *Engine) Degraded() bool {
	return e.degraded.Load()
}

// Run starts all execution contexts and blocks until ctx is canceled. On the
// way out it restores the display and releases the cursor.
func (e *Engine) Run(ctx context.Context) error {
	if e.focus == nil {
		e.degraded.Store(true)
		e.logger.Error("no focus source available, running degraded")
	} else if err := e.focus.Subscribe(e.onFocus); err != nil {
		e.degraded.Store(true)
		e.logger.Error("failed to install focus hook, running degraded", zap.Error(err))
	} else {
		defer func() {
			if err := e.focus.Close(); err != nil {
				e.logger.Warn("failed to remove focus hook", zap.Error(err))
			}
		}()
	}

	e.logger.Info("automation engine started",
		zap.Duration("revert_check_interval", e.config.RevertCheckInterval),
		zap.Duration("lock_enforce_interval", e.config.LockEnforceInterval),
		zap.Bool("degraded", e.Degraded()))

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		e.dispatchFocus(ctx)
	}()
	go func() {
		defer wg.Done()
		e.every(ctx, "revert scheduler", e.config.RevertCheckInterval, e.automator.Tick)
	}()
	go func() {
		defer wg.Done()
		e.every(ctx, "cursor enforcer", e.config.LockEnforceInterval, e.automator.EnforceLock)
	}()

	<-ctx.Done()
	wg.Wait()

	e.logger.Info("automation engine stopping")
	if err := e.automator.Restore(); err != nil {
		e.logger.Error("failed to restore display on shutdown", zap.Error(err))
	}
	return ctx.Err()
}

// onFocus is the OS callback. It never blocks: intermediate windows during
// rapid focus churn are superseded by the newest one.
func (e *Engine) onFocus(hwnd domain.WindowHandle) {
	e.pending.Store(uintptr(hwnd))
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) dispatchFocus(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
			hwnd := domain.WindowHandle(e.pending.Swap(0))
			if hwnd == 0 {
				continue
			}
			e.safely("focus dispatcher", func() { e.automator.HandleFocus(hwnd) })
		}
	}
}

// every runs fn on a ticker until ctx is canceled.
func (e *Engine) every(ctx context.Context, name string, interval time.Duration, fn func()) {
	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.safely(name, fn)
		}
	}
}

// safely runs fn and logs a panic instead of taking the process down.
func (e *Engine) safely(where string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("recovered panic",
				zap.String("context", where),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	fn()
}
