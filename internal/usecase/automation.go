// Package usecase contains application business logic.
package usecase

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/autores/internal/clock"
	"github.com/eliteGoblin/focusd/autores/internal/domain"
	"github.com/eliteGoblin/focusd/autores/internal/policy"
)

// AutomatorImpl implements domain.Automator.
//
// Two locks are involved. mu guards automationState and is only held to read
// or decide (and around the cheap cursor clip call). transition serializes
// resolution side effects between the focus dispatcher and the revert
// scheduler so two mode changes never interleave; it is always acquired
// before mu. The cursor enforcer never takes transition.
type AutomatorImpl struct {
	display  domain.DisplayController
	windows  domain.WindowManager
	resolver domain.ProcessResolver
	config   domain.ConfigSource
	notifier domain.Notifier
	clock    clock.Clock
	logger   *zap.Logger

	transition sync.Mutex
	mu         sync.Mutex
	state      automationState
}

// NewAutomator creates the automation state machine with an all-empty state.
func NewAutomator(
	display domain.DisplayController,
	windows domain.WindowManager,
	resolver domain.ProcessResolver,
	config domain.ConfigSource,
	notifier domain.Notifier,
	clk clock.Clock,
	logger *zap.Logger,
) *AutomatorImpl {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &AutomatorImpl{
		display:  display,
		windows:  windows,
		resolver: resolver,
		config:   config,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
	}
}

// HandleFocus evaluates a foreground change: resolution profile first, then
// the independent cursor-lock rule. Events whose owner can't be resolved are
// dropped without touching state.
func (a *AutomatorImpl) HandleFocus(hwnd domain.WindowHandle) {
	if hwnd == 0 {
		return
	}

	name, err := a.resolver.ResolveWindow(hwnd)
	if err != nil {
		a.logger.Debug("dropping focus event, process unresolved",
			zap.Uint64("hwnd", uint64(hwnd)),
			zap.Error(err))
		return
	}

	a.logger.Debug("foreground process",
		zap.String("process", name.Raw),
		zap.Uint64("hwnd", uint64(hwnd)))

	rules := policy.NewRuleSet(a.config.Current())
	a.evaluateResolution(name, rules)
	a.evaluateCursorLock(hwnd, name, rules)
}

// evaluateResolution runs the focus-change transition of the resolution state machine.
func (a *AutomatorImpl) evaluateResolution(name domain.ProcessName, rules *policy.RuleSet) {
	a.transition.Lock()
	defer a.transition.Unlock()

	profile, matched := rules.MatchProfile(name)

	a.mu.Lock()
	if !matched {
		if a.state.activeProfile == nil || a.state.revertDeadline != nil {
			a.mu.Unlock()
			return
		}
		now := a.clock.Now()
		a.state.revertDeadline = &now
		a.state.revertFailures = 0
		active := a.state.activeProfile.MatchKey
		a.mu.Unlock()

		a.logger.Info("lost focus of profiled process, revert pending",
			zap.String("profile", active),
			zap.String("focused", name.Raw))
		a.emit(domain.Notification{
			Event:   domain.EventResolutionChanged,
			Process: active,
			Status:  domain.StatusRevertPending,
		})
		return
	}

	if a.state.activeProfile != nil && policy.SameKey(a.state.activeProfile.MatchKey, profile.MatchKey) {
		wasPending := a.state.revertDeadline != nil
		a.state.revertDeadline = nil
		a.state.revertFailures = 0
		a.mu.Unlock()
		if wasPending {
			a.logger.Info("re-entered profiled process, revert cancelled",
				zap.String("profile", profile.MatchKey))
			a.emitChanged(profile)
		}
		return
	}
	// A matching profile always cancels the pending revert, even if the
	// switch below fails.
	a.state.revertDeadline = nil
	a.state.revertFailures = 0
	needOriginal := a.state.originalResolution == nil
	a.mu.Unlock()

	var original *domain.Resolution
	if needOriginal {
		current, err := a.display.Current()
		if err != nil {
			a.logger.Warn("failed to read current resolution", zap.Error(err))
		} else {
			original = &current
		}
	}

	if err := a.display.Apply(profile.Resolution); err != nil {
		a.logger.Error("failed to set resolution",
			zap.String("profile", profile.MatchKey),
			zap.Stringer("resolution", profile.Resolution),
			zap.Error(err))
		a.emit(domain.Notification{
			Event:      domain.EventResolutionChanged,
			Process:    profile.MatchKey,
			Resolution: profile.Resolution.String(),
			Status:     domain.StatusError,
			Error:      err.Error(),
		})
		return
	}

	a.mu.Lock()
	if a.state.originalResolution == nil && original != nil {
		a.state.originalResolution = original
	}
	applied := profile
	a.state.activeProfile = &applied
	a.state.revertDeadline = nil
	a.state.revertFailures = 0
	a.mu.Unlock()

	fields := []zap.Field{
		zap.String("profile", profile.MatchKey),
		zap.Stringer("resolution", profile.Resolution),
	}
	if original != nil {
		fields = append(fields, zap.Stringer("original", *original))
	}
	a.logger.Info("resolution set", fields...)
	a.emitChanged(profile)
}

// Tick expires a pending revert once the configured delay has elapsed. The
// delay and default profile are re-read on every call so they can change live.
func (a *AutomatorImpl) Tick() {
	a.transition.Lock()
	defer a.transition.Unlock()

	now := a.clock.Now()
	cfg := a.config.Current()

	a.mu.Lock()
	if a.state.revertDeadline == nil || now.Sub(*a.state.revertDeadline) < cfg.AutoRes.RevertDelay() {
		a.mu.Unlock()
		return
	}
	active := ""
	if a.state.activeProfile != nil {
		active = a.state.activeProfile.MatchKey
	}
	target := revertTarget(cfg, a.state.originalResolution)
	a.mu.Unlock()

	if target == nil {
		a.logger.Warn("no resolution to revert to (no default profile and no original saved)",
			zap.String("profile", active))
		a.finishRevert()
		return
	}

	a.logger.Info("revert timer expired, reverting",
		zap.String("profile", active),
		zap.Stringer("target", *target))

	if err := a.display.Apply(*target); err != nil {
		a.mu.Lock()
		a.state.revertFailures++
		attempts := a.state.revertFailures
		a.mu.Unlock()

		a.logger.Warn("failed to revert, will retry next tick",
			zap.String("profile", active),
			zap.Stringer("target", *target),
			zap.Int("attempt", attempts),
			zap.Error(err))
		if attempts == 1 {
			a.emit(domain.Notification{
				Event:      domain.EventResolutionChanged,
				Process:    active,
				Resolution: target.String(),
				Status:     domain.StatusError,
				Error:      err.Error(),
			})
		}
		return
	}

	a.logger.Info("reverted successfully", zap.Stringer("resolution", *target))
	a.finishRevert()
	a.emit(domain.Notification{
		Event:  domain.EventResolutionChanged,
		Status: domain.StatusReverted,
	})
}

// finishRevert returns the resolution state to Idle.
func (a *AutomatorImpl) finishRevert() {
	a.mu.Lock()
	a.state.clearResolution()
	a.mu.Unlock()
}

// revertTarget prefers the configured default profile over the captured original.
func revertTarget(cfg domain.AutomationConfig, original *domain.Resolution) *domain.Resolution {
	if def := cfg.AutoRes.DefaultProfile; def != nil && def.Valid() {
		target := *def
		return &target
	}
	if original != nil {
		target := *original
		return &target
	}
	return nil
}

// maxBackdate moves a deadline far enough into the past to exceed any delay.
const maxBackdate = time.Duration(math.MaxInt64)

// ForceRevert back-dates a pending revert so the next Tick applies it.
func (a *AutomatorImpl) ForceRevert() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.revertDeadline == nil {
		return false
	}
	expired := a.clock.Now().Add(-maxBackdate)
	a.state.revertDeadline = &expired
	a.logger.Info("revert forced")
	return true
}

// Restore reverts an active profile immediately and releases any cursor
// confinement. Used on shutdown so the display and pointer are never left
// in an automation-owned state.
func (a *AutomatorImpl) Restore() error {
	a.releaseLock()

	a.transition.Lock()
	defer a.transition.Unlock()

	a.mu.Lock()
	if a.state.activeProfile == nil {
		a.mu.Unlock()
		return nil
	}
	target := revertTarget(a.config.Current(), a.state.originalResolution)
	a.mu.Unlock()

	if target != nil {
		if err := a.display.Apply(*target); err != nil {
			return err
		}
		a.logger.Info("restored resolution on shutdown", zap.Stringer("resolution", *target))
		a.emit(domain.Notification{
			Event:  domain.EventResolutionChanged,
			Status: domain.StatusReverted,
		})
	}
	a.finishRevert()
	return nil
}

// Snapshot returns a copy of the current automation state.
func (a *AutomatorImpl) Snapshot() domain.StateSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.snapshot()
}

func (a *AutomatorImpl) emitChanged(profile domain.ResolutionProfile) {
	a.emit(domain.Notification{
		Event:      domain.EventResolutionChanged,
		Process:    profile.MatchKey,
		Resolution: profile.Resolution.String(),
		Status:     domain.StatusChanged,
	})
}

func (a *AutomatorImpl) emit(n domain.Notification) {
	n.At = a.clock.Now()
	a.notifier.Notify(n)
}

type nopNotifier struct{}

func (nopNotifier) Notify(domain.Notification) {}

// Ensure AutomatorImpl implements domain.Automator.
var _ domain.Automator = (*AutomatorImpl)(nil)
