package usecase

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
	"github.com/eliteGoblin/focusd/autores/internal/policy"
)

// evaluateCursorLock runs the cursor-lock transition for a focus change.
// It is independent of resolution-profile matching.
func (a *AutomatorImpl) evaluateCursorLock(hwnd domain.WindowHandle, name domain.ProcessName, rules *policy.RuleSet) {
	rule, matched := rules.MatchLock(name)
	if !matched {
		a.releaseLock()
		return
	}

	padX, padY := max(rule.PaddingX, 0), max(rule.PaddingY, 0)

	// Geometry query is an OS call; keep it outside the state lock.
	rect, rectErr := a.windows.WindowRect(hwnd)

	a.mu.Lock()
	changed := a.state.lockedProcess == nil || !policy.SameKey(a.state.lockedProcess.Raw, name.Raw)
	locked := name
	a.state.lockedWindow = hwnd
	a.state.lockedPaddingX = padX
	a.state.lockedPaddingY = padY
	a.state.lockedProcess = &locked
	a.state.lockGen++

	var clip domain.Rect
	var clipErr error
	if rectErr == nil {
		clip = rect.Inset(padX, padY)
		clipErr = a.windows.ClipCursor(clip)
	}
	a.mu.Unlock()

	switch {
	case rectErr != nil:
		a.logger.Debug("lock target geometry unavailable, enforcer will retry",
			zap.String("process", name.Raw),
			zap.Error(rectErr))
	case clipErr != nil:
		a.logger.Warn("failed to confine cursor",
			zap.String("process", name.Raw),
			zap.Stringer("region", clip),
			zap.Error(clipErr))
	}

	if changed {
		a.logger.Info("cursor lock active",
			zap.String("process", name.Raw),
			zap.Int("padding_x", padX),
			zap.Int("padding_y", padY))
		a.emit(domain.Notification{
			Event:   domain.EventMouseLockChanged,
			Process: name.Raw,
			Status:  domain.StatusActive,
		})
	}
}

// releaseLock clears the lock target and, if one was held, the OS confinement.
func (a *AutomatorImpl) releaseLock() {
	a.mu.Lock()
	wasLocked := a.state.lockedWindow != 0
	if !wasLocked {
		a.mu.Unlock()
		return
	}
	a.state.clearLock()
	err := a.windows.ReleaseCursor()
	a.mu.Unlock()

	if err != nil {
		a.logger.Warn("failed to release cursor confinement", zap.Error(err))
	}
	a.logger.Info("cursor lock inactive")
	a.emit(domain.Notification{
		Event:  domain.EventMouseLockChanged,
		Status: domain.StatusInactive,
	})
}

// EnforceLock re-queries the locked window's rectangle and re-applies the
// inset confinement. A failed geometry read skips this tick.
func (a *AutomatorImpl) EnforceLock() {
	a.mu.Lock()
	hwnd := a.state.lockedWindow
	padX, padY := a.state.lockedPaddingX, a.state.lockedPaddingY
	gen := a.state.lockGen
	a.mu.Unlock()

	if hwnd == 0 {
		return
	}

	rect, err := a.windows.WindowRect(hwnd)
	if err != nil {
		a.logger.Debug("skipping cursor enforcement",
			zap.Uint64("hwnd", uint64(hwnd)),
			zap.Error(err))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// The target changed while we were reading geometry.
	if a.state.lockGen != gen {
		return
	}
	if err := a.windows.ClipCursor(rect.Inset(padX, padY)); err != nil {
		a.logger.Debug("cursor enforcement failed",
			zap.Uint64("hwnd", uint64(hwnd)),
			zap.Error(err))
	}
}
