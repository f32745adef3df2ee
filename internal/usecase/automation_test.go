package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// TestHandleFocus_ActivatesProfile verifies the first match captures the original and applies the mode
func TestHandleFocus_ActivatesProfile(t *testing.T) {
	f := newFixture(profileConfig())

	f.auto.HandleFocus(hwndGame)

	assert.Equal(t, []domain.Resolution{gameMode}, f.display.appliedModes())
	snap := f.auto.Snapshot()
	assert.Equal(t, "game.exe", snap.ActiveProfile)
	require.NotNil(t, snap.OriginalResolution)
	assert.Equal(t, desktopMode, *snap.OriginalResolution)
	assert.Nil(t, snap.RevertDeadline)

	events := f.notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventResolutionChanged, events[0].Event)
	assert.Equal(t, "game.exe", events[0].Process)
	assert.Equal(t, "1920x1080@240Hz", events[0].Resolution)
	assert.Equal(t, domain.StatusChanged, events[0].Status)
}

// TestHandleFocus_LeavingStartsRevert verifies the countdown starts once
func TestHandleFocus_LeavingStartsRevert(t *testing.T) {
	f := newFixture(profileConfig())

	f.auto.HandleFocus(hwndGame)
	f.auto.HandleFocus(hwndEditor)
	f.clock.Advance(100 * time.Millisecond)
	f.auto.HandleFocus(hwndEditor)

	snap := f.auto.Snapshot()
	require.NotNil(t, snap.RevertDeadline)
	assert.Equal(t, f.t0, *snap.RevertDeadline, "second unmatched focus must not restart the countdown")
	assert.Equal(t, []string{domain.StatusChanged, domain.StatusRevertPending}, f.notifier.statuses())
	assert.Equal(t, "game.exe", f.notifier.all()[1].Process)
}

// TestHandleFocus_ReentryCancelsRevert verifies A -> B -> A does not re-apply
func TestHandleFocus_ReentryCancelsRevert(t *testing.T) {
	f := newFixture(profileConfig())

	f.auto.HandleFocus(hwndGame)
	f.auto.HandleFocus(hwndEditor)
	f.clock.Advance(500 * time.Millisecond)
	f.auto.HandleFocus(hwndGame)

	assert.Len(t, f.display.appliedModes(), 1, "profile was never replaced, no second apply")
	snap := f.auto.Snapshot()
	assert.Nil(t, snap.RevertDeadline)
	assert.Equal(t, "game.exe", snap.ActiveProfile)
	assert.Equal(t,
		[]string{domain.StatusChanged, domain.StatusRevertPending, domain.StatusChanged},
		f.notifier.statuses())

	// The cancelled countdown must not fire later.
	f.clock.Advance(5 * time.Second)
	f.auto.Tick()
	assert.Len(t, f.display.appliedModes(), 1)
}

// TestHandleFocus_SameProfileTwiceIsSilent verifies redundant triggers emit nothing
func TestHandleFocus_SameProfileTwiceIsSilent(t *testing.T) {
	f := newFixture(profileConfig())

	f.auto.HandleFocus(hwndGame)
	f.auto.HandleFocus(hwndGame)

	assert.Len(t, f.display.appliedModes(), 1)
	assert.Len(t, f.notifier.all(), 1)
}

// TestHandleFocus_SwitchProfileKeepsOriginal verifies the original is not overwritten
func TestHandleFocus_SwitchProfileKeepsOriginal(t *testing.T) {
	f := newFixture(profileConfig())

	f.auto.HandleFocus(hwndGame)
	f.auto.HandleFocus(hwndRacer)

	assert.Equal(t, []domain.Resolution{gameMode, racerMode}, f.display.appliedModes())
	snap := f.auto.Snapshot()
	assert.Equal(t, "racer", snap.ActiveProfile, "stem rule matched Racer.exe")
	require.NotNil(t, snap.OriginalResolution)
	assert.Equal(t, desktopMode, *snap.OriginalResolution)
}

// TestHandleFocus_SwitchWhilePendingClearsCountdown verifies a new profile cancels the old revert
func TestHandleFocus_SwitchWhilePendingClearsCountdown(t *testing.T) {
	f := newFixture(profileConfig())

	f.auto.HandleFocus(hwndGame)
	f.auto.HandleFocus(hwndEditor)
	f.auto.HandleFocus(hwndRacer)

	snap := f.auto.Snapshot()
	assert.Nil(t, snap.RevertDeadline)
	assert.Equal(t, "racer", snap.ActiveProfile)
	assert.Equal(t, desktopMode, *snap.OriginalResolution)
}

// TestHandleFocus_ApplyFailureLeavesStateUnchanged verifies no partial activation
func TestHandleFocus_ApplyFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(profileConfig())
	f.display.setApplyErr(domain.ErrModeNotFound)

	f.auto.HandleFocus(hwndGame)

	assert.True(t, f.auto.Snapshot().Idle())
	events := f.notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.StatusError, events[0].Status)
	assert.Contains(t, events[0].Error, "not found")

	// Retried naturally on the next focus event.
	f.display.setApplyErr(nil)
	f.auto.HandleFocus(hwndGame)
	assert.Equal(t, "game.exe", f.auto.Snapshot().ActiveProfile)
}

// TestHandleFocus_FailedSwitchCancelsPendingRevert verifies a matching profile
// cancels the countdown even when its own mode is rejected
func TestHandleFocus_FailedSwitchCancelsPendingRevert(t *testing.T) {
	f := newFixture(profileConfig())

	f.auto.HandleFocus(hwndGame)
	f.auto.HandleFocus(hwndEditor)
	f.display.setApplyErr(errors.New("rejected"))
	f.auto.HandleFocus(hwndRacer)

	snap := f.auto.Snapshot()
	assert.Equal(t, "game.exe", snap.ActiveProfile)
	assert.Nil(t, snap.RevertDeadline)

	f.display.setApplyErr(nil)
	f.clock.Advance(2 * time.Second)
	f.auto.Tick()
	assert.Equal(t, []domain.Resolution{gameMode}, f.display.appliedModes(),
		"display must not revert while a profiled process has focus")

	// Leaving the profiled process starts a fresh countdown.
	f.auto.HandleFocus(hwndEditor)
	assert.NotNil(t, f.auto.Snapshot().RevertDeadline)
}

// TestHandleFocus_UnresolvedProcessDropped verifies lookup failures change nothing
func TestHandleFocus_UnresolvedProcessDropped(t *testing.T) {
	f := newFixture(profileConfig())

	f.auto.HandleFocus(hwndGame)
	f.auto.HandleFocus(hwndSystem)
	f.auto.HandleFocus(0)

	snap := f.auto.Snapshot()
	assert.Nil(t, snap.RevertDeadline, "unresolvable focus must not start a revert")
	assert.Len(t, f.notifier.all(), 1)
}

// TestHandleFocus_CurrentReadFailureStillApplies verifies a missing original doesn't block activation
func TestHandleFocus_CurrentReadFailureStillApplies(t *testing.T) {
	f := newFixture(profileConfig())
	f.display.currentErr = errors.New("no display")

	f.auto.HandleFocus(hwndGame)

	snap := f.auto.Snapshot()
	assert.Equal(t, "game.exe", snap.ActiveProfile)
	assert.Nil(t, snap.OriginalResolution)
}

// TestTick_RevertBoundary verifies the revert fires at exactly the delay, not before
func TestTick_RevertBoundary(t *testing.T) {
	f := newFixture(profileConfig())

	f.auto.HandleFocus(hwndGame)
	f.auto.HandleFocus(hwndEditor)

	f.clock.Advance(999 * time.Millisecond)
	f.auto.Tick()
	assert.Len(t, f.display.appliedModes(), 1, "must not revert at t0+999ms")
	assert.Equal(t, "game.exe", f.auto.Snapshot().ActiveProfile)

	f.clock.Advance(time.Millisecond)
	f.auto.Tick()
	assert.Equal(t, []domain.Resolution{gameMode, desktopMode}, f.display.appliedModes())
	assert.True(t, f.auto.Snapshot().Idle())
	assert.Equal(t,
		[]string{domain.StatusChanged, domain.StatusRevertPending, domain.StatusReverted},
		f.notifier.statuses())
}

// TestTick_DefaultProfileWins verifies defaultProfile beats the captured original
func TestTick_DefaultProfileWins(t *testing.T) {
	cfg := profileConfig()
	def := domain.Resolution{Width: 1920, Height: 1080, FrequencyHz: 60}
	cfg.AutoRes.DefaultProfile = &def
	f := newFixture(cfg)

	f.auto.HandleFocus(hwndGame)
	f.auto.HandleFocus(hwndEditor)
	f.clock.Advance(time.Second)
	f.auto.Tick()

	applied := f.display.appliedModes()
	require.Len(t, applied, 2)
	assert.Equal(t, def, applied[1])
	assert.NotEqual(t, desktopMode, applied[1])
}

// TestTick_ReadsDelayLive verifies the delay is re-read on every tick
func TestTick_ReadsDelayLive(t *testing.T) {
	f := newFixture(profileConfig())
	f.auto.HandleFocus(hwndGame)
	f.auto.HandleFocus(hwndEditor)

	f.config.update(func(c *domain.AutomationConfig) { c.AutoRes.RevertDelayMs = 60000 })
	f.clock.Advance(2 * time.Second)
	f.auto.Tick()
	assert.Equal(t, "game.exe", f.auto.Snapshot().ActiveProfile)

	f.config.update(func(c *domain.AutomationConfig) { c.AutoRes.RevertDelayMs = 1500 })
	f.auto.Tick()
	assert.True(t, f.auto.Snapshot().Idle())
}

// TestTick_NoTargetStillClears verifies Idle is reached when nothing can be restored
func TestTick_NoTargetStillClears(t *testing.T) {
	f := newFixture(profileConfig())
	f.display.currentErr = errors.New("no display")

	f.auto.HandleFocus(hwndGame)
	f.auto.HandleFocus(hwndEditor)
	f.clock.Advance(time.Second)
	f.auto.Tick()

	assert.Len(t, f.display.appliedModes(), 1)
	assert.True(t, f.auto.Snapshot().Idle())
	assert.NotContains(t, f.notifier.statuses(), domain.StatusReverted)
}

// TestTick_FailureRetriesUntilSuccess verifies state survives a failed revert
func TestTick_FailureRetriesUntilSuccess(t *testing.T) {
	f := newFixture(profileConfig())

	f.auto.HandleFocus(hwndGame)
	f.auto.HandleFocus(hwndEditor)
	f.clock.Advance(time.Second)

	f.display.setApplyErr(domain.ErrModeChangeRejected)
	f.auto.Tick()
	f.clock.Advance(time.Second)
	f.auto.Tick()

	snap := f.auto.Snapshot()
	assert.Equal(t, "game.exe", snap.ActiveProfile)
	assert.NotNil(t, snap.OriginalResolution)
	assert.NotNil(t, snap.RevertDeadline)
	errorEvents := 0
	for _, s := range f.notifier.statuses() {
		if s == domain.StatusError {
			errorEvents++
		}
	}
	assert.Equal(t, 1, errorEvents, "error signal is emitted once per pending revert")

	f.display.setApplyErr(nil)
	f.clock.Advance(time.Second)
	f.auto.Tick()
	assert.True(t, f.auto.Snapshot().Idle())
}

// TestTick_NothingPending verifies ticks are no-ops when idle
func TestTick_NothingPending(t *testing.T) {
	f := newFixture(profileConfig())

	f.clock.Advance(time.Hour)
	f.auto.Tick()

	assert.Empty(t, f.display.appliedModes())
	assert.Empty(t, f.notifier.all())
}

// TestForceRevert verifies the pending countdown is expired immediately
func TestForceRevert(t *testing.T) {
	cfg := profileConfig()
	cfg.AutoRes.RevertDelayMs = 3600 * 1000
	f := newFixture(cfg)

	assert.False(t, f.auto.ForceRevert(), "nothing pending")

	f.auto.HandleFocus(hwndGame)
	f.auto.HandleFocus(hwndEditor)
	f.auto.Tick()
	assert.Equal(t, "game.exe", f.auto.Snapshot().ActiveProfile)

	assert.True(t, f.auto.ForceRevert())
	f.auto.Tick()

	assert.True(t, f.auto.Snapshot().Idle())
	assert.Equal(t, desktopMode, f.display.appliedModes()[1])
}

// TestRestore verifies shutdown reverts and releases immediately
func TestRestore(t *testing.T) {
	cfg := profileConfig()
	cfg.MouseLock = []domain.CursorLockRule{{MatchKey: "game"}}
	f := newFixture(cfg)
	f.windows.setRect(hwndGame, domain.Rect{Left: 0, Top: 0, Right: 800, Bottom: 600})

	f.auto.HandleFocus(hwndGame)
	require.NoError(t, f.auto.Restore())

	assert.True(t, f.auto.Snapshot().Idle())
	assert.Equal(t, desktopMode, f.display.appliedModes()[1])
	assert.Equal(t, 1, f.windows.releases)

	// Idempotent when idle.
	require.NoError(t, f.auto.Restore())
	assert.Len(t, f.display.appliedModes(), 2)
}

// TestRestore_ApplyFailure verifies the error surfaces and state is kept
func TestRestore_ApplyFailure(t *testing.T) {
	f := newFixture(profileConfig())
	f.auto.HandleFocus(hwndGame)
	f.display.setApplyErr(domain.ErrModeChangeRejected)

	err := f.auto.Restore()

	assert.ErrorIs(t, err, domain.ErrModeChangeRejected)
	assert.Equal(t, "game.exe", f.auto.Snapshot().ActiveProfile)
}

// TestNoRules_StaysIdle verifies arbitrary focus churn is silent without rules
func TestNoRules_StaysIdle(t *testing.T) {
	f := newFixture(domain.DefaultAutomationConfig())

	for _, h := range []domain.WindowHandle{hwndGame, hwndEditor, hwndRacer, hwndSystem, hwndGame, hwndShooter} {
		f.auto.HandleFocus(h)
		f.clock.Advance(300 * time.Millisecond)
		f.auto.Tick()
		f.auto.EnforceLock()
	}

	assert.True(t, f.auto.Snapshot().Idle())
	assert.Empty(t, f.notifier.all())
	assert.Empty(t, f.display.appliedModes())
	_, clips := f.windows.lastClip()
	assert.Zero(t, clips)
	assert.Zero(t, f.windows.releases)
}

// TestFocusChurn_PendingRevertHasProfile walks a churn sequence and checks a
// pending revert always belongs to an active profile with a saved original.
func TestFocusChurn_PendingRevertHasProfile(t *testing.T) {
	f := newFixture(profileConfig())
	seq := []domain.WindowHandle{hwndGame, hwndEditor, hwndRacer, hwndEditor, hwndSystem, hwndGame, hwndEditor}

	for i, h := range seq {
		f.auto.HandleFocus(h)
		f.clock.Advance(400 * time.Millisecond)
		f.auto.Tick()
		snap := f.auto.Snapshot()
		if snap.RevertDeadline != nil {
			assert.NotEmpty(t, snap.ActiveProfile, "step %d", i)
		}
		if snap.ActiveProfile != "" {
			assert.NotNil(t, snap.OriginalResolution, "step %d", i)
		}
	}
}
