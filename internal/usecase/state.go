package usecase

import (
	"time"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// automationState is the single shared record all execution contexts read and
// mutate under Automator.mu.
//
// Invariants:
//   - revertDeadline != nil implies activeProfile != nil
//   - originalResolution is captured before the first switch and never
//     overwritten while a profile stays active
//   - lockedWindow is cleared as soon as the foreground window stops matching
type automationState struct {
	originalResolution *domain.Resolution
	activeProfile      *domain.ResolutionProfile
	revertDeadline     *time.Time

	lockedWindow   domain.WindowHandle
	lockedPaddingX int
	lockedPaddingY int
	lockedProcess  *domain.ProcessName

	// lockGen changes whenever the lock target changes, so the enforcer can
	// discard a geometry read that raced with a focus change.
	lockGen uint64

	// revertFailures counts failed applies for the current pending revert.
	revertFailures int
}

func (s *automationState) snapshot() domain.StateSnapshot {
	snap := domain.StateSnapshot{
		LockedWindow:   s.lockedWindow,
		LockedPaddingX: s.lockedPaddingX,
		LockedPaddingY: s.lockedPaddingY,
	}
	if s.originalResolution != nil {
		orig := *s.originalResolution
		snap.OriginalResolution = &orig
	}
	if s.activeProfile != nil {
		snap.ActiveProfile = s.activeProfile.MatchKey
	}
	if s.revertDeadline != nil {
		deadline := *s.revertDeadline
		snap.RevertDeadline = &deadline
	}
	if s.lockedProcess != nil {
		snap.LockedProcess = s.lockedProcess.Raw
	}
	return snap
}

// clearResolution returns the resolution half of the state to Idle.
func (s *automationState) clearResolution() {
	s.activeProfile = nil
	s.originalResolution = nil
	s.revertDeadline = nil
	s.revertFailures = 0
}

// clearLock drops the cursor-lock target.
func (s *automationState) clearLock() {
	s.lockedWindow = 0
	s.lockedPaddingX = 0
	s.lockedPaddingY = 0
	s.lockedProcess = nil
	s.lockGen++
}
