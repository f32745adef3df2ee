package policy

import (
	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// RuleSet is an ordered view over one configuration snapshot.
type RuleSet struct {
	profiles []domain.ResolutionProfile
	locks    []domain.CursorLockRule
}

// NewRuleSet builds a rule set from a config snapshot. Slices are used as-is,
// so callers must pass a snapshot they own.
func NewRuleSet(cfg domain.AutomationConfig) *RuleSet {
	return &RuleSet{
		profiles: cfg.AutoRes.Profiles,
		locks:    cfg.MouseLock,
	}
}

// MatchProfile returns the resolution profile for a process, if any.
func (s *RuleSet) MatchProfile(name domain.ProcessName) (domain.ResolutionProfile, bool) {
	return Match(name, s.profiles)
}

// MatchLock returns the cursor-lock rule for a process, if any.
func (s *RuleSet) MatchLock(name domain.ProcessName) (domain.CursorLockRule, bool) {
	return Match(name, s.locks)
}

// Profiles returns the profiles in priority order.
func (s *RuleSet) Profiles() []domain.ResolutionProfile {
	return s.profiles
}

// Locks returns the cursor-lock rules in priority order.
func (s *RuleSet) Locks() []domain.CursorLockRule {
	return s.locks
}

// Empty reports whether no rules are configured.
func (s *RuleSet) Empty() bool {
	return len(s.profiles) == 0 && len(s.locks) == 0
}
