// Package policy matches focused processes against the ordered automation rules.
// Rule order is priority: the first rule whose key matches wins.
package policy

import (
	"strings"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// Rule is anything keyed by a process match key.
type Rule interface {
	Key() string
}

// Match returns the first rule in list order whose key equals, case-insensitively,
// either the full process name or its filename stem.
func Match[R Rule](name domain.ProcessName, rules []R) (R, bool) {
	var zero R
	if name.IsZero() {
		return zero, false
	}

	for _, r := range rules {
		key := strings.TrimSpace(r.Key())
		if key == "" {
			continue
		}
		if strings.EqualFold(key, name.Raw) || strings.EqualFold(key, name.Stem) {
			return r, true
		}
	}

	return zero, false
}

// SameKey reports whether two match keys refer to the same rule.
func SameKey(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
