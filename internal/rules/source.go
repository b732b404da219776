package rules

import (
	"context"
	"sort"
)

// Source loads the enabled rules of a scope, highest priority first.
type Source interface {
	ListEnabled(ctx context.Context, scope Scope, limit int) ([]Rule, error)
}

func sortByPriority(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
}
