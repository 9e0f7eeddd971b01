package track

import (
	"sort"
	"strings"

	"github.com/pixel-learning/image-label-pipeline/pkg/results"
)

// Rule binds one object-key prefix to a deployment track
type Rule struct {
	Prefix string
	Track  results.Track
}

// Resolver maps object keys onto tracks through an ordered prefix
// table. Longest prefix wins; equal lengths keep declaration order.
type Resolver struct {
	rules []Rule
}

// NewResolver builds a resolver from an ordered rule list
func NewResolver(rules []Rule) *Resolver {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Prefix) > len(ordered[j].Prefix)
	})
	return &Resolver{rules: ordered}
}

// Resolve returns the track for key, or false when no prefix matches
func (r *Resolver) Resolve(key string) (results.Track, bool) {
	for _, rule := range r.rules {
		if strings.HasPrefix(key, rule.Prefix) {
			return rule.Track, true
		}
	}
	return "", false
}
