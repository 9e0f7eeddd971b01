package policy

import (
	"sort"

	"github.com/pixel-learning/image-label-pipeline/pkg/results"
)

// Default thresholds
const (
	DefaultMinConfidence = 70.0
	DefaultMaxLabels     = 10
)

// Policy bounds which labels are worth keeping
type Policy struct {
	MinConfidence float64
	MaxLabels     int
}

// Default returns the stock policy
func Default() Policy {
	return Policy{MinConfidence: DefaultMinConfidence, MaxLabels: DefaultMaxLabels}
}

// Apply filters out labels below the confidence floor, orders the
// rest confidence-descending (name ascending on ties, for
// determinism), and truncates to MaxLabels. The input slice is left
// untouched. An empty result is a legitimate outcome, not an error.
func (p Policy) Apply(labels []results.Label) []results.Label {
	kept := make([]results.Label, 0, len(labels))
	for _, l := range labels {
		if l.Confidence >= p.MinConfidence {
			kept = append(kept, l)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Confidence != kept[j].Confidence {
			return kept[i].Confidence > kept[j].Confidence
		}
		return kept[i].Name < kept[j].Name
	})

	if p.MaxLabels > 0 && len(kept) > p.MaxLabels {
		kept = kept[:p.MaxLabels]
	}
	return kept
}
