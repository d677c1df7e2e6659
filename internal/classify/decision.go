package classify

import (
	"time"
)

// Decision origin values used in logs and metrics.
const (
	OriginSources  = "sources"
	OriginFallback = "fallback"
	OriginOverride = "override"
	OriginCache    = "cache"
)

// Decision is the final classification verdict for one artist, together with
// the evidence that produced it. Decisions are append only once persisted;
// a changed verdict is a new Decision.
type Decision struct {
	ID                string          // unique decision id
	Artist            ArtistIdentity  // the classified artist
	Label             Label           // final label, never LabelNone
	IsArtificial      bool            // derived from the label, except under the band policy
	Confidence        float64         // agreement derived confidence in [0,1]
	AgreeingSources   []string        // sources backing the label, sorted
	BandPolicyApplied bool            // true when the band policy forced the artificial verdict
	UsedFallback      bool            // true when the LLM fallback produced the label
	FromCache         bool            // true when served from the decision cache
	FromOverride      bool            // true when a manual override resolved the artist
	Reason            string          // human readable explanation for the audit trail
	Signals           []SourceSignal  // all source signals gathered for this decision
	Fallback          *FallbackResult // the model verdict when UsedFallback, nil otherwise
	FallbackDuration  time.Duration   // how long the fallback call took
	DecidedAt         time.Time
}

// ShouldAct reports whether playback actions may run on this decision:
// the artist must be artificial and the confidence at or above threshold.
// Overrides act unconditionally.
func (d *Decision) ShouldAct(threshold float64) bool {
	if !d.IsArtificial {
		return false
	}
	if d.FromOverride {
		return true
	}
	return d.Confidence >= threshold
}
