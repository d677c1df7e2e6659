package classify

import (
	"context"
	"time"
)

// ArtistIdentity identifies an artist to classify. ID is the playback
// provider's stable artist identifier, Name the display name used for
// knowledge source lookups.
type ArtistIdentity struct {
	ID   string
	Name string
}

// SourceSignal is one knowledge source's verdict about an artist.
// A signal with Label == LabelNone means the source responded but had no
// usable data; Err set means the lookup failed and the signal does not
// count towards the confidence denominator.
type SourceSignal struct {
	Source      string        // adapter name, e.g. wikidata
	Label       Label         // reported label, LabelNone when no data
	Confidence  float64       // source local confidence in [0,1], 0 when no data
	VirtualHint bool          // band labels annotated with a virtual or fictional indicator
	Evidence    string        // opaque evidence text for the audit trail
	URL         string        // canonical entity URL when the source has one
	QueriedAt   time.Time     // when the lookup started
	Duration    time.Duration // how long the lookup took
	Err         string        // lookup error text, empty on success
}

// HasLabel reports whether the source produced a usable label.
func (s *SourceSignal) HasLabel() bool {
	return s.Err == "" && s.Label != LabelNone
}

// Failed reports whether the lookup errored or timed out.
func (s *SourceSignal) Failed() bool {
	return s.Err != ""
}

// SourceAdapter is a knowledge source capable of looking up one artist.
// Implementations must honor context cancellation and return an error
// rather than block past their configured timeout.
type SourceAdapter interface {
	// Name returns the stable adapter name used in signals and metrics.
	Name() string
	// Lookup queries the source for the given artist. A nil signal with a
	// nil error is not allowed; sources with no data return a signal with
	// Label == LabelNone.
	Lookup(ctx context.Context, artist ArtistIdentity) (*SourceSignal, error)
}
