package classify

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sig(source string, label Label) SourceSignal {
	return SourceSignal{Source: source, Label: label}
}

func failedSig(source string) SourceSignal {
	return SourceSignal{Source: source, Err: "connection refused"}
}

func TestAggregateArtificialAgreement(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(2, true)

	// Two sources agree on the artificial class with different labels, one
	// source has no data. The more specific label wins and the source with
	// no data does not dilute confidence.
	result := agg.Aggregate([]SourceSignal{
		sig("wikidata", LabelVTuber),
		sig("musicbrainz", LabelNone),
		sig("lastfm", LabelVirtualIdol),
	})

	assert.Equal(t, LabelVTuber, result.Label)
	assert.True(t, result.IsArtificial)
	assert.True(t, result.Conclusive)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
	assert.Equal(t, []string{"lastfm", "wikidata"}, result.AgreeingSources)
	assert.False(t, result.BandPolicyApplied)
}

func TestAggregateInsufficientAgreement(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(2, true)

	// A single human vote cannot reach the threshold; the result fails open
	// to unknown with confidence reflecting how few sources answered.
	result := agg.Aggregate([]SourceSignal{
		sig("wikidata", LabelHuman),
		sig("musicbrainz", LabelNone),
		sig("lastfm", LabelNone),
	})

	assert.Equal(t, LabelUnknown, result.Label)
	assert.False(t, result.IsArtificial)
	assert.False(t, result.Conclusive)
	assert.InDelta(t, 1.0/3.0, result.Confidence, 1e-9)
	assert.Empty(t, result.AgreeingSources)
}

func TestAggregateHumanAgreement(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(2, true)

	result := agg.Aggregate([]SourceSignal{
		sig("wikidata", LabelHuman),
		sig("musicbrainz", LabelHuman),
		sig("lastfm", LabelNone),
	})

	assert.Equal(t, LabelHuman, result.Label)
	assert.False(t, result.IsArtificial)
	assert.True(t, result.Conclusive)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
}

func TestAggregateBandPrecedence(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(2, false)

	// Human and band votes agree the act is real; band is the more
	// specific label and wins the tie.
	result := agg.Aggregate([]SourceSignal{
		sig("wikidata", LabelBand),
		sig("musicbrainz", LabelHuman),
	})

	assert.Equal(t, LabelBand, result.Label)
	assert.False(t, result.IsArtificial)
	assert.True(t, result.Conclusive)
}

func TestAggregateBandClearsThresholdOverHumanMajority(t *testing.T) {
	t.Parallel()

	signals := []SourceSignal{
		sig("wikidata", LabelHuman),
		sig("musicbrainz", LabelHuman),
		sig("lastfm", LabelBand),
	}

	// At threshold 1 both classes clear it and band takes precedence even
	// against a human majority.
	result := NewAggregator(1, false).Aggregate(signals)
	assert.Equal(t, LabelBand, result.Label)
	assert.False(t, result.IsArtificial)

	// At threshold 2 only the human votes clear it.
	result = NewAggregator(2, false).Aggregate(signals)
	assert.Equal(t, LabelHuman, result.Label)
}

func TestAggregateBandPolicy(t *testing.T) {
	t.Parallel()

	signals := []SourceSignal{
		{Source: "wikidata", Label: LabelBand, VirtualHint: true},
		sig("musicbrainz", LabelHuman),
		sig("lastfm", LabelHuman),
	}

	t.Run("enabled forces artificial over human majority", func(t *testing.T) {
		t.Parallel()
		result := NewAggregator(2, true).Aggregate(signals)

		assert.Equal(t, LabelBand, result.Label)
		assert.True(t, result.IsArtificial)
		assert.True(t, result.BandPolicyApplied)
		assert.True(t, result.Conclusive)
		assert.Equal(t, []string{"wikidata"}, result.AgreeingSources)
	})

	t.Run("disabled leaves the human majority in place", func(t *testing.T) {
		t.Parallel()
		result := NewAggregator(2, false).Aggregate(signals)

		assert.False(t, result.IsArtificial)
		assert.False(t, result.BandPolicyApplied)
		assert.True(t, result.Conclusive)
	})
}

func TestAggregateFailedSourcesExcludedFromDenominator(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(2, true)

	// An errored source neither votes nor lowers confidence.
	result := agg.Aggregate([]SourceSignal{
		sig("wikidata", LabelVocaloid),
		failedSig("musicbrainz"),
		sig("lastfm", LabelVocaloid),
	})

	assert.Equal(t, LabelVocaloid, result.Label)
	assert.True(t, result.IsArtificial)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
}

func TestAggregateLabelTieBreaksBySpecificity(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(2, true)

	result := agg.Aggregate([]SourceSignal{
		sig("wikidata", LabelVocaloid),
		sig("lastfm", LabelVTuber),
	})

	// One vote each, vtuber outranks vocaloid.
	assert.Equal(t, LabelVTuber, result.Label)
}

func TestAggregateMixedVotes(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(2, true)

	result := agg.Aggregate([]SourceSignal{
		sig("wikidata", LabelVTuber),
		sig("musicbrainz", LabelHuman),
		sig("lastfm", LabelVTuber),
	})

	assert.Equal(t, LabelVTuber, result.Label)
	assert.True(t, result.IsArtificial)
	assert.InDelta(t, 2.0/3.0, result.Confidence, 1e-9)
}

func TestAggregateSingleSourceAgreement(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(1, true)

	result := agg.Aggregate([]SourceSignal{
		sig("wikidata", LabelHuman),
	})

	assert.Equal(t, LabelHuman, result.Label)
	assert.True(t, result.Conclusive)
}

func TestAggregateNoSignals(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(2, true)

	result := agg.Aggregate(nil)

	assert.Equal(t, LabelUnknown, result.Label)
	assert.Zero(t, result.Confidence)
	assert.False(t, result.Conclusive)
}

func TestAggregateOrderIndependence(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(2, true)
	signals := []SourceSignal{
		sig("wikidata", LabelVTuber),
		sig("musicbrainz", LabelHuman),
		sig("lastfm", LabelVirtualIdol),
		failedSig("extra"),
	}

	baseline := agg.Aggregate(signals)
	require.True(t, baseline.Conclusive)

	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 20; n++ {
		shuffled := make([]SourceSignal, len(signals))
		copy(shuffled, signals)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		result := agg.Aggregate(shuffled)
		assert.Equal(t, baseline.Label, result.Label)
		assert.Equal(t, baseline.IsArtificial, result.IsArtificial)
		assert.InDelta(t, baseline.Confidence, result.Confidence, 1e-9)
		assert.Equal(t, baseline.AgreeingSources, result.AgreeingSources)
	}
}
