package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlahtinen/trackguard/internal/classify"
	"github.com/tlahtinen/trackguard/internal/conf"
)

// newTestStore opens a throwaway SQLite database in a temp dir.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testTrack() *Track {
	return &Track{
		ID:         "t1",
		URI:        "spotify:track:t1",
		Name:       "Tell Your World",
		DurationMS: 255000,
		AlbumID:    "al1",
		Album:      &Album{ID: "al1", Name: "Tell Your World EP", ReleaseDate: "2012-03-12"},
		Artists: []Artist{
			{ID: "ar1", Name: "livetune"},
			{ID: "ar2", Name: "Hatsune Miku"},
		},
	}
}

func TestSaveTrackUpsert(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveTrack(testTrack()))

	var first Artist
	require.NoError(t, store.DB.First(&first, "id = ?", "ar2").Error)
	firstSeen := first.FirstSeen
	require.False(t, firstSeen.IsZero())

	// Saving the same track again must not duplicate rows or reset
	// first-seen timestamps.
	require.NoError(t, store.SaveTrack(testTrack()))

	var artistCount, trackCount int64
	require.NoError(t, store.DB.Model(&Artist{}).Count(&artistCount).Error)
	require.NoError(t, store.DB.Model(&Track{}).Count(&trackCount).Error)
	assert.Equal(t, int64(2), artistCount)
	assert.Equal(t, int64(1), trackCount)

	var again Artist
	require.NoError(t, store.DB.First(&again, "id = ?", "ar2").Error)
	assert.Equal(t, firstSeen.Unix(), again.FirstSeen.Unix())
}

func TestSavePlayAndGetPlays(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveTrack(testTrack()))

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.SavePlay(&Play{
			TrackID:     "t1",
			ContextType: "playlist",
			ContextURI:  "spotify:playlist:pl1",
			ProgressMS:  i * 1000,
			PlayedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	plays, total, err := store.GetPlays(2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, plays, 2)

	// Newest first.
	assert.Equal(t, 2000, plays[0].ProgressMS)
	require.NotNil(t, plays[0].Track)
	assert.Equal(t, "Tell Your World", plays[0].Track.Name)
	assert.Len(t, plays[0].Track.Artists, 2)

	rest, _, err := store.GetPlays(2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, 0, rest[0].ProgressMS)
}

func TestSaveDecisionRoundTrip(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	decision := NewDecisionRecord(&classify.Decision{
		ID:              uuid.NewString(),
		Artist:          classify.ArtistIdentity{ID: "ar2", Name: "Hatsune Miku"},
		Label:           classify.LabelVocaloid,
		IsArtificial:    true,
		Confidence:      0.67,
		AgreeingSources: []string{"wikidata", "musicbrainz"},
		UsedFallback:    true,
		Reason:          "vocaloid agreement across sources",
		DecidedAt:       now,
		Signals: []classify.SourceSignal{
			{Source: "wikidata", Label: classify.LabelVocaloid, Confidence: 0.9,
				Evidence: "instance of vocaloid", QueriedAt: now, Duration: 120 * time.Millisecond},
			{Source: "lastfm", Err: "connection refused", QueriedAt: now},
		},
	})
	llm := &LLMResult{
		Model:        "qwen2.5:7b",
		Label:        "vocaloid",
		IsArtificial: true,
		Confidence:   0.8,
		Reason:       "synthesized vocals",
		DurationMS:   1400,
	}
	require.NoError(t, store.SaveDecision(decision, llm))

	got, err := store.GetDecision(decision.ID)
	require.NoError(t, err)

	assert.Equal(t, "vocaloid", got.Label)
	assert.True(t, got.IsArtificial)
	assert.InDelta(t, 0.67, got.Confidence, 0.001)
	assert.Equal(t, []string{"wikidata", "musicbrainz"}, got.AgreeingSourceNames())

	require.Len(t, got.SourceResults, 2)
	assert.Equal(t, "wikidata", got.SourceResults[0].Source)
	assert.Equal(t, int64(120), got.SourceResults[0].DurationMS)
	assert.Equal(t, "connection refused", got.SourceResults[1].Error)

	require.NotNil(t, got.LLMResult)
	assert.Equal(t, "qwen2.5:7b", got.LLMResult.Model)
	assert.Equal(t, decision.ID, got.LLMResult.DecisionID)
	assert.Equal(t, int64(1400), got.LLMResult.DurationMS)
}

func TestNewLLMResultRecord(t *testing.T) {
	decision := &classify.Decision{
		ID:           "d1",
		Label:        classify.LabelAIGenerated,
		IsArtificial: true,
		UsedFallback: true,
		Fallback: &classify.FallbackResult{
			Label:        classify.LabelAIGenerated,
			IsArtificial: true,
			Confidence:   0.85,
			Reason:       "model call",
			Model:        "granite4:tiny-h",
		},
		FallbackDuration: 2 * time.Second,
	}

	record := NewLLMResultRecord(decision)
	require.NotNil(t, record)
	assert.Equal(t, "granite4:tiny-h", record.Model)
	assert.Equal(t, "ai_generated", record.Label)
	assert.True(t, record.IsArtificial)
	assert.InDelta(t, 0.85, record.Confidence, 1e-9)
	assert.Equal(t, int64(2000), record.DurationMS)

	// Decisions the sources settled carry no fallback row.
	assert.Nil(t, NewLLMResultRecord(&classify.Decision{ID: "d2", UsedFallback: false}))
}

func TestGetDecisionsFilterAndPagination(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i, artistID := range []string{"ar1", "ar2", "ar2"} {
		record := NewDecisionRecord(&classify.Decision{
			ID:        uuid.NewString(),
			Artist:    classify.ArtistIdentity{ID: artistID, Name: artistID},
			Label:     classify.LabelHuman,
			DecidedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, store.SaveDecision(record, nil))
	}

	all, total, err := store.GetDecisions("", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "ar2", all[0].ArtistID)

	filtered, total, err := store.GetDecisions("ar2", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, filtered, 1)
	assert.Equal(t, "ar2", filtered[0].ArtistID)
}

func TestGetLatestDecisionForArtist(t *testing.T) {
	store := newTestStore(t)

	older := NewDecisionRecord(&classify.Decision{
		ID:        uuid.NewString(),
		Artist:    classify.ArtistIdentity{ID: "ar1", Name: "livetune"},
		Label:     classify.LabelUnknown,
		DecidedAt: time.Now().Add(-time.Hour),
	})
	newer := NewDecisionRecord(&classify.Decision{
		ID:           uuid.NewString(),
		Artist:       classify.ArtistIdentity{ID: "ar1", Name: "livetune"},
		Label:        classify.LabelHuman,
		Confidence:   1.0,
		DecidedAt:    time.Now(),
		FromOverride: true,
	})
	require.NoError(t, store.SaveDecision(older, nil))
	require.NoError(t, store.SaveDecision(newer, nil))

	got, err := store.GetLatestDecisionForArtist("ar1")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
	assert.True(t, got.FromOverride)

	_, err = store.GetLatestDecisionForArtist("nobody")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestOverrideCRUD(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveOverride(&Override{
		ArtistID:     "ar2",
		ArtistName:   "Hatsune Miku",
		IsArtificial: true,
		Reason:       "vocaloid, always block",
	}))

	got, err := store.GetOverride("ar2")
	require.NoError(t, err)
	assert.True(t, got.IsArtificial)
	assert.False(t, got.UpdatedAt.IsZero())

	// Upsert flips the verdict in place.
	require.NoError(t, store.SaveOverride(&Override{
		ArtistID:     "ar2",
		ArtistName:   "Hatsune Miku",
		IsArtificial: false,
		Reason:       "collab project, human producers",
	}))
	require.NoError(t, store.SaveOverride(&Override{ArtistID: "ar1", ArtistName: "livetune"}))

	overrides, err := store.GetAllOverrides()
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	assert.Equal(t, "ar1", overrides[0].ArtistID)
	assert.False(t, overrides[1].IsArtificial)

	require.NoError(t, store.DeleteOverride("ar2"))
	_, err = store.GetOverride("ar2")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	err = store.DeleteOverride("ar2")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestSaveAction(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveAction(&TrackAction{
		TrackID:  "t1",
		ArtistID: "ar2",
		Action:   "skip",
		Status:   "success",
		Attempts: 1,
	}))
	require.NoError(t, store.SaveAction(&TrackAction{
		TrackID:  "t1",
		ArtistID: "ar2",
		Action:   "remove_from_playlist",
		Status:   "failed",
		Attempts: 3,
		Error:    "rate limited",
	}))

	var actions []TrackAction
	require.NoError(t, store.DB.Order("id").Find(&actions).Error)
	require.Len(t, actions, 2)
	assert.Equal(t, "skip", actions[0].Action)
	assert.False(t, actions[0].ExecutedAt.IsZero())
	assert.Equal(t, "rate limited", actions[1].Error)
}

func TestGetArtistNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetArtist("missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}
