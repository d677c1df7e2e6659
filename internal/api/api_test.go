package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlahtinen/trackguard/internal/classify"
	"github.com/tlahtinen/trackguard/internal/conf"
	"github.com/tlahtinen/trackguard/internal/datastore"
)

// stubEngine returns a canned decision for any reclassification request.
type stubEngine struct {
	decision *classify.Decision
	err      error
	calls    int
}

func (e *stubEngine) Reclassify(ctx context.Context, artist classify.ArtistIdentity) (*classify.Decision, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	d := *e.decision
	d.Artist = artist
	return &d, nil
}

func newTestController(t *testing.T, engine Reclassifier) (*Controller, datastore.Interface) {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "api.db")

	store := datastore.New(settings, nil)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	return New(settings, store, engine, classify.NewOverrideStore(), nil), store
}

func doRequest(c *Controller, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	c, _ := newTestController(t, &stubEngine{})

	rec := doRequest(c, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetPlaysPagination(t *testing.T) {
	c, store := newTestController(t, &stubEngine{})

	require.NoError(t, store.SaveTrack(&datastore.Track{
		ID: "t1", URI: "spotify:track:t1", Name: "Song",
		Artists: []datastore.Artist{{ID: "ar1", Name: "Hatsune Miku"}},
	}))
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.SavePlay(&datastore.Play{
			TrackID:  "t1",
			PlayedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	rec := doRequest(c, http.MethodGet, "/api/v1/plays?limit=2&offset=0", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PaginatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.Total)
	assert.Equal(t, 2, resp.Limit)
	assert.Equal(t, 1, resp.CurrentPage)
	assert.Equal(t, 2, resp.TotalPages)

	data, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, data, 2)
}

func TestGetDecision(t *testing.T) {
	c, store := newTestController(t, &stubEngine{})

	record := datastore.NewDecisionRecord(&classify.Decision{
		ID:              "dec1",
		Artist:          classify.ArtistIdentity{ID: "ar1", Name: "Hatsune Miku"},
		Label:           classify.LabelVocaloid,
		IsArtificial:    true,
		Confidence:      0.9,
		AgreeingSources: []string{"wikidata", "musicbrainz"},
		DecidedAt:       time.Now(),
		Signals: []classify.SourceSignal{
			{Source: "wikidata", Label: classify.LabelVocaloid, Confidence: 0.9},
		},
	})
	require.NoError(t, store.SaveDecision(record, nil))

	rec := doRequest(c, http.MethodGet, "/api/v1/decisions/dec1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var dto DecisionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, "vocaloid", dto.Label)
	assert.True(t, dto.IsArtificial)
	assert.Equal(t, []string{"wikidata", "musicbrainz"}, dto.AgreeingSources)
	require.Len(t, dto.Sources, 1)
	assert.Equal(t, "wikidata", dto.Sources[0].Source)
}

func TestGetDecisionNotFound(t *testing.T) {
	c, _ := newTestController(t, &stubEngine{})

	rec := doRequest(c, http.MethodGet, "/api/v1/decisions/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.NotEmpty(t, resp.CorrelationID)
}

func TestClassifyArtist(t *testing.T) {
	engine := &stubEngine{decision: &classify.Decision{
		ID:           "dec-new",
		Label:        classify.LabelVTuber,
		IsArtificial: true,
		Confidence:   1.0,
		DecidedAt:    time.Now(),
	}}
	c, store := newTestController(t, engine)

	rec := doRequest(c, http.MethodPost, "/api/v1/artists/ar9/classify", `{"name": "Mori Calliope"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, engine.calls)

	var dto DecisionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, "ar9", dto.ArtistID)
	assert.Equal(t, "vtuber", dto.Label)

	// The fresh decision must land in the datastore.
	_, total, err := store.GetDecisions("ar9", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestClassifyUnknownArtistNeedsName(t *testing.T) {
	c, _ := newTestController(t, &stubEngine{decision: &classify.Decision{}})

	rec := doRequest(c, http.MethodPost, "/api/v1/artists/ar9/classify", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverrideLifecycle(t *testing.T) {
	c, _ := newTestController(t, &stubEngine{})

	rec := doRequest(c, http.MethodPost, "/api/v1/overrides",
		`{"artist_id": "ar1", "artist_name": "Hatsune Miku", "is_artificial": true, "reason": "vocaloid"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// The engine's in memory store sees the override immediately.
	override, ok := c.Overrides.Get("ar1")
	require.True(t, ok)
	assert.True(t, override.IsArtificial)

	rec = doRequest(c, http.MethodGet, "/api/v1/overrides", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []OverrideDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "ar1", list[0].ArtistID)
	assert.False(t, list[0].UpdatedAt.IsZero())

	rec = doRequest(c, http.MethodDelete, "/api/v1/overrides/ar1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	_, ok = c.Overrides.Get("ar1")
	assert.False(t, ok)

	rec = doRequest(c, http.MethodDelete, "/api/v1/overrides/ar1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveOverrideRequiresArtistID(t *testing.T) {
	c, _ := newTestController(t, &stubEngine{})

	rec := doRequest(c, http.MethodPost, "/api/v1/overrides", `{"artist_name": "Nobody"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
