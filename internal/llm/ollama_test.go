package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlahtinen/trackguard/internal/classify"
)

func newTestClassifier(t *testing.T) *OllamaClassifier {
	t.Helper()
	c, err := NewOllamaClassifier(OllamaConfig{
		Host:        "http://127.0.0.1:11434",
		Model:       "granite4:tiny-h",
		Seed:        42,
		Temperature: 0,
		NumPredict:  128,
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func registerGenerateResponder(t *testing.T, innerJSON string) {
	t.Helper()
	body, err := json.Marshal(map[string]any{"response": innerJSON, "done": true})
	require.NoError(t, err)
	httpmock.RegisterResponder(http.MethodPost, "http://127.0.0.1:11434/api/generate",
		httpmock.NewBytesResponder(http.StatusOK, body))
}

func TestOllamaClassifyValidVerdict(t *testing.T) {
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	registerGenerateResponder(t, `{
		"label": "vtuber",
		"is_artificial": true,
		"confidence": 0.82,
		"reason": "debuted as a virtual YouTuber",
		"citations": ["wikidata entity classes"]
	}`)

	result, err := newTestClassifier(t).Classify(context.Background(),
		classify.ArtistIdentity{ID: "a1", Name: "Hoshimachi Suisei"},
		[]classify.SourceSignal{
			{Source: "wikidata", Label: classify.LabelVTuber, Evidence: "P31: Q55155641"},
			{Source: "musicbrainz"},
		})
	require.NoError(t, err)

	assert.Equal(t, classify.LabelVTuber, result.Label)
	assert.True(t, result.IsArtificial)
	assert.InDelta(t, 0.82, result.Confidence, 1e-9)
	assert.Contains(t, result.Reason, "virtual YouTuber")
	assert.Contains(t, result.Reason, "wikidata entity classes")
	assert.Equal(t, "granite4:tiny-h", result.Model)
}

func TestOllamaClassifyRequestShape(t *testing.T) {
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	var captured generateRequest
	httpmock.RegisterResponder(http.MethodPost, "http://127.0.0.1:11434/api/generate",
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&captured); err != nil {
				return nil, err
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"response": `{"label":"human","is_artificial":false,"confidence":0.6,"reason":"ok"}`,
				"done":     true,
			})
		})

	_, err := newTestClassifier(t).Classify(context.Background(),
		classify.ArtistIdentity{ID: "a1", Name: "Some Artist"}, nil)
	require.NoError(t, err)

	// Determinism knobs must be pinned on every request.
	assert.Equal(t, "granite4:tiny-h", captured.Model)
	assert.False(t, captured.Stream)
	assert.Equal(t, "json", captured.Format)
	assert.Equal(t, 42, captured.Options.Seed)
	assert.Zero(t, captured.Options.Temperature)
	assert.Contains(t, captured.Prompt, "Some Artist")
}

func TestOllamaClassifyRejectsUnknownLabel(t *testing.T) {
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	registerGenerateResponder(t, `{"label":"robot","is_artificial":true,"confidence":0.9,"reason":"x"}`)

	_, err := newTestClassifier(t).Classify(context.Background(),
		classify.ArtistIdentity{ID: "a1", Name: "Anyone"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed set")
}

func TestOllamaClassifyRejectsMalformedJSON(t *testing.T) {
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	registerGenerateResponder(t, `the artist is probably a vocaloid`)

	_, err := newTestClassifier(t).Classify(context.Background(),
		classify.ArtistIdentity{ID: "a1", Name: "Anyone"}, nil)
	require.Error(t, err)
}

func TestOllamaClassifyRejectsConfidenceOutOfRange(t *testing.T) {
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	registerGenerateResponder(t, `{"label":"human","is_artificial":false,"confidence":1.7,"reason":"x"}`)

	_, err := newTestClassifier(t).Classify(context.Background(),
		classify.ArtistIdentity{ID: "a1", Name: "Anyone"}, nil)
	require.Error(t, err)
}

func TestOllamaClassifyServerError(t *testing.T) {
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodPost, "http://127.0.0.1:11434/api/generate",
		httpmock.NewStringResponder(http.StatusInternalServerError, "model not loaded"))

	_, err := newTestClassifier(t).Classify(context.Background(),
		classify.ArtistIdentity{ID: "a1", Name: "Anyone"}, nil)
	require.Error(t, err)
}

func TestNewOllamaClassifierRequiresHostAndModel(t *testing.T) {
	t.Parallel()

	_, err := NewOllamaClassifier(OllamaConfig{Model: "granite4:tiny-h"})
	require.Error(t, err)

	_, err = NewOllamaClassifier(OllamaConfig{Host: "http://127.0.0.1:11434"})
	require.Error(t, err)
}
