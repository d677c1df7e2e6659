package sources

import (
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/tlahtinen/trackguard/internal/classify"
)

func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

func TestMatchTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag       string
		wantLabel classify.Label
		wantHint  bool
		wantMatch bool
	}{
		{"Vocaloid", classify.LabelVocaloid, false, true},
		{"j-pop vocaloid", classify.LabelVocaloid, false, true},
		{"VTuber", classify.LabelVTuber, false, true},
		{"virtual youtuber", classify.LabelVTuber, false, true},
		{"hololive", classify.LabelVTuber, false, true},
		{"virtual idol", classify.LabelVirtualIdol, false, true},
		{"virtual band", classify.LabelBand, true, true},
		{"fictional band", classify.LabelBand, true, true},
		{"AI Generated", classify.LabelAIGenerated, false, true},
		{"ai music", classify.LabelAIGenerated, false, true},
		{"fictional character", classify.LabelFictional, false, true},
		{"virtual", classify.LabelVirtual, false, true},
		{"rock", classify.LabelNone, false, false},
		{"seen live", classify.LabelNone, false, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.tag, func(t *testing.T) {
			t.Parallel()
			rule, ok := matchTag(tt.tag)
			assert.Equal(t, tt.wantMatch, ok)
			if ok {
				assert.Equal(t, tt.wantLabel, rule.label)
				assert.Equal(t, tt.wantHint, rule.bandHint)
			}
		})
	}
}

func TestStrongestTagMatch(t *testing.T) {
	t.Parallel()

	t.Run("most specific label wins", func(t *testing.T) {
		t.Parallel()
		rule, matched, ok := strongestTagMatch([]string{"rock", "virtual", "vocaloid"})
		assert.True(t, ok)
		assert.Equal(t, classify.LabelVocaloid, rule.label)
		assert.Equal(t, []string{"virtual", "vocaloid"}, matched)
	})

	t.Run("band hint outranks plain labels", func(t *testing.T) {
		t.Parallel()
		rule, _, ok := strongestTagMatch([]string{"vtuber", "virtual band"})
		assert.True(t, ok)
		assert.True(t, rule.bandHint)
		assert.Equal(t, classify.LabelBand, rule.label)
	})

	t.Run("no virtual tags", func(t *testing.T) {
		t.Parallel()
		_, matched, ok := strongestTagMatch([]string{"rock", "pop", "indie"})
		assert.False(t, ok)
		assert.Empty(t, matched)
	})
}
