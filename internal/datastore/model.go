// Package datastore persists the play history, classification decisions and
// their evidence, executed actions and manual overrides behind a small
// interface with SQLite and MySQL implementations.
package datastore

import (
	"encoding/json"
	"time"

	"github.com/tlahtinen/trackguard/internal/classify"
)

// Artist is one known artist. The primary key is the playback provider's
// artist id.
type Artist struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"index"`
	FirstSeen time.Time
}

// Album carries the album metadata recorded with plays.
type Album struct {
	ID          string `gorm:"primaryKey"`
	Name        string
	ReleaseDate string
}

// Track is one known track together with its credited artists.
type Track struct {
	ID         string `gorm:"primaryKey"`
	URI        string
	Name       string
	DurationMS int
	Explicit   bool
	Popularity int
	AlbumID    string
	Album      *Album   `gorm:"foreignKey:AlbumID"`
	Artists    []Artist `gorm:"many2many:track_artists"`
	FirstSeen  time.Time
}

// Play is one observed playback of a track. Plays are append only.
type Play struct {
	ID          uint   `gorm:"primaryKey"`
	TrackID     string `gorm:"index"`
	Track       *Track `gorm:"foreignKey:TrackID"`
	ContextType string // playlist, album, artist, show
	ContextURI  string
	ProgressMS  int
	PlayedAt    time.Time `gorm:"index"`
}

// Decision is one classification verdict with its evidence rows. Decisions
// are append only; a changed verdict is a new row.
type Decision struct {
	ID                string `gorm:"primaryKey"` // uuid
	ArtistID          string `gorm:"index"`
	ArtistName        string
	Label             string
	IsArtificial      bool
	Confidence        float64
	AgreeingSources   string // JSON array of source names
	BandPolicyApplied bool
	UsedFallback      bool
	FromOverride      bool
	Reason            string
	DecidedAt         time.Time      `gorm:"index"`
	SourceResults     []SourceResult `gorm:"foreignKey:DecisionID"`
	LLMResult         *LLMResult     `gorm:"foreignKey:DecisionID"`
}

// SourceResult is one knowledge source's answer recorded under a decision.
type SourceResult struct {
	ID          uint   `gorm:"primaryKey"`
	DecisionID  string `gorm:"index"`
	Source      string
	Label       string // empty when the source had no data
	Confidence  float64
	VirtualHint bool
	Evidence    string
	URL         string
	Error       string // lookup error text, empty on success
	QueriedAt   time.Time
	DurationMS  int64
}

// LLMResult records a fallback model verdict attached to a decision.
type LLMResult struct {
	ID           uint   `gorm:"primaryKey"`
	DecisionID   string `gorm:"index"`
	Model        string
	Label        string
	IsArtificial bool
	Confidence   float64
	Reason       string
	DurationMS   int64
	CreatedAt    time.Time
}

// TrackAction is one executed (or failed) playback action. Append only.
type TrackAction struct {
	ID         uint   `gorm:"primaryKey"`
	TrackID    string `gorm:"index"`
	ArtistID   string `gorm:"index"`
	DecisionID string
	Action     string // skip, remove_from_playlist, add_to_blocked
	Status     string // success, failed
	Attempts   int
	Error      string
	ExecutedAt time.Time `gorm:"index"`
}

// Override is a manual per artist verdict. Unlike decisions, overrides are
// mutable and deletable.
type Override struct {
	ArtistID     string `gorm:"primaryKey"`
	ArtistName   string
	IsArtificial bool
	Reason       string
	UpdatedAt    time.Time
}

// NewDecisionRecord converts an engine decision into its persisted form,
// including per source evidence rows.
func NewDecisionRecord(d *classify.Decision) *Decision {
	agreeing, _ := json.Marshal(d.AgreeingSources)
	record := &Decision{
		ID:                d.ID,
		ArtistID:          d.Artist.ID,
		ArtistName:        d.Artist.Name,
		Label:             d.Label.String(),
		IsArtificial:      d.IsArtificial,
		Confidence:        d.Confidence,
		AgreeingSources:   string(agreeing),
		BandPolicyApplied: d.BandPolicyApplied,
		UsedFallback:      d.UsedFallback,
		FromOverride:      d.FromOverride,
		Reason:            d.Reason,
		DecidedAt:         d.DecidedAt,
	}
	for i := range d.Signals {
		s := &d.Signals[i]
		record.SourceResults = append(record.SourceResults, SourceResult{
			Source:      s.Source,
			Label:       s.Label.String(),
			Confidence:  s.Confidence,
			VirtualHint: s.VirtualHint,
			Evidence:    s.Evidence,
			URL:         s.URL,
			Error:       s.Err,
			QueriedAt:   s.QueriedAt,
			DurationMS:  s.Duration.Milliseconds(),
		})
	}
	return record
}

// NewLLMResultRecord converts the fallback verdict behind a decision into
// its persisted form. Returns nil when the fallback did not decide.
func NewLLMResultRecord(d *classify.Decision) *LLMResult {
	if !d.UsedFallback || d.Fallback == nil {
		return nil
	}
	return &LLMResult{
		Model:        d.Fallback.Model,
		Label:        d.Fallback.Label.String(),
		IsArtificial: d.Fallback.IsArtificial,
		Confidence:   d.Fallback.Confidence,
		Reason:       d.Fallback.Reason,
		DurationMS:   d.FallbackDuration.Milliseconds(),
	}
}

// AgreeingSourceNames decodes the stored JSON array of agreeing sources.
func (d *Decision) AgreeingSourceNames() []string {
	var names []string
	_ = json.Unmarshal([]byte(d.AgreeingSources), &names)
	return names
}

// ToClassifyOverride converts a stored override to its engine form.
func (o *Override) ToClassifyOverride() classify.Override {
	return classify.Override{
		ArtistID:     o.ArtistID,
		ArtistName:   o.ArtistName,
		IsArtificial: o.IsArtificial,
		Reason:       o.Reason,
		UpdatedAt:    o.UpdatedAt,
	}
}
