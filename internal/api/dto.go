package api

import (
	"time"

	"github.com/tlahtinen/trackguard/internal/datastore"
)

// ArtistDTO is one artist in API responses.
type ArtistDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FirstSeen time.Time `json:"first_seen"`
}

// TrackDTO is one track in API responses.
type TrackDTO struct {
	ID         string      `json:"id"`
	URI        string      `json:"uri"`
	Name       string      `json:"name"`
	DurationMS int         `json:"duration_ms"`
	Album      string      `json:"album,omitempty"`
	Artists    []ArtistDTO `json:"artists,omitempty"`
}

// PlayDTO is one play history entry.
type PlayDTO struct {
	ID          uint      `json:"id"`
	Track       *TrackDTO `json:"track,omitempty"`
	ContextType string    `json:"context_type,omitempty"`
	ContextURI  string    `json:"context_uri,omitempty"`
	ProgressMS  int       `json:"progress_ms"`
	PlayedAt    time.Time `json:"played_at"`
}

// SourceResultDTO is one knowledge source answer under a decision.
type SourceResultDTO struct {
	Source      string    `json:"source"`
	Label       string    `json:"label,omitempty"`
	Confidence  float64   `json:"confidence"`
	VirtualHint bool      `json:"virtual_hint,omitempty"`
	Evidence    string    `json:"evidence,omitempty"`
	URL         string    `json:"url,omitempty"`
	Error       string    `json:"error,omitempty"`
	QueriedAt   time.Time `json:"queried_at"`
	DurationMS  int64     `json:"duration_ms"`
}

// LLMResultDTO is the fallback model verdict under a decision.
type LLMResultDTO struct {
	Model        string  `json:"model"`
	Label        string  `json:"label"`
	IsArtificial bool    `json:"is_artificial"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason,omitempty"`
	DurationMS   int64   `json:"duration_ms"`
}

// DecisionDTO is one classification decision with its evidence.
type DecisionDTO struct {
	ID                string            `json:"id"`
	ArtistID          string            `json:"artist_id"`
	ArtistName        string            `json:"artist_name"`
	Label             string            `json:"label"`
	IsArtificial      bool              `json:"is_artificial"`
	Confidence        float64           `json:"confidence"`
	AgreeingSources   []string          `json:"agreeing_sources"`
	BandPolicyApplied bool              `json:"band_policy_applied,omitempty"`
	UsedFallback      bool              `json:"used_fallback,omitempty"`
	FromOverride      bool              `json:"from_override,omitempty"`
	Reason            string            `json:"reason,omitempty"`
	DecidedAt         time.Time         `json:"decided_at"`
	Sources           []SourceResultDTO `json:"sources,omitempty"`
	LLM               *LLMResultDTO     `json:"llm,omitempty"`
}

// OverrideDTO is one manual override.
type OverrideDTO struct {
	ArtistID     string    `json:"artist_id"`
	ArtistName   string    `json:"artist_name"`
	IsArtificial bool      `json:"is_artificial"`
	Reason       string    `json:"reason,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func artistDTO(artist *datastore.Artist) ArtistDTO {
	return ArtistDTO{ID: artist.ID, Name: artist.Name, FirstSeen: artist.FirstSeen}
}

func trackDTO(track *datastore.Track) *TrackDTO {
	if track == nil {
		return nil
	}
	dto := &TrackDTO{
		ID:         track.ID,
		URI:        track.URI,
		Name:       track.Name,
		DurationMS: track.DurationMS,
	}
	if track.Album != nil {
		dto.Album = track.Album.Name
	}
	for i := range track.Artists {
		dto.Artists = append(dto.Artists, artistDTO(&track.Artists[i]))
	}
	return dto
}

func playDTO(play *datastore.Play) PlayDTO {
	return PlayDTO{
		ID:          play.ID,
		Track:       trackDTO(play.Track),
		ContextType: play.ContextType,
		ContextURI:  play.ContextURI,
		ProgressMS:  play.ProgressMS,
		PlayedAt:    play.PlayedAt,
	}
}

func decisionDTO(decision *datastore.Decision) DecisionDTO {
	dto := DecisionDTO{
		ID:                decision.ID,
		ArtistID:          decision.ArtistID,
		ArtistName:        decision.ArtistName,
		Label:             decision.Label,
		IsArtificial:      decision.IsArtificial,
		Confidence:        decision.Confidence,
		AgreeingSources:   decision.AgreeingSourceNames(),
		BandPolicyApplied: decision.BandPolicyApplied,
		UsedFallback:      decision.UsedFallback,
		FromOverride:      decision.FromOverride,
		Reason:            decision.Reason,
		DecidedAt:         decision.DecidedAt,
	}
	for i := range decision.SourceResults {
		s := &decision.SourceResults[i]
		dto.Sources = append(dto.Sources, SourceResultDTO{
			Source:      s.Source,
			Label:       s.Label,
			Confidence:  s.Confidence,
			VirtualHint: s.VirtualHint,
			Evidence:    s.Evidence,
			URL:         s.URL,
			Error:       s.Error,
			QueriedAt:   s.QueriedAt,
			DurationMS:  s.DurationMS,
		})
	}
	if decision.LLMResult != nil {
		dto.LLM = &LLMResultDTO{
			Model:        decision.LLMResult.Model,
			Label:        decision.LLMResult.Label,
			IsArtificial: decision.LLMResult.IsArtificial,
			Confidence:   decision.LLMResult.Confidence,
			Reason:       decision.LLMResult.Reason,
			DurationMS:   decision.LLMResult.DurationMS,
		}
	}
	return dto
}

func overrideDTO(override *datastore.Override) OverrideDTO {
	return OverrideDTO{
		ArtistID:     override.ArtistID,
		ArtistName:   override.ArtistName,
		IsArtificial: override.IsArtificial,
		Reason:       override.Reason,
		UpdatedAt:    override.UpdatedAt,
	}
}
