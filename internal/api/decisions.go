package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tlahtinen/trackguard/internal/classify"
	"github.com/tlahtinen/trackguard/internal/datastore"
)

// GetDecisions returns one page of decisions, newest first, optionally
// filtered with the artist_id query parameter.
func (c *Controller) GetDecisions(ctx echo.Context) error {
	limit, offset := parsePagination(ctx)
	artistID := ctx.QueryParam("artist_id")

	decisions, total, err := c.DS.GetDecisions(artistID, limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get decisions", http.StatusInternalServerError)
	}

	dtos := make([]DecisionDTO, 0, len(decisions))
	for i := range decisions {
		dtos = append(dtos, decisionDTO(&decisions[i]))
	}
	return ctx.JSON(http.StatusOK, NewPaginatedResponse(dtos, total, limit, offset))
}

// GetDecision returns one decision with its evidence.
func (c *Controller) GetDecision(ctx echo.Context) error {
	decision, err := c.DS.GetDecision(ctx.Param("id"))
	if err != nil {
		if datastore.IsNotFound(err) {
			return c.HandleError(ctx, err, "Decision not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get decision", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, decisionDTO(decision))
}

// GetArtist returns one artist with their latest decision.
func (c *Controller) GetArtist(ctx echo.Context) error {
	artist, err := c.DS.GetArtist(ctx.Param("id"))
	if err != nil {
		if datastore.IsNotFound(err) {
			return c.HandleError(ctx, err, "Artist not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get artist", http.StatusInternalServerError)
	}

	resp := struct {
		Artist         ArtistDTO    `json:"artist"`
		LatestDecision *DecisionDTO `json:"latest_decision,omitempty"`
		Override       *OverrideDTO `json:"override,omitempty"`
	}{Artist: artistDTO(artist)}

	if latest, err := c.DS.GetLatestDecisionForArtist(artist.ID); err == nil {
		dto := decisionDTO(latest)
		resp.LatestDecision = &dto
	}
	if override, err := c.DS.GetOverride(artist.ID); err == nil {
		dto := overrideDTO(override)
		resp.Override = &dto
	}
	return ctx.JSON(http.StatusOK, resp)
}

// classifyRequest optionally names an artist the datastore has not seen yet.
type classifyRequest struct {
	Name string `json:"name"`
}

// ClassifyArtist forces a fresh classification for an artist, bypassing the
// decision cache, and persists the outcome.
func (c *Controller) ClassifyArtist(ctx echo.Context) error {
	artistID := ctx.Param("id")

	var req classifyRequest
	_ = ctx.Bind(&req)

	name := req.Name
	if name == "" {
		if artist, err := c.DS.GetArtist(artistID); err == nil {
			name = artist.Name
		}
	}
	if name == "" {
		return c.HandleError(ctx, nil, "Unknown artist, provide a name in the request body", http.StatusBadRequest)
	}

	decision, err := c.Engine.Reclassify(ctx.Request().Context(),
		classify.ArtistIdentity{ID: artistID, Name: name})
	if err != nil {
		return c.HandleError(ctx, err, "Classification failed", http.StatusInternalServerError)
	}

	record := datastore.NewDecisionRecord(decision)
	llmResult := datastore.NewLLMResultRecord(decision)
	if !decision.FromOverride {
		if err := c.DS.SaveDecision(record, llmResult); err != nil {
			c.apiLogger.Error("failed to save decision", "artist_id", artistID, "error", err)
		}
	}
	record.LLMResult = llmResult
	return ctx.JSON(http.StatusOK, decisionDTO(record))
}
