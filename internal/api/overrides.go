package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tlahtinen/trackguard/internal/datastore"
)

// ListOverrides returns every manual override.
func (c *Controller) ListOverrides(ctx echo.Context) error {
	overrides, err := c.DS.GetAllOverrides()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list overrides", http.StatusInternalServerError)
	}

	dtos := make([]OverrideDTO, 0, len(overrides))
	for i := range overrides {
		dtos = append(dtos, overrideDTO(&overrides[i]))
	}
	return ctx.JSON(http.StatusOK, dtos)
}

// GetOverride returns the override for one artist.
func (c *Controller) GetOverride(ctx echo.Context) error {
	override, err := c.DS.GetOverride(ctx.Param("id"))
	if err != nil {
		if datastore.IsNotFound(err) {
			return c.HandleError(ctx, err, "Override not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get override", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, overrideDTO(override))
}

// overrideRequest is the payload for creating or replacing an override.
type overrideRequest struct {
	ArtistID     string `json:"artist_id"`
	ArtistName   string `json:"artist_name"`
	IsArtificial bool   `json:"is_artificial"`
	Reason       string `json:"reason"`
}

// SaveOverride creates or replaces a manual override. The in memory store
// the engine consults is updated in the same request.
func (c *Controller) SaveOverride(ctx echo.Context) error {
	var req overrideRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid override payload", http.StatusBadRequest)
	}
	if req.ArtistID == "" {
		return c.HandleError(ctx, nil, "artist_id is required", http.StatusBadRequest)
	}

	record := &datastore.Override{
		ArtistID:     req.ArtistID,
		ArtistName:   req.ArtistName,
		IsArtificial: req.IsArtificial,
		Reason:       req.Reason,
	}
	if err := c.DS.SaveOverride(record); err != nil {
		return c.HandleError(ctx, err, "Failed to save override", http.StatusInternalServerError)
	}
	c.Overrides.Set(record.ToClassifyOverride())

	c.apiLogger.Info("override saved",
		"artist_id", req.ArtistID,
		"artist", req.ArtistName,
		"is_artificial", req.IsArtificial)
	return ctx.JSON(http.StatusOK, overrideDTO(record))
}

// DeleteOverride removes a manual override from the datastore and the in
// memory store.
func (c *Controller) DeleteOverride(ctx echo.Context) error {
	artistID := ctx.Param("id")

	if err := c.DS.DeleteOverride(artistID); err != nil {
		if datastore.IsNotFound(err) {
			return c.HandleError(ctx, err, "Override not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to delete override", http.StatusInternalServerError)
	}
	c.Overrides.Delete(artistID)

	c.apiLogger.Info("override deleted", "artist_id", artistID)
	return ctx.NoContent(http.StatusNoContent)
}
