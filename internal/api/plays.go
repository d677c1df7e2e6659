package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetPlays returns one page of the play history, newest first.
func (c *Controller) GetPlays(ctx echo.Context) error {
	limit, offset := parsePagination(ctx)

	plays, total, err := c.DS.GetPlays(limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get play history", http.StatusInternalServerError)
	}

	dtos := make([]PlayDTO, 0, len(plays))
	for i := range plays {
		dtos = append(dtos, playDTO(&plays[i]))
	}
	return ctx.JSON(http.StatusOK, NewPaginatedResponse(dtos, total, limit, offset))
}
