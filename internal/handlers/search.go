package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/accelerator/internal/skills/search"
)

// SearchHandler exposes the search skill.
type SearchHandler struct {
	service *search.Service
	logger  *slog.Logger
}

func NewSearchHandler(log *slog.Logger, service *search.Service) *SearchHandler {
	return &SearchHandler{
		service: service,
		logger:  log.With(slog.String("handler", "search")),
	}
}

func (h *SearchHandler) Register(e *echo.Echo) {
	e.POST("/search", h.Search)
}

// Search godoc
// @Summary Query the configured index
// @Tags search
// @Param payload body contracts.SearchRequest true "Search request"
// @Success 200 {object} contracts.SearchResponse
// @Router /search [post]
func (h *SearchHandler) Search(c echo.Context) error {
	data, err := readBody(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.service.Search(c.Request().Context(), data))
}
