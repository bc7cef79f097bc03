package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/accelerator/internal/orchestrator"
)

// BotHandler exposes the orchestrator.
type BotHandler struct {
	service *orchestrator.Service
	logger  *slog.Logger
}

func NewBotHandler(log *slog.Logger, service *orchestrator.Service) *BotHandler {
	return &BotHandler{
		service: service,
		logger:  log.With(slog.String("handler", "bot")),
	}
}

func (h *BotHandler) Register(e *echo.Echo) {
	e.POST("/bot", h.Bot)
	e.POST("/summarize", h.Summarize)
}

// Bot godoc
// @Summary Run the bot plan for one turn
// @Tags bot
// @Param payload body contracts.BotRequest true "Bot request"
// @Success 200 {object} contracts.BotResponse
// @Router /bot [post]
func (h *BotHandler) Bot(c echo.Context) error {
	data, err := readBody(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.service.Bot(c.Request().Context(), data))
}

// Summarize godoc
// @Summary Summarize a transcript
// @Tags bot
// @Param payload body contracts.SummarizeRequest true "Messages to summarize"
// @Success 200 {object} contracts.SummarizeResponse
// @Router /summarize [post]
func (h *BotHandler) Summarize(c echo.Context) error {
	data, err := readBody(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.service.Summarize(c.Request().Context(), data))
}
