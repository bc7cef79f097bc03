package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/conversation"
	"github.com/memohai/accelerator/internal/sessionmanager"
)

// ChatHandler exposes the session manager.
type ChatHandler struct {
	service *sessionmanager.Service
	logger  *slog.Logger
}

func NewChatHandler(log *slog.Logger, service *sessionmanager.Service) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  log.With(slog.String("handler", "chat")),
	}
}

func (h *ChatHandler) Register(e *echo.Echo) {
	e.POST("/chat", h.Chat)
	group := e.Group("/conversations/:id")
	group.POST("/end", h.End)
	group.GET("/transcript", h.Transcript)
	group.GET("/summary", h.Summary)
}

// Chat godoc
// @Summary Send one user prompt
// @Description Errors are reported inside the envelope with HTTP 200
// @Tags chat
// @Param payload body contracts.ChatRequest true "Chat request"
// @Success 200 {object} contracts.ChatResponse
// @Router /chat [post]
func (h *ChatHandler) Chat(c echo.Context) error {
	data, err := readBody(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.service.Chat(c.Request().Context(), data))
}

// End godoc
// @Summary Summarize and close a conversation
// @Tags chat
// @Param id path string true "Conversation ID"
// @Success 200 {object} conversation.Summary
// @Failure 409 {object} ErrorResponse
// @Router /conversations/{id}/end [post]
func (h *ChatHandler) End(c echo.Context) error {
	summary, err := h.service.EndConversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			h.logger.Error("end conversation failed", slog.String("conversation_id", c.Param("id")), slog.Any("error", err))
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// Transcript godoc
// @Summary List the turns of a conversation
// @Tags chat
// @Param id path string true "Conversation ID"
// @Param attribute query string false "Filter attribute, repeatable with value"
// @Param value query string false "Filter value"
// @Param role query string false "Turn role"
// @Param dialog_id query string false "Dialog ID"
// @Param user_id query string false "User ID"
// @Success 200 {object} map[string]any
// @Failure 400 {object} ErrorResponse
// @Router /conversations/{id}/transcript [get]
func (h *ChatHandler) Transcript(c echo.Context) error {
	filter, err := conversation.ParseFilter(c.QueryParams())
	if err != nil {
		return writeError(c, err)
	}
	turns, err := h.service.Transcript(c.Request().Context(), c.Param("id"), filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"conversation_id": c.Param("id"),
		"turns":           turns,
	})
}

// Summary godoc
// @Summary Get the summary of a closed conversation
// @Tags chat
// @Param id path string true "Conversation ID"
// @Success 200 {object} conversation.Summary
// @Failure 404 {object} ErrorResponse
// @Router /conversations/{id}/summary [get]
func (h *ChatHandler) Summary(c echo.Context) error {
	summary, err := h.service.Summary(c.Request().Context(), c.Param("id"))
	if errors.Is(err, conversation.ErrNoSummary) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}
