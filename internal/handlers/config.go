package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/contracts"
	"github.com/memohai/accelerator/internal/hub"
)

// ConfigHandler serves the configuration hub API.
type ConfigHandler struct {
	service    *hub.Service
	writeGuard echo.MiddlewareFunc
	logger     *slog.Logger
}

// NewConfigHandler creates the hub handler. writeGuard, when set, wraps
// the routes that change state.
func NewConfigHandler(log *slog.Logger, service *hub.Service, writeGuard echo.MiddlewareFunc) *ConfigHandler {
	return &ConfigHandler{
		service:    service,
		writeGuard: writeGuard,
		logger:     log.With(slog.String("handler", "config")),
	}
}

func (h *ConfigHandler) Register(e *echo.Echo) {
	var guard []echo.MiddlewareFunc
	if h.writeGuard != nil {
		guard = append(guard, h.writeGuard)
	}
	group := e.Group("/config")
	group.GET("", h.Types)
	group.POST("", h.Create, guard...)
	group.GET("/:type", h.List)
	group.GET("/:type/active", h.Active)
	group.GET("/:type/schema", h.Schema)
	group.GET("/:type/:version", h.Get)
	group.POST("/:type/:version/activate", h.Activate, guard...)
}

// Types godoc
// @Summary List config types
// @Tags config
// @Success 200 {object} map[string][]string
// @Router /config [get]
func (h *ConfigHandler) Types(c echo.Context) error {
	types := h.service.Registry().Types()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.String())
	}
	return c.JSON(http.StatusOK, map[string][]string{"types": names})
}

// Create godoc
// @Summary Create a config version
// @Description Validates config_body against the schema of config_type and stores it
// @Tags config
// @Param payload body hub.CreateRequest true "Config document"
// @Success 201 {object} hub.CreateResponse
// @Failure 400 {object} hub.CreateResponse
// @Failure 409 {object} hub.CreateResponse
// @Router /config [post]
func (h *ConfigHandler) Create(c echo.Context) error {
	data, err := readBody(c)
	if err != nil {
		return err
	}
	var req hub.CreateRequest
	if err := contracts.DecodeStrict(data, &req); err != nil {
		return h.createFailed(c, req, err)
	}
	ref, err := h.service.Create(c.Request().Context(), req)
	if err != nil {
		return h.createFailed(c, req, err)
	}
	return c.JSON(http.StatusCreated, hub.CreateResponse{
		ConfigType:    ref.Type.String(),
		ConfigVersion: ref.Version,
	})
}

func (h *ConfigHandler) createFailed(c echo.Context, req hub.CreateRequest, err error) error {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal || e.Kind == apperr.KindUpstreamUnavailable {
		h.logger.Error("create config failed", slog.String("config_type", req.ConfigType), slog.Any("error", err))
	}
	return c.JSON(e.Status, hub.CreateResponse{
		ConfigType:    strings.ToUpper(strings.TrimSpace(req.ConfigType)),
		ConfigVersion: strings.TrimSpace(req.ConfigVersion),
		Error:         e.Error(),
		Kind:          e.Kind,
	})
}

// List godoc
// @Summary List config versions, or get one with ?version=
// @Tags config
// @Param type path string true "Config type"
// @Param version query string false "Version to fetch"
// @Success 200 {array} configdoc.Document
// @Failure 400 {object} ErrorResponse
// @Router /config/{type} [get]
func (h *ConfigHandler) List(c echo.Context) error {
	t, err := h.parseType(c)
	if err != nil {
		return writeError(c, err)
	}
	if version := strings.TrimSpace(c.QueryParam("version")); version != "" {
		return h.get(c, t, version)
	}
	docs, err := h.service.List(c.Request().Context(), t)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, docs)
}

// Active godoc
// @Summary Get the active config version
// @Tags config
// @Param type path string true "Config type"
// @Success 200 {object} configdoc.Document
// @Failure 404 {object} ErrorResponse
// @Router /config/{type}/active [get]
func (h *ConfigHandler) Active(c echo.Context) error {
	t, err := h.parseType(c)
	if err != nil {
		return writeError(c, err)
	}
	return h.get(c, t, "")
}

// Schema godoc
// @Summary Get the JSON schema of a config type
// @Tags config
// @Param type path string true "Config type"
// @Success 200 {object} map[string]any
// @Failure 400 {object} ErrorResponse
// @Router /config/{type}/schema [get]
func (h *ConfigHandler) Schema(c echo.Context) error {
	t, err := h.parseType(c)
	if err != nil {
		return writeError(c, err)
	}
	schema, _ := h.service.Registry().Schema(t)
	return c.JSON(http.StatusOK, schema)
}

// Get godoc
// @Summary Get one config version
// @Tags config
// @Param type path string true "Config type"
// @Param version path string true "Config version"
// @Success 200 {object} configdoc.Document
// @Failure 404 {object} ErrorResponse
// @Router /config/{type}/{version} [get]
func (h *ConfigHandler) Get(c echo.Context) error {
	t, err := h.parseType(c)
	if err != nil {
		return writeError(c, err)
	}
	return h.get(c, t, c.Param("version"))
}

func (h *ConfigHandler) get(c echo.Context, t configdoc.Type, version string) error {
	doc, err := h.service.Get(c.Request().Context(), t, version)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

// Activate godoc
// @Summary Activate a config version
// @Tags config
// @Param type path string true "Config type"
// @Param version path string true "Config version"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /config/{type}/{version}/activate [post]
func (h *ConfigHandler) Activate(c echo.Context) error {
	t, err := h.parseType(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.service.Activate(c.Request().Context(), t, c.Param("version")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ConfigHandler) parseType(c echo.Context) (configdoc.Type, error) {
	return h.service.Registry().ParseType(c.Param("type"))
}
