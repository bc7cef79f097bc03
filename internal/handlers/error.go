package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/hub"
)

// ErrorResponse is the error body of the hub and conversation routes.
type ErrorResponse = hub.ErrorResponse

// writeError renders err with the status of its kind.
func writeError(c echo.Context, err error) error {
	e := apperr.From(err)
	return c.JSON(e.Status, ErrorResponse{Kind: e.Kind, Message: e.Message})
}

// readBody returns the raw request body. Envelope routes parse it
// themselves so that embedded overrides keep their exact bytes.
func readBody(c echo.Context) ([]byte, error) {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "read request body").SetInternal(err)
	}
	return data, nil
}
