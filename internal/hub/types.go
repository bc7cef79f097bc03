package hub

import (
	"encoding/json"

	"github.com/memohai/accelerator/internal/apperr"
)

// CreateRequest is the body of POST /config.
type CreateRequest struct {
	ConfigType    string          `json:"config_type"`
	ConfigVersion string          `json:"config_version,omitempty"`
	ConfigBody    json.RawMessage `json:"config_body"`
}

// CreateResponse answers POST /config. Error is set only on failure.
type CreateResponse struct {
	ConfigType    string      `json:"config_type"`
	ConfigVersion string      `json:"config_version,omitempty"`
	Error         string      `json:"error,omitempty"`
	Kind          apperr.Kind `json:"kind,omitempty"`
}

// ErrorResponse is the error body of every other hub route.
type ErrorResponse struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}
