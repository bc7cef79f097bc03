package contracts

import (
	"strings"

	"github.com/memohai/accelerator/internal/apperr"
)

// SummarizeRequest asks the orchestrator to condense a transcript.
type SummarizeRequest struct {
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
}

// Validate checks required fields.
func (r SummarizeRequest) Validate() error {
	if strings.TrimSpace(r.ConversationID) == "" {
		return apperr.New(apperr.KindSchemaInvalid, "conversation_id is required")
	}
	return nil
}

// SummarizeResponse carries either a summary or an error envelope.
type SummarizeResponse struct {
	ConversationID string `json:"conversation_id"`
	Summary        string `json:"summary,omitempty"`
	Error          *Error `json:"error,omitempty"`
}
