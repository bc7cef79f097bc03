package contracts

import (
	"encoding/base64"
	"strings"

	"github.com/memohai/accelerator/internal/apperr"
)

// Payload is one item of a user prompt. Image values carry base64 bytes.
type Payload struct {
	Type   PayloadType `json:"type"`
	Value  string      `json:"value"`
	Locale string      `json:"locale,omitempty"`
}

// UserPrompt is the ordered list of payload items making up one utterance.
type UserPrompt struct {
	Payload []Payload `json:"payload"`
}

// Validate checks that the prompt is non-empty and image payloads decode.
func (p UserPrompt) Validate() error {
	if len(p.Payload) == 0 {
		return apperr.New(apperr.KindSchemaInvalid, "message payload is required")
	}
	for i, item := range p.Payload {
		switch item.Type {
		case PayloadText, PayloadProduct:
			if strings.TrimSpace(item.Value) == "" {
				return apperr.New(apperr.KindSchemaInvalid, "payload[%d]: value is required", i)
			}
		case PayloadImage:
			if _, err := base64.StdEncoding.DecodeString(item.Value); err != nil || item.Value == "" {
				return apperr.New(apperr.KindSchemaInvalid, "payload[%d]: image value must be base64", i)
			}
		default:
			return apperr.New(apperr.KindSchemaInvalid, "payload[%d]: type is required", i)
		}
	}
	return nil
}

// Images returns the image payloads in prompt order.
func (p UserPrompt) Images() []Payload {
	return p.ofType(PayloadImage)
}

// Texts returns the text payloads in prompt order.
func (p UserPrompt) Texts() []Payload {
	return p.ofType(PayloadText)
}

// Text joins every text and product value with a single space.
func (p UserPrompt) Text() string {
	parts := make([]string, 0, len(p.Payload))
	for _, item := range p.Payload {
		if item.Type == PayloadImage {
			continue
		}
		if v := strings.TrimSpace(item.Value); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// Locale returns the first locale declared by any payload item.
func (p UserPrompt) Locale() string {
	for _, item := range p.Payload {
		if item.Locale != "" {
			return item.Locale
		}
	}
	return ""
}

// Clone returns a deep copy of the prompt.
func (p UserPrompt) Clone() UserPrompt {
	if p.Payload == nil {
		return UserPrompt{}
	}
	out := make([]Payload, len(p.Payload))
	copy(out, p.Payload)
	return UserPrompt{Payload: out}
}

func (p UserPrompt) ofType(t PayloadType) []Payload {
	var out []Payload
	for _, item := range p.Payload {
		if item.Type == t {
			out = append(out, item)
		}
	}
	return out
}

// UserProfile describes the person behind a conversation. It does not
// change for the lifetime of the conversation.
type UserProfile struct {
	ID          string    `json:"id"`
	UserName    string    `json:"user_name"`
	Description string    `json:"description"`
	Gender      Gender    `json:"gender"`
	Age         *int      `json:"age,omitempty"`
	Role        *UserRole `json:"role,omitempty"`
}

// Validate rejects profiles without identity or with impossible ages.
func (p *UserProfile) Validate() error {
	if p == nil {
		return nil
	}
	if strings.TrimSpace(p.ID) == "" {
		return apperr.New(apperr.KindSchemaInvalid, "user_profile.id is required")
	}
	if p.Gender == "" {
		return apperr.New(apperr.KindSchemaInvalid, "user_profile.gender is required")
	}
	if p.Age != nil && (*p.Age < 0 || *p.Age > 150) {
		return apperr.New(apperr.KindSchemaInvalid, "user_profile.age out of range")
	}
	return nil
}
