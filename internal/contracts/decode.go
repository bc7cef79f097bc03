package contracts

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/memohai/accelerator/internal/apperr"
)

// DecodeStrict unmarshals data into v rejecting unknown fields and trailing
// content. Failures are classified as SCHEMA_INVALID.
func DecodeStrict(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return apperr.New(apperr.KindSchemaInvalid, "empty document")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.KindSchemaInvalid, err, "")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.New(apperr.KindSchemaInvalid, "unexpected data after document")
	}
	return nil
}

// enumError is returned by enum decoders so the failure reads well once
// wrapped by DecodeStrict.
func enumError(name, raw string, allowed ...string) error {
	return apperr.New(apperr.KindSchemaInvalid, "invalid %s %q (allowed: %s)", name, raw, strings.Join(allowed, ", "))
}

func decodeEnumString(data []byte) (string, error) {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}
