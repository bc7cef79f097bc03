package hub

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/accelerator/internal/apperr"
)

func TestVersionAllocatorIsStrictlyIncreasing(t *testing.T) {
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	a := &VersionAllocator{now: func() time.Time { return fixed }}

	first := a.Next()
	second := a.Next()
	third := a.Next()
	assert.Equal(t, "20240506T070809.000000000Z", first)
	assert.Equal(t, "20240506T070809.000000001Z", second)
	assert.Less(t, second, third)
}

func TestVersionAllocatorUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	a := &VersionAllocator{now: func() time.Time { return time.Date(2024, 5, 6, 9, 0, 0, 0, loc) }}
	assert.Equal(t, "20240506T070000.000000000Z", a.Next())
}

func TestValidateVersion(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{"v1", false},
		{"2024-05-06", false},
		{"schema-v2", false},
		{"", true},
		{"ACTIVE", true},
		{"active", true},
		{"schema", true},
		{"Schema", true},
		{"..", true},
		{"a/b", true},
		{"a b", true},
		{strings.Repeat("v", maxVersionLength+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := ValidateVersion(tt.version)
			if tt.wantErr {
				assert.Equal(t, apperr.KindSchemaInvalid, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
		})
	}
}
