package hub

import (
	"strings"
	"sync"
	"time"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/configdoc"
)

// VersionLayout formats allocated versions. Lexical order matches time order.
const VersionLayout = "20060102T150405.000000000Z"

const maxVersionLength = 128

// reservedVersions name literal route segments under /config/:type.
var reservedVersions = []string{configdoc.ActiveVersion, "schema", ".", ".."}

// VersionAllocator hands out strictly increasing timestamp versions.
type VersionAllocator struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewVersionAllocator returns an allocator reading the wall clock.
func NewVersionAllocator() *VersionAllocator {
	return &VersionAllocator{now: time.Now}
}

// Next returns a version later than every version previously returned.
func (a *VersionAllocator) Next() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ts := a.now().UTC()
	if !ts.After(a.last) {
		ts = a.last.Add(time.Nanosecond)
	}
	a.last = ts
	return ts.Format(VersionLayout)
}

// ValidateVersion rejects versions that cannot be addressed over HTTP.
func ValidateVersion(version string) error {
	switch {
	case version == "":
		return apperr.New(apperr.KindSchemaInvalid, "config_version must not be blank")
	case len(version) > maxVersionLength:
		return apperr.New(apperr.KindSchemaInvalid, "config_version exceeds %d characters", maxVersionLength)
	case isReservedVersion(version):
		return apperr.New(apperr.KindSchemaInvalid, "config_version %q is reserved", version)
	case strings.ContainsAny(version, "/?# \t\n"):
		return apperr.New(apperr.KindSchemaInvalid, "config_version %q contains reserved characters", version)
	}
	return nil
}

func isReservedVersion(version string) bool {
	for _, reserved := range reservedVersions {
		if strings.EqualFold(version, reserved) {
			return true
		}
	}
	return false
}
