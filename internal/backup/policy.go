package backup

import (
	"fmt"
	"strings"
	"time"

	"github.com/feedvault/feedvault/internal/model"
)

// For the moment only public transit feeds are mirrored.
const transitKind = "public-transit"

var backupFormats = map[string]struct{}{
	"GTFS":  {},
	"NETEX": {},
}

// Policy decides which catalog resources are worth backing up and whether a
// backup is due. Both predicates are pure.
type Policy struct{}

// InScope reports whether the resource is eligible for backup at all:
// public-transit datasets in a supported feed format, compared
// case-insensitively. Rejection has no side effect, not even a bucket lookup.
func (Policy) InScope(r model.Resource) bool {
	if r.Dataset.Kind != transitKind {
		return false
	}
	_, ok := backupFormats[strings.ToUpper(r.Format)]
	return ok
}

// MalformedTimestampError reports a resource whose declared update time could
// not be parsed. It is surfaced rather than defaulted: guessing either skips
// a real update or re-downloads unchanged data forever.
type MalformedTimestampError struct {
	Resource string
	Value    string
}

func (e *MalformedTimestampError) Error() string {
	return fmt.Sprintf("resource %q: cannot parse update time %q", e.Resource, e.Value)
}

// updatedAtLayouts covers the timestamp shapes the catalog serves.
var updatedAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// IsStale reports whether the resource's declared update time is newer than
// every existing backup under its logical prefix. No history means stale.
func (Policy) IsStale(r model.Resource, existing []model.BackupObject) (bool, error) {
	if len(existing) == 0 {
		return true, nil
	}

	var maxLastModified time.Time
	for _, o := range existing {
		if o.LastModified.After(maxLastModified) {
			maxLastModified = o.LastModified
		}
	}

	updated, err := parseUpdatedAt(r)
	if err != nil {
		return false, err
	}
	return maxLastModified.Before(updated), nil
}

func parseUpdatedAt(r model.Resource) (time.Time, error) {
	if r.UpdatedAt != "" {
		for _, layout := range updatedAtLayouts {
			if t, err := time.Parse(layout, r.UpdatedAt); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, &MalformedTimestampError{Resource: r.Title, Value: r.UpdatedAt}
}
