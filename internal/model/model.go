package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Dataset is one catalog dataset: a named collection of resources with a
// stable identity and a category. Owned by the remote catalog; read-only here.
type Dataset struct {
	ID    string
	Title string
	Kind  string
}

// Resource is one downloadable file described by a dataset's catalog entry.
// Its identity is the pair (owning dataset ID, title); there is no single
// identifying field. A Resource is an immutable snapshot of one catalog fetch.
type Resource struct {
	Dataset       Dataset
	Title         string
	URL           string
	Format        string
	UpdatedAt     string
	ValidityStart string
	ValidityEnd   string
}

// DebugName names the resource in logs: "<dataset title> - <resource title>".
func (r Resource) DebugName() string {
	return r.Dataset.Title + " - " + r.Title
}

// UploadMetadata is the metadata set attached to every backup of this
// resource. Absent fields are omitted entirely, never written as empty
// strings.
func (r Resource) UploadMetadata() map[string]string {
	fields := map[string]string{
		"url":    r.URL,
		"title":  r.Title,
		"start":  r.ValidityStart,
		"end":    r.ValidityEnd,
		"format": r.Format,
	}
	meta := make(map[string]string, len(fields))
	for k, v := range fields {
		if v != "" {
			meta[k] = v
		}
	}
	return meta
}

// BackupObject is one entry already stored in a dataset bucket. A new backup
// is always a new object; nothing is ever overwritten in place.
type BackupObject struct {
	Key          string
	LastModified time.Time
	Size         int64
	ETag         string
	Metadata     map[string]string
}

// DuplicateKey identifies a group of backup objects considered copies of the
// same logical content. ContentHash is frequently absent, in which case the
// group keys on title alone.
type DuplicateKey struct {
	Title       string
	ContentHash string
}

// Report summarizes one backup run.
type Report struct {
	TotalSeen int
	InScope   int
	BackedUp  int
}

// RunID identifies one backup run in log events and staging paths.
type RunID string

// NewRunID returns a fresh random run identifier.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

// Validate checks that the RunID is a well-formed UUID.
func (r RunID) Validate() error {
	if r == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	if _, err := uuid.Parse(string(r)); err != nil {
		return fmt.Errorf("run id must be a valid UUID: %w", err)
	}
	return nil
}

// String returns the run ID as a string.
func (r RunID) String() string {
	return string(r)
}
