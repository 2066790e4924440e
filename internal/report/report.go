package report

import (
	"context"
	"log/slog"
	"sync"
)

// EventType classifies one observable step of a backup or dedup run.
type EventType string

const (
	// EventSeen - a catalog resource was considered
	EventSeen EventType = "seen"
	// EventOutOfScope - the resource is not eligible for backup
	EventOutOfScope EventType = "out_of_scope"
	// EventFresh - an existing backup already covers the resource
	EventFresh EventType = "fresh"
	// EventBackedUp - a new backup object was uploaded
	EventBackedUp EventType = "backed_up"
	// EventFailed - the resource could not be backed up this run
	EventFailed EventType = "failed"
	// EventDuplicateDeleted - reconciliation removed a duplicate object
	EventDuplicateDeleted EventType = "duplicate_deleted"
)

// Event describes one step. Fields irrelevant to the type stay zero.
type Event struct {
	Type     EventType
	Dataset  string
	Resource string
	Bucket   string
	Key      string
	Err      error
}

// Sink receives events as they happen. Implementations must be safe for
// concurrent use; the engines publish from multiple workers.
type Sink interface {
	Publish(ctx context.Context, e Event)
}

// SlogSink writes events to the structured logger.
type SlogSink struct{}

func (SlogSink) Publish(ctx context.Context, e Event) {
	attrs := []any{"type", string(e.Type)}
	if e.Dataset != "" {
		attrs = append(attrs, "dataset", e.Dataset)
	}
	if e.Resource != "" {
		attrs = append(attrs, "resource", e.Resource)
	}
	if e.Bucket != "" {
		attrs = append(attrs, "bucket", e.Bucket)
	}
	if e.Key != "" {
		attrs = append(attrs, "key", e.Key)
	}

	switch e.Type {
	case EventFailed:
		attrs = append(attrs, "error", e.Err)
		slog.WarnContext(ctx, "backup event", attrs...)
	case EventBackedUp, EventDuplicateDeleted:
		slog.InfoContext(ctx, "backup event", attrs...)
	default:
		slog.DebugContext(ctx, "backup event", attrs...)
	}
}

// Recorder collects events so tests can assert on them instead of parsing
// log output.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of the given type were published.
func (r *Recorder) Count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}
