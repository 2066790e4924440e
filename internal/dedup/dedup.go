package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/feedvault/feedvault/internal/bucketlock"
	"github.com/feedvault/feedvault/internal/model"
	"github.com/feedvault/feedvault/internal/report"
)

// ObjectStore is the subset of store operations reconciliation needs.
type ObjectStore interface {
	ListBuckets(ctx context.Context) ([]string, error)
	ListByPrefix(ctx context.Context, bucket, prefix string) ([]model.BackupObject, error)
	Stat(ctx context.Context, bucket, key string) (model.BackupObject, error)
	Delete(ctx context.Context, bucket, key string) error
}

// Engine reconciles dataset buckets down to one copy per logical resource:
// objects sharing a duplicate key keep only the most recently modified
// member.
type Engine struct {
	store ObjectStore
	sink  report.Sink
	locks *bucketlock.Registry

	// DryRun reports deletions without performing them.
	DryRun bool
}

func NewEngine(store ObjectStore, sink report.Sink, locks *bucketlock.Registry) *Engine {
	return &Engine{store: store, sink: sink, locks: locks}
}

// Result summarizes one reconciliation pass.
type Result struct {
	Groups  int // duplicate groups found (size > 1)
	Deleted int // objects removed, or that would be under DryRun
}

// Run reconciles a single bucket. It holds the bucket lock for the whole
// pass so a backup can never land mid-reconciliation.
func (e *Engine) Run(ctx context.Context, bucket string) (Result, error) {
	e.locks.Lock(bucket)
	defer e.locks.Unlock(bucket)

	objects, err := e.store.ListByPrefix(ctx, bucket, "")
	if err != nil {
		return Result{}, fmt.Errorf("list %s: %w", bucket, err)
	}

	// Only MinIO servers return user metadata in listings; generic S3
	// endpoints leave it out. Fetch it per object before grouping, or every
	// object would look unidentifiable and reconciliation would do nothing.
	for i := range objects {
		if objects[i].Metadata["title"] != "" {
			continue
		}
		full, err := e.store.Stat(ctx, bucket, objects[i].Key)
		if err != nil {
			return Result{}, fmt.Errorf("stat %s/%s: %w", bucket, objects[i].Key, err)
		}
		objects[i].Metadata = full.Metadata
	}

	var res Result
	for _, group := range groupDuplicates(objects) {
		if len(group) <= 1 {
			continue
		}
		res.Groups++

		survivor := keepLatest(group)
		for _, o := range group {
			if o.Key == survivor.Key {
				continue
			}
			if !e.DryRun {
				if err := e.store.Delete(ctx, bucket, o.Key); err != nil {
					return res, fmt.Errorf("delete %s/%s: %w", bucket, o.Key, err)
				}
			}
			res.Deleted++
			e.sink.Publish(ctx, report.Event{Type: report.EventDuplicateDeleted, Bucket: bucket, Key: o.Key})
		}
	}

	slog.InfoContext(ctx, "bucket reconciled",
		"bucket", bucket,
		"duplicate_groups", res.Groups,
		"deleted", res.Deleted,
		"dry_run", e.DryRun)
	return res, nil
}

// RunAll sweeps every dataset bucket. A bucket whose store operations fail
// is skipped, not fatal for the sweep; its error is folded into the result.
func (e *Engine) RunAll(ctx context.Context) (Result, error) {
	buckets, err := e.store.ListBuckets(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list buckets: %w", err)
	}

	var total Result
	var errs []error
	for _, bucket := range buckets {
		res, err := e.Run(ctx, bucket)
		total.Groups += res.Groups
		total.Deleted += res.Deleted
		if err != nil {
			slog.WarnContext(ctx, "bucket reconciliation failed", "bucket", bucket, "error", err)
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// duplicateKeyFor derives the grouping identity of an object from its upload
// metadata. The content hash is usually absent, so most groups key on title
// alone. Objects with no title metadata cannot be identified and are never
// grouped, hence never deleted.
func duplicateKeyFor(o model.BackupObject) (model.DuplicateKey, bool) {
	title := o.Metadata["title"]
	if title == "" {
		return model.DuplicateKey{}, false
	}
	return model.DuplicateKey{Title: title, ContentHash: o.Metadata["content-hash"]}, true
}

func groupDuplicates(objects []model.BackupObject) map[model.DuplicateKey][]model.BackupObject {
	groups := make(map[model.DuplicateKey][]model.BackupObject)
	for _, o := range objects {
		key, ok := duplicateKeyFor(o)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], o)
	}
	return groups
}

// keepLatest picks the group's survivor: the member with the maximum
// lastModified. On a tie the member seen first in listing order wins, so the
// choice is deterministic for a given listing.
func keepLatest(group []model.BackupObject) model.BackupObject {
	survivor := group[0]
	for _, o := range group[1:] {
		if o.LastModified.After(survivor.LastModified) {
			survivor = o
		}
	}
	return survivor
}
