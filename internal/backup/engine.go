package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/feedvault/feedvault/internal/bucketlock"
	"github.com/feedvault/feedvault/internal/model"
	"github.com/feedvault/feedvault/internal/report"
	"github.com/feedvault/feedvault/internal/storage"
)

// Catalog yields the resources to consider and fetches their bytes.
type Catalog interface {
	ListResources(ctx context.Context) ([]model.Resource, error)
	Download(ctx context.Context, url string) (io.ReadCloser, error)
	Head(ctx context.Context, url string) (http.Header, error)
}

// ObjectStore is the subset of store operations the engine needs.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	ListByPrefix(ctx context.Context, bucket, prefix string) ([]model.BackupObject, error)
	Put(ctx context.Context, bucket, key, localPath string, metadata map[string]string) error
}

// Engine mirrors stale in-scope resources into the object store, one new
// object per backed-up version.
type Engine struct {
	catalog     Catalog
	store       ObjectStore
	policy      Policy
	sink        report.Sink
	locks       *bucketlock.Registry
	keys        *storage.KeyGenerator
	stagingRoot string
	workers     int
}

func NewEngine(catalog Catalog, store ObjectStore, sink report.Sink, locks *bucketlock.Registry, stagingRoot string, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		catalog:     catalog,
		store:       store,
		sink:        sink,
		locks:       locks,
		keys:        storage.NewKeyGenerator(),
		stagingRoot: stagingRoot,
		workers:     workers,
	}
}

// Run backs up every stale in-scope resource and reports the counters. A
// single resource's failure is published and skipped; only a catalog failure
// or cancellation aborts the run.
func (e *Engine) Run(ctx context.Context, run model.RunID) (model.Report, error) {
	if err := run.Validate(); err != nil {
		return model.Report{}, err
	}

	resources, err := e.catalog.ListResources(ctx)
	if err != nil {
		return model.Report{}, err
	}

	staging := NewStaging(e.stagingRoot, run)
	defer staging.Close()

	var (
		mu  sync.Mutex
		rep model.Report
	)
	rep.TotalSeen = len(resources)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, r := range resources {
		e.sink.Publish(ctx, report.Event{Type: report.EventSeen, Dataset: r.Dataset.Title, Resource: r.Title})

		if !e.policy.InScope(r) {
			e.sink.Publish(ctx, report.Event{Type: report.EventOutOfScope, Dataset: r.Dataset.Title, Resource: r.Title})
			continue
		}
		rep.InScope++

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			backedUp, err := e.backupOne(ctx, r, run, staging)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				e.sink.Publish(ctx, report.Event{Type: report.EventFailed, Dataset: r.Dataset.Title, Resource: r.Title, Err: err})
				return nil
			}
			if backedUp {
				mu.Lock()
				rep.BackedUp++
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return rep, err
	}

	slog.InfoContext(ctx, "backup run complete",
		"run_id", run,
		"backed_up", rep.BackedUp,
		"in_scope", rep.InScope,
		"total_seen", rep.TotalSeen)
	return rep, nil
}

// backupOne holds the bucket lock across the whole list-then-upload sequence
// so no other worker can write to the bucket between the staleness check and
// the upload.
func (e *Engine) backupOne(ctx context.Context, r model.Resource, run model.RunID, staging *Staging) (bool, error) {
	bucket := storage.BucketID(r.Dataset.ID)
	prefix := storage.SanitizeTitle(r.Title)

	e.locks.Lock(bucket)
	defer e.locks.Unlock(bucket)

	if err := e.store.EnsureBucket(ctx, bucket); err != nil {
		return false, fmt.Errorf("ensure bucket %s: %w", bucket, err)
	}

	existing, err := e.store.ListByPrefix(ctx, bucket, prefix)
	if err != nil {
		return false, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
	}

	stale, err := e.policy.IsStale(r, existing)
	if err != nil {
		return false, err
	}
	if !stale {
		e.sink.Publish(ctx, report.Event{Type: report.EventFresh, Dataset: r.Dataset.Title, Resource: r.Title, Bucket: bucket})
		return false, nil
	}

	// diagnostic probe only; freshness was already decided above
	if headers, err := e.catalog.Head(ctx, r.URL); err == nil {
		slog.DebugContext(ctx, "resource probe",
			"resource", r.Title,
			"content_length", headers.Get("Content-Length"),
			"etag", headers.Get("ETag"))
	}

	slog.InfoContext(ctx, "backing up",
		"run_id", run,
		"resource", r.DebugName(),
		"updated", r.UpdatedAt)

	body, err := e.catalog.Download(ctx, r.URL)
	if err != nil {
		return false, fmt.Errorf("download %s: %w", r.URL, err)
	}
	defer body.Close()

	key := e.keys.Key(r.Title)
	path, cleanup, err := staging.Stage(key, body)
	if err != nil {
		return false, err
	}
	defer cleanup()

	if err := e.store.Put(ctx, bucket, key, path, r.UploadMetadata()); err != nil {
		return false, fmt.Errorf("upload %s/%s: %w", bucket, key, err)
	}

	e.sink.Publish(ctx, report.Event{Type: report.EventBackedUp, Dataset: r.Dataset.Title, Resource: r.Title, Bucket: bucket, Key: key})
	return true, nil
}
