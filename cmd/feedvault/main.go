package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/urfave/cli/v2"

	"github.com/feedvault/feedvault/internal/backup"
	"github.com/feedvault/feedvault/internal/bucketlock"
	"github.com/feedvault/feedvault/internal/catalog"
	"github.com/feedvault/feedvault/internal/config"
	"github.com/feedvault/feedvault/internal/dedup"
	"github.com/feedvault/feedvault/internal/exitcode"
	"github.com/feedvault/feedvault/internal/model"
	"github.com/feedvault/feedvault/internal/report"
	"github.com/feedvault/feedvault/internal/storage"
)

func main() {
	// Configure the global logger
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// Ensure environment variables are loaded
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(exitcode.ConfigError)
	}

	// Create a cancellable context (for graceful shutdown)
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newApp(cfg).RunContext(ctx, os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(exitCodeFor(err))
	}
}

func newApp(cfg *config.Config) *cli.App {
	return &cli.App{
		Name:  "feedvault",
		Usage: "mirror transport.data.gouv.fr transit feeds into an object store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "access-key",
				Usage:    "object store access key id",
				Required: true,
				EnvVars:  []string{"FEEDVAULT_ACCESS_KEY"},
			},
			&cli.StringFlag{
				Name:     "secret-key",
				Usage:    "object store secret key",
				Required: true,
				EnvVars:  []string{"FEEDVAULT_SECRET_KEY"},
			},
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "object store endpoint",
				Value: cfg.StoreEndpoint,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "backup",
				Usage: "back up every stale in-scope resource",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "run-id",
						Usage: "run identifier (UUID, from orchestration)",
					},
				},
				Action: func(c *cli.Context) error { return runBackup(c, cfg) },
			},
			{
				Name:   "list",
				Usage:  "list every backed-up object",
				Action: func(c *cli.Context) error { return runList(c, cfg) },
			},
			{
				Name:  "delete-all",
				Usage: "delete every dataset bucket and its contents",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "confirm the deletion",
					},
				},
				Action: func(c *cli.Context) error { return runDeleteAll(c, cfg) },
			},
			{
				Name:  "delete-duplicates",
				Usage: "keep one copy per logical resource, delete the rest",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "bucket",
						Usage: "reconcile a single bucket instead of all",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "report deletions without performing them",
					},
				},
				Action: func(c *cli.Context) error { return runDeleteDuplicates(c, cfg) },
			},
			{
				Name:  "delete-object",
				Usage: "delete a single backup object",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "bucket", Required: true},
					&cli.StringFlag{Name: "key", Required: true},
				},
				Action: func(c *cli.Context) error { return runDeleteObject(c, cfg) },
			},
		},
	}
}

func newStore(c *cli.Context, cfg *config.Config) (*storage.Client, error) {
	return storage.NewClient(storage.Config{
		Endpoint:  c.String("endpoint"),
		AccessKey: c.String("access-key"),
		SecretKey: c.String("secret-key"),
		UseSSL:    cfg.StoreUseSSL,
	})
}

func runBackup(c *cli.Context, cfg *config.Config) error {
	store, err := newStore(c, cfg)
	if err != nil {
		return err
	}

	run := model.RunID(c.String("run-id"))
	if run == "" {
		run = model.NewRunID()
	} else if err := run.Validate(); err != nil {
		return err
	}

	engine := backup.NewEngine(
		catalog.NewClient(cfg.CatalogBaseURL),
		store,
		report.SlogSink{},
		bucketlock.NewRegistry(),
		cfg.StagingDir,
		cfg.Workers,
	)

	rep, err := engine.Run(c.Context, run)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "%d resources backed up / %d to backup (and %d total resources)\n",
		rep.BackedUp, rep.InScope, rep.TotalSeen)
	return nil
}

func runList(c *cli.Context, cfg *config.Config) error {
	store, err := newStore(c, cfg)
	if err != nil {
		return err
	}

	buckets, err := store.ListBuckets(c.Context)
	if err != nil {
		return err
	}
	for _, bucket := range buckets {
		fmt.Fprintf(c.App.Writer, "* bucket %s\n", bucket)
		objects, err := store.ListByPrefix(c.Context, bucket, "")
		if err != nil {
			return err
		}
		for _, o := range objects {
			fmt.Fprintf(c.App.Writer, "  - %s (%s -- size = %d -- etag = %s)\n",
				o.Key, o.LastModified.Format("2006-01-02 15:04:05"), o.Size, o.ETag)
		}
	}
	return nil
}

func runDeleteAll(c *cli.Context, cfg *config.Config) error {
	if !c.Bool("yes") {
		return cli.Exit("refusing to delete every bucket without --yes", exitcode.ConfigError)
	}

	store, err := newStore(c, cfg)
	if err != nil {
		return err
	}

	buckets, err := store.ListBuckets(c.Context)
	if err != nil {
		return err
	}
	for _, bucket := range buckets {
		if err := store.DeleteBucket(c.Context, bucket); err != nil {
			return err
		}
		slog.InfoContext(c.Context, "bucket deleted", "bucket", bucket)
	}
	return nil
}

func runDeleteDuplicates(c *cli.Context, cfg *config.Config) error {
	store, err := newStore(c, cfg)
	if err != nil {
		return err
	}

	engine := dedup.NewEngine(store, report.SlogSink{}, bucketlock.NewRegistry())
	engine.DryRun = c.Bool("dry-run")

	var res dedup.Result
	if bucket := c.String("bucket"); bucket != "" {
		res, err = engine.Run(c.Context, bucket)
	} else {
		res, err = engine.RunAll(c.Context)
	}
	if err != nil {
		return err
	}

	verb := "deleted"
	if engine.DryRun {
		verb = "would delete"
	}
	fmt.Fprintf(c.App.Writer, "%s %d duplicates in %d groups\n", verb, res.Deleted, res.Groups)
	return nil
}

func runDeleteObject(c *cli.Context, cfg *config.Config) error {
	store, err := newStore(c, cfg)
	if err != nil {
		return err
	}
	return store.Delete(c.Context, c.String("bucket"), c.String("key"))
}

// exitCodeFor maps an error to the exit code schedulers key their retry
// strategy on.
func exitCodeFor(err error) int {
	var catalogErr *catalog.ClientError
	if errors.As(err, &catalogErr) {
		return exitcode.CatalogError
	}
	var storeErr minio.ErrorResponse
	if errors.As(err, &storeErr) {
		return exitcode.StorageError
	}
	var envErr *config.ErrInvalidEnvVar
	if errors.As(err, &envErr) {
		return exitcode.ConfigError
	}
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return exitcode.ApplicationError
}
