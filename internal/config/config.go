package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds runtime settings that are not per-invocation credentials.
// Store credentials are CLI flags, not config.
type Config struct {
	StoreEndpoint  string
	StoreUseSSL    bool
	CatalogBaseURL string
	StagingDir     string
	Workers        int
}

// DefaultEndpoint is the Cellar endpoint the backups historically live on.
const DefaultEndpoint = "cellar-c2.services.clever-cloud.com"

const (
	defaultCatalogURL = "https://transport.data.gouv.fr"
	defaultStagingDir = "tmp"
	defaultWorkers    = 4
)

type ErrInvalidEnvVar struct {
	Name  string
	Value string
}

func (e *ErrInvalidEnvVar) Error() string {
	return fmt.Sprintf("environment variable %s has invalid value %q", e.Name, e.Value)
}

// Load reads configuration from environment variables, falling back to
// defaults suitable for the public transport.data.gouv.fr catalog.
func Load() (*Config, error) {
	cfg := &Config{
		StoreEndpoint:  DefaultEndpoint,
		StoreUseSSL:    true,
		CatalogBaseURL: defaultCatalogURL,
		StagingDir:     defaultStagingDir,
		Workers:        defaultWorkers,
	}

	if v := os.Getenv("FEEDVAULT_ENDPOINT"); v != "" {
		cfg.StoreEndpoint = v
	}
	if v := os.Getenv("FEEDVAULT_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, &ErrInvalidEnvVar{Name: "FEEDVAULT_USE_SSL", Value: v}
		}
		cfg.StoreUseSSL = b
	}
	if v := os.Getenv("FEEDVAULT_CATALOG_URL"); v != "" {
		cfg.CatalogBaseURL = v
	}
	if v := os.Getenv("FEEDVAULT_STAGING_DIR"); v != "" {
		cfg.StagingDir = v
	}
	if v := os.Getenv("FEEDVAULT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, &ErrInvalidEnvVar{Name: "FEEDVAULT_WORKERS", Value: v}
		}
		cfg.Workers = n
	}

	return cfg, nil
}
