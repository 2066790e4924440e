package exitcode

// Exit codes for the feedvault CLI.
// Schedulers can use these to decide retry strategy.
const (
	// Success - run completed
	Success = 0

	// ConfigError - missing or invalid configuration
	// Don't retry: fix the config first
	ConfigError = 1

	// CatalogError - the dataset catalog is unreachable or malformed
	// Retry with backoff
	CatalogError = 2

	// StorageError - the object store rejected an operation (auth, network)
	// Retry with backoff
	StorageError = 3

	// ApplicationError - any other failure
	ApplicationError = 4
)
