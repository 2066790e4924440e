package catalog

import "fmt"

// apiError represents an HTTP-level failure from the catalog or a mirror.
type apiError struct {
	StatusCode int
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("catalog: %s (status %d)", e.Message, e.StatusCode)
}

// ClientError wraps any catalog failure for external consumers. A ClientError
// from ListResources is fatal for a backup run.
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("catalog client: %s", e.Message)
}
