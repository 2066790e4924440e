package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/feedvault/feedvault/internal/model"
)

// Staging manages the local directory downloads pass through on their way to
// the object store. Each run gets its own subdirectory named by run ID, so
// concurrent runs on one host never collide; staged files are removed as
// soon as their upload finishes and the whole directory goes when the run
// ends.
type Staging struct {
	dir string
}

func NewStaging(root string, run model.RunID) *Staging {
	return &Staging{dir: filepath.Join(root, run.String())}
}

// Stage writes body to a file named after the object key. The returned
// cleanup removes the file and must run regardless of the upload outcome.
func (s *Staging) Stage(key string, body io.Reader) (path string, cleanup func(), err error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create staging dir: %w", err)
	}

	path = filepath.Join(s.dir, key)
	f, err := os.Create(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create staging file: %w", err)
	}
	cleanup = func() { os.Remove(path) }

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close staging file: %w", err)
	}
	return path, cleanup, nil
}

// Close removes the run's staging directory and anything left in it.
func (s *Staging) Close() error {
	return os.RemoveAll(s.dir)
}
