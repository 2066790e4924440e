package storage

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// BucketPrefix marks the buckets this tool manages.
const BucketPrefix = "dataset_"

// BucketID returns the bucket holding every backup of a dataset. Stable and
// deterministic given the dataset identity, so history accumulates in the
// same bucket across runs.
func BucketID(datasetID string) string {
	return BucketPrefix + datasetID
}

const keyTimeLayout = "20060102T150405"

var titleReplacer = strings.NewReplacer(" ", "_", "/", "_", "'", "_")

// SanitizeTitle maps a resource title to the logical-resource prefix shared
// by all historical backups of that resource. Spaces, slashes and quotes
// become underscores and the result is reduced to the ASCII range.
func SanitizeTitle(title string) string {
	// NFD then combining-mark removal turns accented letters into their
	// ASCII base. Chain transformers are stateful, so build one per call.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(stripMarks, title)
	if err != nil {
		ascii = title
	}

	var b strings.Builder
	b.Grow(len(ascii))
	for _, r := range titleReplacer.Replace(ascii) {
		if r > unicode.MaxASCII {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// KeyGenerator builds object keys of the form
// {sanitizedTitle}_{YYYYMMDDTHHMMSS}. Keys issued for the same title within
// one second get distinct timestamps: the generator moves the clock forward
// rather than reuse a second it already handed out, so keys never collide
// within a process.
type KeyGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	last map[string]time.Time
}

func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{now: time.Now, last: make(map[string]time.Time)}
}

// Key returns a fresh object key for the resource title.
func (g *KeyGenerator) Key(title string) string {
	prefix := SanitizeTitle(title)

	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now().Truncate(time.Second)
	if last, ok := g.last[prefix]; ok && !ts.After(last) {
		ts = last.Add(time.Second)
	}
	g.last[prefix] = ts

	return prefix + "_" + ts.Format(keyTimeLayout)
}
