package storage

import (
	"strings"
	"testing"
	"time"
)

func TestBucketID(t *testing.T) {
	if got := BucketID("5f239"); got != "dataset_5f239" {
		t.Fatalf("BucketID() = %q, want %q", got, "dataset_5f239")
	}
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "plain", title: "Lines", want: "Lines"},
		{name: "spaces", title: "GTFS du réseau", want: "GTFS_du_reseau"},
		{name: "slashes", title: "lignes/2023", want: "lignes_2023"},
		{name: "quotes", title: "l'été", want: "l_ete"},
		{name: "non ascii leftovers", title: "横浜 feed", want: "___feed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeTitle(tt.title); got != tt.want {
				t.Errorf("SanitizeTitle(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestKeyGenerator_Format(t *testing.T) {
	g := NewKeyGenerator()
	g.now = func() time.Time { return time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC) }

	got := g.Key("Lines du réseau")
	want := "Lines_du_reseau_20230102T030405"
	if got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}
}

func TestKeyGenerator_NoCollisions(t *testing.T) {
	g := NewKeyGenerator()
	g.now = func() time.Time { return time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC) }

	seen := make(map[string]bool)
	for range 100 {
		k := g.Key("Lines")
		if seen[k] {
			t.Fatalf("duplicate key %q", k)
		}
		seen[k] = true
		if !strings.HasPrefix(k, "Lines_") {
			t.Fatalf("key %q lost its logical prefix", k)
		}
	}
}

func TestKeyGenerator_IndependentTitles(t *testing.T) {
	g := NewKeyGenerator()
	g.now = func() time.Time { return time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC) }

	a := g.Key("Lines")
	b := g.Key("Stops")
	if !strings.HasSuffix(a, "20230102T030405") || !strings.HasSuffix(b, "20230102T030405") {
		t.Fatalf("distinct titles must not push each other's clock: %q %q", a, b)
	}
}
