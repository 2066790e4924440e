package backup

import (
	"errors"
	"testing"
	"time"

	"github.com/feedvault/feedvault/internal/model"
)

func transitResource(format string) model.Resource {
	return model.Resource{
		Dataset: model.Dataset{ID: "D1", Title: "Réseau", Kind: "public-transit"},
		Title:   "Lines",
		URL:     "http://x/f.zip",
		Format:  format,
	}
}

func TestPolicy_InScope(t *testing.T) {
	tests := []struct {
		name string
		kind string
		fmt  string
		want bool
	}{
		{name: "gtfs transit", kind: "public-transit", fmt: "GTFS", want: true},
		{name: "netex transit", kind: "public-transit", fmt: "NeTEx", want: true},
		{name: "lowercase gtfs", kind: "public-transit", fmt: "gtfs", want: true},
		{name: "csv transit", kind: "public-transit", fmt: "csv", want: false},
		{name: "gtfs other kind", kind: "road-network", fmt: "GTFS", want: false},
		{name: "empty format", kind: "public-transit", fmt: "", want: false},
		{name: "empty kind", kind: "", fmt: "GTFS", want: false},
	}

	var p Policy
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := transitResource(tt.fmt)
			r.Dataset.Kind = tt.kind
			if got := p.InScope(r); got != tt.want {
				t.Errorf("InScope() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicy_IsStale_NoHistory(t *testing.T) {
	var p Policy
	r := transitResource("GTFS")
	// no UpdatedAt needed: empty history is always stale

	stale, err := p.IsStale(r, nil)
	if err != nil {
		t.Fatalf("IsStale() error = %v", err)
	}
	if !stale {
		t.Fatal("empty history must be stale")
	}
}

func TestPolicy_IsStale_FreshWhenBackupIsNewer(t *testing.T) {
	var p Policy
	r := transitResource("GTFS")
	r.UpdatedAt = "2023-01-01T00:00:00Z"

	existing := []model.BackupObject{
		{Key: "Lines_20230601T000000", LastModified: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
	}

	stale, err := p.IsStale(r, existing)
	if err != nil {
		t.Fatalf("IsStale() error = %v", err)
	}
	if stale {
		t.Fatal("backup newer than declared update must be fresh")
	}
}

func TestPolicy_IsStale_EqualTimestampIsFresh(t *testing.T) {
	var p Policy
	r := transitResource("GTFS")
	r.UpdatedAt = "2023-01-01T00:00:00Z"

	existing := []model.BackupObject{
		{LastModified: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	stale, err := p.IsStale(r, existing)
	if err != nil {
		t.Fatalf("IsStale() error = %v", err)
	}
	if stale {
		t.Fatal("backup at exactly the declared update time must be fresh")
	}
}

func TestPolicy_IsStale_StaleWhenResourceIsNewer(t *testing.T) {
	var p Policy
	r := transitResource("GTFS")
	r.UpdatedAt = "2023-06-01T00:00:00Z"

	existing := []model.BackupObject{
		{LastModified: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		{LastModified: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)},
	}

	stale, err := p.IsStale(r, existing)
	if err != nil {
		t.Fatalf("IsStale() error = %v", err)
	}
	if !stale {
		t.Fatal("declared update newer than every backup must be stale")
	}
}

func TestPolicy_IsStale_Monotonic(t *testing.T) {
	// adding a strictly newer backup can never flip fresh back to stale
	var p Policy
	r := transitResource("GTFS")
	r.UpdatedAt = "2023-01-01T00:00:00Z"

	set := []model.BackupObject{
		{LastModified: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	stale, err := p.IsStale(r, set)
	if err != nil || stale {
		t.Fatalf("precondition: fresh, got stale=%v err=%v", stale, err)
	}

	grown := append(set, model.BackupObject{LastModified: time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)})
	stale, err = p.IsStale(r, grown)
	if err != nil {
		t.Fatalf("IsStale() error = %v", err)
	}
	if stale {
		t.Fatal("adding a newer backup flipped fresh to stale")
	}
}

func TestPolicy_IsStale_MalformedTimestamp(t *testing.T) {
	var p Policy
	existing := []model.BackupObject{
		{LastModified: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, updatedAt := range []string{"", "not-a-date", "01/02/2023"} {
		r := transitResource("GTFS")
		r.UpdatedAt = updatedAt

		_, err := p.IsStale(r, existing)
		if err == nil {
			t.Fatalf("expected error for updatedAt %q", updatedAt)
		}
		var malformed *MalformedTimestampError
		if !errors.As(err, &malformed) {
			t.Fatalf("expected MalformedTimestampError, got %T", err)
		}
	}
}

func TestPolicy_IsStale_AcceptsDateOnly(t *testing.T) {
	var p Policy
	r := transitResource("GTFS")
	r.UpdatedAt = "2023-06-01"

	existing := []model.BackupObject{
		{LastModified: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	stale, err := p.IsStale(r, existing)
	if err != nil {
		t.Fatalf("IsStale() error = %v", err)
	}
	if !stale {
		t.Fatal("date-only update time must still compare")
	}
}
