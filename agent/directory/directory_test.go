package directory

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/pchaya/aftercare/agent/contract"
	statex "github.com/pchaya/aftercare/agent/state"
)

func TestStaticDirectoryLookup(t *testing.T) {
	t.Parallel()

	dir := NewStatic([]statex.PatientRecord{
		{Name: "Alice Wong", PrimaryDiagnosis: "appendectomy recovery"},
	})

	rec, err := dir.Lookup(context.Background(), "alice wong")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if rec.Name != "Alice Wong" {
		t.Fatalf("lookup must be case-insensitive but return canonical casing, got %q", rec.Name)
	}

	// Returned record is a copy.
	rec.PrimaryDiagnosis = "changed"
	again, err := dir.Lookup(context.Background(), "Alice Wong")
	if err != nil {
		t.Fatalf("Lookup() second error = %v", err)
	}
	if again.PrimaryDiagnosis != "appendectomy recovery" {
		t.Fatalf("mutation leaked into the roster")
	}
}

func TestStaticDirectoryNotFound(t *testing.T) {
	t.Parallel()

	dir := NewStatic(nil)
	_, err := dir.Lookup(context.Background(), "Nobody")
	if !errors.Is(err, contractx.ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestStaticDirectoryEmptyName(t *testing.T) {
	t.Parallel()

	dir := NewStatic(nil)
	if _, err := dir.Lookup(context.Background(), "  "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
