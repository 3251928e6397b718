package postgres

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrations_Present(t *testing.T) {
	entries, err := fs.ReadDir(embedMigrations, "migrations")
	if err != nil {
		t.Fatalf("cannot read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no embedded migrations found")
	}

	raw, err := fs.ReadFile(embedMigrations, "migrations/0001_init.sql")
	if err != nil {
		t.Fatalf("0001_init.sql not embedded: %v", err)
	}
	for _, want := range []string{"-- +goose Up", "-- +goose Down", "metric_values"} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("migration lacks %q", want)
		}
	}
}
