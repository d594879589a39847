package migrations

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

func TestListEmbeddedMigrations(t *testing.T) {
	files, err := list(Files())
	if err != nil {
		t.Fatalf("list() error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 embedded migrations, got %d", len(files))
	}
	if files[0].Version != 1 || files[0].Name != "00001_users.sql" {
		t.Fatalf("unexpected first migration: %+v", files[0])
	}
	if files[1].Version != 2 || files[1].Name != "00002_auth_sessions.sql" {
		t.Fatalf("unexpected second migration: %+v", files[1])
	}
	for _, f := range files {
		if len(f.Checksum) != 64 {
			t.Fatalf("expected sha256 checksum for %s, got %q", f.Name, f.Checksum)
		}
	}
}

func TestEmbeddedMigrationsAreAnnotated(t *testing.T) {
	fsys := Files()
	files, err := list(fsys)
	if err != nil {
		t.Fatalf("list() error: %v", err)
	}
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f.Name)
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		body := string(b)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Fatalf("%s is missing goose annotations", f.Name)
		}
	}
}

func TestUsersMigrationNamesUniqueConstraints(t *testing.T) {
	b, err := fs.ReadFile(Files(), "00001_users.sql")
	if err != nil {
		t.Fatalf("read users migration: %v", err)
	}
	for _, want := range []string{"users_username_key", "users_email_key", "user_role"} {
		if !strings.Contains(string(b), want) {
			t.Fatalf("users migration does not declare %s", want)
		}
	}
}

func TestUserIDsAreSixtyFourBit(t *testing.T) {
	checks := map[string]string{
		"00001_users.sql":         "id         BIGSERIAL PRIMARY KEY",
		"00002_auth_sessions.sql": "user_id    BIGINT NOT NULL",
	}
	for name, want := range checks {
		b, err := fs.ReadFile(Files(), name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(b), want) {
			t.Fatalf("%s does not declare %q", name, want)
		}
	}
}

func TestListSortsByVersionAndSkipsOtherFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"00010_later.sql": {Data: []byte("-- +goose Up\nSELECT 1;")},
		"00002_early.sql": {Data: []byte("-- +goose Up\nSELECT 1;")},
		"README.txt":      {Data: []byte("ignore")},
	}
	files, err := list(fsys)
	if err != nil {
		t.Fatalf("list() error: %v", err)
	}
	if len(files) != 2 || files[0].Version != 2 || files[1].Version != 10 {
		t.Fatalf("unexpected ordering: %+v", files)
	}
}

func TestListRejectsUnversionedFile(t *testing.T) {
	fsys := fstest.MapFS{"init.sql": {Data: []byte("SELECT 1;")}}
	if _, err := list(fsys); err == nil {
		t.Fatalf("expected error for migration without version prefix")
	}
}

func TestNewServiceRequiresDatabase(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatalf("expected error for nil database")
	}
}
