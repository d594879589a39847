package migrations

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embedded embed.FS

// Files returns the embedded migration sources rooted at the sql directory.
func Files() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

type FileInfo struct {
	Version  int64  `json:"version"`
	Name     string `json:"name"`
	Checksum string `json:"checksum"`
}

type Status struct {
	Version   int64  `json:"version"`
	Name      string `json:"name"`
	Checksum  string `json:"checksum"`
	Applied   bool   `json:"applied"`
	AppliedAt string `json:"applied_at,omitempty"`
}

type Service struct {
	fsys     fs.FS
	provider *goose.Provider
}

func NewService(db *sql.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	fsys := Files()
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	return &Service{fsys: fsys, provider: provider}, nil
}

// Up applies every pending migration and returns the names it ran.
func (s *Service) Up(ctx context.Context) ([]string, error) {
	results, err := s.provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.Source != nil {
			out = append(out, path.Base(r.Source.Path))
		}
	}
	return out, nil
}

func (s *Service) List() ([]FileInfo, error) {
	return list(s.fsys)
}

func (s *Service) Status(ctx context.Context) ([]Status, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}
	states, err := s.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration status: %w", err)
	}

	applied := make(map[int64]time.Time, len(states))
	for _, st := range states {
		if st.Source != nil && st.State == goose.StateApplied {
			applied[st.Source.Version] = st.AppliedAt
		}
	}

	out := make([]Status, 0, len(files))
	for _, f := range files {
		at, ok := applied[f.Version]
		status := Status{Version: f.Version, Name: f.Name, Checksum: f.Checksum, Applied: ok}
		if ok && !at.IsZero() {
			status.AppliedAt = at.UTC().Format(time.RFC3339)
		}
		out = append(out, status)
	}
	return out, nil
}

func list(fsys fs.FS) ([]FileInfo, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		version, err := goose.NumericComponent(e.Name())
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", e.Name(), err)
		}
		b, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		sum := sha256.Sum256(b)
		out = append(out, FileInfo{Version: version, Name: e.Name(), Checksum: hex.EncodeToString(sum[:])})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
