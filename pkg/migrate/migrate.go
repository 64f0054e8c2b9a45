package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where cmd/migrate creates new files.
const DefaultDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Report is one migration touched or inspected by a command.
type Report struct {
	Version  int64
	Name     string
	State    string
	Duration time.Duration
}

func newProvider(db *sql.DB) (*goose.Provider, error) {
	if db == nil {
		return nil, errors.New("migrate: db is required")
	}
	fsys, err := fs.Sub(embedded, embeddedDir)
	if err != nil {
		return nil, fmt.Errorf("migrate: open embedded migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("migrate: build provider: %w", err)
	}
	return provider, nil
}

// Run executes up, down or status against the embedded migrations.
func Run(ctx context.Context, db *sql.DB, command string) ([]Report, error) {
	provider, err := newProvider(db)
	if err != nil {
		return nil, err
	}
	switch command {
	case "up":
		results, err := provider.Up(ctx)
		return fromResults(results), wrap("up", err)
	case "down":
		result, err := provider.Down(ctx)
		if result == nil {
			return nil, wrap("down", err)
		}
		return fromResults([]*goose.MigrationResult{result}), wrap("down", err)
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return nil, wrap("status", err)
		}
		reports := make([]Report, 0, len(statuses))
		for _, s := range statuses {
			reports = append(reports, Report{Version: s.Source.Version, Name: path.Base(s.Source.Path), State: string(s.State)})
		}
		return reports, nil
	default:
		return nil, fmt.Errorf("migrate: unknown command %q", command)
	}
}

// MigrateToVersion moves the schema up or down until target is the newest
// applied version.
func MigrateToVersion(ctx context.Context, db *sql.DB, target string) ([]Report, error) {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil || version < 0 {
		return nil, fmt.Errorf("migrate: invalid version %q (expected YYYYMMDDHHMMSS)", target)
	}
	provider, err := newProvider(db)
	if err != nil {
		return nil, err
	}
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return nil, wrap("read version", err)
	}

	var results []*goose.MigrationResult
	switch {
	case version > current:
		results, err = provider.UpTo(ctx, version)
	case version < current:
		results, err = provider.DownTo(ctx, version)
	}
	return fromResults(results), wrap(fmt.Sprintf("migrate to %d", version), err)
}

func fromResults(results []*goose.MigrationResult) []Report {
	reports := make([]Report, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		reports = append(reports, Report{
			Version:  r.Source.Version,
			Name:     path.Base(r.Source.Path),
			State:    r.Direction,
			Duration: r.Duration,
		})
	}
	return reports
}

func wrap(op string, err error) error {
	if err == nil || errors.Is(err, goose.ErrNoNextVersion) {
		return nil
	}
	return fmt.Errorf("migrate: %s: %w", op, err)
}
