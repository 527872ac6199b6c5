package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

// Runner applies goose migrations against Postgres.
type Runner struct {
	provider *goose.Provider
}

// NewRunner reads migrations from fsys, or the embedded set when fsys is nil.
func NewRunner(db *sql.DB, fsys fs.FS) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if fsys == nil {
		fsys = Files()
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

// Up applies every pending migration and returns the versions it ran.
func (r *Runner) Up(ctx context.Context) ([]int64, error) {
	results, err := r.provider.Up(ctx)
	applied := make([]int64, 0, len(results))
	for _, res := range results {
		if res.Error == nil {
			applied = append(applied, res.Source.Version)
		}
	}
	if err != nil {
		return applied, fmt.Errorf("goose up: %w", err)
	}
	return applied, nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) (int64, error) {
	res, err := r.provider.Down(ctx)
	if err != nil {
		return 0, fmt.Errorf("goose down: %w", err)
	}
	return res.Source.Version, nil
}

// To moves the schema up or down until target is the current version.
func (r *Runner) To(ctx context.Context, target int64) error {
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("read db version: %w", err)
	}
	switch {
	case current == target:
		return nil
	case current < target:
		if _, err := r.provider.UpTo(ctx, target); err != nil {
			return fmt.Errorf("goose up to %d: %w", target, err)
		}
	default:
		if _, err := r.provider.DownTo(ctx, target); err != nil {
			return fmt.Errorf("goose down to %d: %w", target, err)
		}
	}
	return nil
}

// Status is one migration file and whether the database has applied it.
type Status struct {
	Version   int64
	File      string
	Applied   bool
	AppliedAt time.Time
}

func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	rows, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make([]Status, 0, len(rows))
	for _, row := range rows {
		out = append(out, Status{
			Version:   row.Source.Version,
			File:      path.Base(row.Source.Path),
			Applied:   row.State == goose.StateApplied,
			AppliedAt: row.AppliedAt,
		})
	}
	return out, nil
}

// ParseVersion accepts the 14 digit timestamp prefix used in file names.
func ParseVersion(value string) (int64, error) {
	if len(value) != len(versionLayout) {
		return 0, fmt.Errorf("version %q must be YYYYMMDDHHMMSS", value)
	}
	if _, err := time.Parse(versionLayout, value); err != nil {
		return 0, fmt.Errorf("version %q must be YYYYMMDDHHMMSS: %w", value, err)
	}
	return strconv.ParseInt(value, 10, 64)
}
