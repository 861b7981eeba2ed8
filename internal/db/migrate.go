package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed migrations/mysql/*.sql
var mysqlMigrations embed.FS

//go:embed migrations/clickhouse/*.sql
var clickhouseMigrations embed.FS

// MySQLMigrations returns the embedded MySQL units, rooted at their directory.
func MySQLMigrations() fs.FS {
	sub, _ := fs.Sub(mysqlMigrations, "migrations/mysql")
	return sub
}

// ClickHouseMigrations returns the embedded ClickHouse units.
func ClickHouseMigrations() fs.FS {
	sub, _ := fs.Sub(clickhouseMigrations, "migrations/clickhouse")
	return sub
}

// Migrator applies *.sql units in lexical order and records each applied
// unit in schema_migrations. Units already recorded are skipped, so Up can
// run on every deploy.
type Migrator struct {
	DB    *sqlx.DB
	Units fs.FS
	Log   *zap.Logger

	now func() time.Time
}

func NewMigrator(db *sqlx.DB, units fs.FS, log *zap.Logger) *Migrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Migrator{DB: db, Units: units, Log: log, now: time.Now}
}

// Up applies pending units and returns their versions.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if _, err := m.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    VARCHAR(191) NOT NULL PRIMARY KEY,
			applied_at DATETIME(6)  NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var done []string
	if err := m.DB.SelectContext(ctx, &done, `SELECT version FROM schema_migrations`); err != nil {
		return nil, fmt.Errorf("list applied: %w", err)
	}
	seen := make(map[string]bool, len(done))
	for _, v := range done {
		seen[v] = true
	}

	units, err := listUnits(m.Units)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, name := range units {
		version := strings.TrimSuffix(name, ".sql")
		if seen[version] {
			continue
		}
		if err := execUnit(ctx, m.DB, m.Units, name); err != nil {
			return applied, err
		}
		if _, err := m.DB.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			version, m.now().UTC()); err != nil {
			return applied, fmt.Errorf("record %s: %w", version, err)
		}
		m.Log.Info("migration applied", zap.String("version", version))
		applied = append(applied, version)
	}
	return applied, nil
}

// ApplyAll runs every unit unconditionally. The ClickHouse units are written
// with IF NOT EXISTS and need no version table.
func ApplyAll(ctx context.Context, db *sqlx.DB, units fs.FS) error {
	names, err := listUnits(units)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := execUnit(ctx, db, units, name); err != nil {
			return err
		}
	}
	return nil
}

func listUnits(units fs.FS) ([]string, error) {
	names, err := fs.Glob(units, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func execUnit(ctx context.Context, db *sqlx.DB, units fs.FS, name string) error {
	raw, err := fs.ReadFile(units, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	for i, stmt := range splitStatements(string(raw)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %s statement %d: %w", name, i+1, err)
		}
	}
	return nil
}

// splitStatements cuts a unit on semicolons that end a line, so drivers
// without multi-statement support can run it. Units must not put a
// line-ending semicolon inside a string literal.
func splitStatements(src string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";")
			out = append(out, stmt)
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}
