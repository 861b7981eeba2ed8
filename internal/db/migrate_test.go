package db

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	src := `-- leading comment
CREATE TABLE a (
    id INT
);

CREATE TABLE b (id INT);
INSERT INTO b VALUES (1)`

	got := splitStatements(src)
	require.Len(t, got, 3)
	assert.Equal(t, "CREATE TABLE a (\n    id INT\n)", got[0])
	assert.Equal(t, "CREATE TABLE b (id INT)", got[1])
	assert.Equal(t, "INSERT INTO b VALUES (1)", got[2])
}

func TestMigratorUp_SkipsAppliedUnits(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()

	units := fstest.MapFS{
		"002_second.sql": {Data: []byte("CREATE TABLE two (id INT);\nCREATE TABLE three (id INT);\n")},
		"001_first.sql":  {Data: []byte("CREATE TABLE one (id INT);\n")},
		"README.md":      {Data: []byte("not a unit")},
	}
	m := NewMigrator(sqlx.NewDb(raw, "mysql"), units, nil)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("001_first"))
	mock.ExpectExec(`CREATE TABLE two`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE three`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).
		WithArgs("002_second", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"002_second"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigratorUp_StopsOnFailedUnit(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()

	units := fstest.MapFS{
		"001_first.sql":  {Data: []byte("CREATE TABLE one (id INT);")},
		"002_second.sql": {Data: []byte("CREATE TABLE two (id INT);")},
	}
	m := NewMigrator(sqlx.NewDb(raw, "mysql"), units, nil)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_migrations`).WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectExec(`CREATE TABLE one`).WillReturnError(assert.AnError)

	applied, err := m.Up(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_first.sql")
	assert.Empty(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddedUnitsAreOrdered(t *testing.T) {
	names, err := listUnits(MySQLMigrations())
	require.NoError(t, err)
	assert.Equal(t, []string{"001_leads.sql", "002_outreach.sql", "003_senders_calls.sql"}, names)

	ch, err := listUnits(ClickHouseMigrations())
	require.NoError(t, err)
	assert.Equal(t, []string{"001_events.sql"}, ch)
}
