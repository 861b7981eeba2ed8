package repository

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return sqlx.NewDb(db, "mysql"), mock, func() { _ = db.Close() }
}

var personCols = []string{
	"person_key", "provider_id", "network_url_norm", "email_norm", "company_key",
	"first_name", "last_name", "title", "seniority", "department", "email_status",
	"phone", "job_start_date", "icp_match", "icp_score", "strategy_assignment",
	"readiness_score", "source", "enriched_at", "enrichment_request_hash",
	"network_connection_status", "network_connected_at", "last_call_attempt_at",
	"last_call_status", "created_at", "updated_at",
}

// personRow fills every column with defaults; overrides are keyed by column.
func personRow(overrides map[string]any) []driver.Value {
	defaults := map[string]any{
		"person_key": "", "provider_id": "", "network_url_norm": "", "email_norm": "",
		"company_key": "", "first_name": "", "last_name": "", "title": "", "seniority": "",
		"department": "", "email_status": "", "phone": "", "job_start_date": "",
		"icp_match": "", "icp_score": 0, "strategy_assignment": "", "readiness_score": 0,
		"source": "", "enriched_at": nil, "enrichment_request_hash": "",
		"network_connection_status": "", "network_connected_at": nil,
		"last_call_attempt_at": nil, "last_call_status": "",
		"created_at": fixedNow.Add(-48 * time.Hour), "updated_at": fixedNow.Add(-48 * time.Hour),
	}
	for k, v := range overrides {
		defaults[k] = v
	}
	row := make([]driver.Value, 0, len(personCols))
	for _, c := range personCols {
		row = append(row, defaults[c])
	}
	return row
}
