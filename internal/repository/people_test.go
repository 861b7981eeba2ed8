package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPeopleRepo(t *testing.T) (*PeopleRepositoryImpl, sqlmock.Sqlmock, func()) {
	db, mock, cleanup := setupTestDB(t)
	repo := NewPeopleRepository(db)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock, cleanup
}

func TestPeopleUpsert_InsertsNewPerson(t *testing.T) {
	repo, mock, cleanup := newPeopleRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM leads_people .+ FOR UPDATE`).
		WithArgs("email:john@acme.com", nil, nil, "john@acme.com").
		WillReturnRows(sqlmock.NewRows(personCols))
	mock.ExpectExec(`INSERT INTO leads_people`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	key, err := repo.Upsert(context.Background(), model.Person{Email: " John@ACME.com ", FirstName: "John"}, "acme.com")
	require.NoError(t, err)
	assert.Equal(t, "email:john@acme.com", key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeopleUpsert_MergesIntoExistingRow(t *testing.T) {
	repo, mock, cleanup := newPeopleRepo(t)
	defer cleanup()

	enrichedAt := fixedNow.Add(-24 * time.Hour)
	existing := personRow(map[string]any{
		"person_key": "email:john@acme.com", "email_norm": "john@acme.com",
		"first_name": "John", "title": "Operations Manager",
		"icp_score": 5, "readiness_score": 40, "enriched_at": enrichedAt,
	})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM leads_people`).
		WillReturnRows(sqlmock.NewRows(personCols).AddRow(existing...))
	mock.ExpectExec(`UPDATE leads_people`).
		WithArgs(
			"email:john@acme.com", nil, nil, "john@acme.com",
			"", "John", "Smith", "Operations Manager", "", "",
			"", "", "", "", 5, "", 40,
			"", enrichedAt, "",
			"", nil, nil, "", fixedNow,
			"email:john@acme.com",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// strictly weaker update: lower scores, no enrichment stamp, different title
	key, err := repo.Upsert(context.Background(), model.Person{
		Email: "john@acme.com", LastName: "Smith", Title: "Intern", ICPScore: 2, ReadinessScore: 10,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "email:john@acme.com", key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeopleUpsert_RekeysWhenStrongerIdentifierArrives(t *testing.T) {
	repo, mock, cleanup := newPeopleRepo(t)
	defer cleanup()

	existing := personRow(map[string]any{"person_key": "email:john@acme.com", "email_norm": "john@acme.com"})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM leads_people`).
		WithArgs("provider:p-77", "p-77", nil, "john@acme.com").
		WillReturnRows(sqlmock.NewRows(personCols).AddRow(existing...))
	for _, table := range []string{"outreach_log", "apollo_queue", "voice_calls"} {
		mock.ExpectExec(`UPDATE ` + table + ` SET person_key = \? WHERE person_key = \?`).
			WithArgs("provider:p-77", "email:john@acme.com").
			WillReturnResult(sqlmock.NewResult(0, 2))
	}
	mock.ExpectExec(`UPDATE leads_people`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	key, err := repo.Upsert(context.Background(), model.Person{ProviderID: "p-77", Email: "john@acme.com"}, "")
	require.NoError(t, err)
	assert.Equal(t, "provider:p-77", key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeopleUpsert_RetriesOnceAfterDuplicateKey(t *testing.T) {
	repo, mock, cleanup := newPeopleRepo(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM leads_people`).WillReturnRows(sqlmock.NewRows(personCols))
	mock.ExpectExec(`INSERT INTO leads_people`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM leads_people`).
		WillReturnRows(sqlmock.NewRows(personCols).AddRow(personRow(map[string]any{
			"person_key": "email:a@b.io", "email_norm": "a@b.io",
		})...))
	mock.ExpectExec(`UPDATE leads_people`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	key, err := repo.Upsert(context.Background(), model.Person{Email: "a@b.io"}, "")
	require.NoError(t, err)
	assert.Equal(t, "email:a@b.io", key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeopleGetByKey_Missing(t *testing.T) {
	repo, mock, cleanup := newPeopleRepo(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT .+ FROM leads_people WHERE person_key = \?`).
		WithArgs("email:nobody@x.io").
		WillReturnRows(sqlmock.NewRows(personCols))

	p, err := repo.GetByKey(context.Background(), "email:nobody@x.io")
	require.NoError(t, err)
	assert.Nil(t, p)
}
