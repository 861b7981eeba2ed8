package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCHInsertBatch_OneStatementPerBatch(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewCHEventsRepository(db)

	events := []model.Envelope{
		{ID: "e1", Kind: model.EventEnrolled, EnrollmentID: 3, PersonKey: "email:a@b.io", CampaignID: "c1", SequenceID: "s1", OccurredAt: fixedNow},
		{ID: "e2", Kind: model.EventDispatched, EnrollmentID: 3, PersonKey: "email:a@b.io", CampaignID: "c1", SequenceID: "s1", Step: 1, Channel: "email", OccurredAt: fixedNow},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO outreach.outreach_events`)
	prep.ExpectExec().
		WithArgs("e1", model.EventEnrolled, int64(3), "email:a@b.io", "c1", "s1", int32(0), "", "", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("e2", model.EventDispatched, int64(3), "email:a@b.io", "c1", "s1", int32(1), "email", "", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.InsertBatch(context.Background(), events))
	require.NoError(t, repo.InsertBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
