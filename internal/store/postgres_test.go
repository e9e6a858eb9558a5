package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/resilience"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func strPtr(s string) *string { return &s }

func TestPostgresStore_CreateEnrichment(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO lead_enrichments`).
		WithArgs(pgxmock.AnyArg(), strPtr("lead-1"), (*string)(nil), "job-abc",
			"pending", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	row, err := s.CreateEnrichment(context.Background(), strPtr("lead-1"), nil, "job-abc")
	require.NoError(t, err)
	assert.NotEmpty(t, row.ID)
	assert.Equal(t, "job-abc", row.JobID)
	assert.Equal(t, model.StatusPending, row.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateEnrichmentFacts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE lead_enrichments SET places_facts = \$1`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "enr-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateEnrichmentFacts(context.Background(), "enr-1", "places",
		&model.PlacesFacts{Rating: 4.5})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateEnrichmentFacts_UnknownSource(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	err := s.UpdateEnrichmentFacts(context.Background(), "enr-1", "linkedin", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownSource)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateEnrichmentStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE lead_enrichments SET status = \$1`).
		WithArgs("completed", (*string)(nil), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateEnrichmentStatus(context.Background(), "missing", model.StatusCompleted, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateEnrichmentStatus_Invalid(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	err := s.UpdateEnrichmentStatus(context.Background(), "enr-1", "exploded", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid enrichment status")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkCRMUpdated(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE lead_enrichments SET crm_updated = TRUE`).
		WithArgs(pgxmock.AnyArg(), "enr-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.MarkCRMUpdated(context.Background(), "enr-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEnrichment_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM lead_enrichments WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	row, err := s.GetEnrichment(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEnrichment(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	score := 85
	rows := pgxmock.NewRows([]string{
		"id", "lead_id", "salesforce_lead_id", "job_id", "status",
		"places_facts", "company_facts", "webtech_facts",
		"fit_score", "score_breakdown", "projection",
		"crm_updated", "crm_updated_at", "error_message",
		"created_at", "updated_at",
	}).AddRow(
		"enr-1", strPtr("lead-1"), strPtr("00Qxx000001abcDEF"), "job-abc", model.EnrichmentStatus("completed"),
		[]byte(`{"rating": 4.5, "review_count": 42}`), []byte(`{"size_range": "1-10"}`), nil,
		&score, []byte(`{"solvency": {"total": 75}, "pixel_bonus": {"pixel_count": 2, "bonus": 10}}`), nil,
		true, &now, (*string)(nil),
		now, now,
	)

	mock.ExpectQuery(`SELECT .+ FROM lead_enrichments WHERE id = \$1`).
		WithArgs("enr-1").
		WillReturnRows(rows)

	row, err := s.GetEnrichment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, model.StatusCompleted, row.Status)
	require.NotNil(t, row.Places)
	assert.Equal(t, 4.5, row.Places.Rating)
	assert.Equal(t, 42, row.Places.ReviewCount)
	require.NotNil(t, row.Company)
	assert.Equal(t, "1-10", row.Company.SizeRange)
	assert.Nil(t, row.WebTech)
	require.NotNil(t, row.FitScore)
	assert.Equal(t, 85, *row.FitScore)
	require.NotNil(t, row.ScoreBreakdown)
	assert.Equal(t, 10, row.ScoreBreakdown.PixelBonus.Bonus)
	assert.True(t, row.CRMUpdated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListEnrichments_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{
		"id", "lead_id", "salesforce_lead_id", "job_id", "status",
		"places_facts", "company_facts", "webtech_facts",
		"fit_score", "score_breakdown", "projection",
		"crm_updated", "crm_updated_at", "error_message",
		"created_at", "updated_at",
	}).AddRow(
		"enr-1", strPtr("lead-1"), (*string)(nil), "job-1", model.EnrichmentStatus("failed"),
		nil, nil, nil,
		(*int)(nil), nil, nil,
		false, (*time.Time)(nil), strPtr("all sources failed"),
		time.Now().UTC(), time.Now().UTC(),
	)

	mock.ExpectQuery(`SELECT .+ FROM lead_enrichments WHERE true AND status = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("failed", 10).
		WillReturnRows(rows)

	results, err := s.ListEnrichments(context.Background(), EnrichmentFilter{
		Status: model.StatusFailed,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.StatusFailed, results[0].Status)
	require.NotNil(t, results[0].ErrorMessage)
	assert.Equal(t, "all sources failed", *results[0].ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnqueueDLQ(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO dead_letter_queue`).
		WithArgs("dlq-1", pgxmock.AnyArg(), "session expired", "transient",
			0, 3, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.EnqueueDLQ(context.Background(), resilience.DLQEntry{
		ID: "dlq-1",
		Update: resilience.CRMUpdate{
			SalesforceLeadID: "00Qxx000001abcDEF",
			Fields:           map[string]any{"Fit_Score__c": 85},
		},
		Error:       "session expired",
		ErrorType:   "transient",
		MaxRetries:  3,
		NextRetryAt: time.Now().Add(time.Minute),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IncrementDLQRetry_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE dead_letter_queue`).
		WithArgs(pgxmock.AnyArg(), "still failing", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.IncrementDLQRetry(context.Background(), "missing", time.Now(), "still failing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
