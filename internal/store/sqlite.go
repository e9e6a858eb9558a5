package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// development and single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                 TEXT PRIMARY KEY,
	external_id        TEXT,
	salesforce_lead_id TEXT,
	business_name      TEXT NOT NULL,
	identity           TEXT NOT NULL,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_salesforce_lead_id ON leads(salesforce_lead_id);

CREATE TABLE IF NOT EXISTS lead_enrichments (
	id                 TEXT PRIMARY KEY,
	lead_id            TEXT REFERENCES leads(id),
	salesforce_lead_id TEXT,
	job_id             TEXT NOT NULL UNIQUE,
	status             TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'success', 'partial', 'failed', 'completed', 'no_data')),
	places_facts       TEXT,
	company_facts      TEXT,
	webtech_facts      TEXT,
	fit_score          INTEGER,
	score_breakdown    TEXT,
	projection         TEXT,
	crm_updated        INTEGER NOT NULL DEFAULT 0,
	crm_updated_at     DATETIME,
	error_message      TEXT,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	CHECK (lead_id IS NOT NULL OR salesforce_lead_id IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_enrichments_status ON lead_enrichments(status);
CREATE INDEX IF NOT EXISTS idx_enrichments_sf_lead ON lead_enrichments(salesforce_lead_id);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	payload        TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	last_failed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateLead(ctx context.Context, identity *model.LeadIdentity) (string, error) {
	id := uuid.New().String()

	identityJSON, err := json.Marshal(identity)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal identity")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, external_id, salesforce_lead_id, business_name, identity, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, nullable(identity.ExternalID), nullable(identity.SalesforceLeadID),
		identity.BusinessName, string(identityJSON), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert lead")
	}
	return id, nil
}

func (s *SQLiteStore) CreateEnrichment(ctx context.Context, leadID, salesforceLeadID *string, jobID string) (*model.AuditRow, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_enrichments (id, lead_id, salesforce_lead_id, job_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, leadID, salesforceLeadID, jobID, string(model.StatusPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert enrichment")
	}

	return &model.AuditRow{
		ID:               id,
		LeadID:           leadID,
		SalesforceLeadID: salesforceLeadID,
		JobID:            jobID,
		Status:           model.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (s *SQLiteStore) UpdateEnrichmentFacts(ctx context.Context, id, source string, facts any) error {
	column, ok := factsColumns[source]
	if !ok {
		return eris.Wrapf(ErrUnknownSource, "%s", source)
	}

	factsJSON, err := json.Marshal(facts)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal %s facts", source)
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE lead_enrichments SET %s = ?, updated_at = ? WHERE id = ?`, column),
		string(factsJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s facts %s", source, id)
	}
	return checkRowsAffected(res, "enrichment", id)
}

func (s *SQLiteStore) UpdateEnrichmentScore(ctx context.Context, id string, fitScore int, breakdown *model.ScoreBreakdown) error {
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal score breakdown")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE lead_enrichments SET fit_score = ?, score_breakdown = ?, updated_at = ? WHERE id = ?`,
		fitScore, string(breakdownJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update score %s", id)
	}
	return checkRowsAffected(res, "enrichment", id)
}

func (s *SQLiteStore) UpdateEnrichmentProjection(ctx context.Context, id string, projection *model.CrmProjection) error {
	projectionJSON, err := json.Marshal(projection)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal projection")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE lead_enrichments SET projection = ?, updated_at = ? WHERE id = ?`,
		string(projectionJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update projection %s", id)
	}
	return checkRowsAffected(res, "enrichment", id)
}

func (s *SQLiteStore) MarkCRMUpdated(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE lead_enrichments SET crm_updated = 1, crm_updated_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark crm updated %s", id)
	}
	return checkRowsAffected(res, "enrichment", id)
}

func (s *SQLiteStore) UpdateEnrichmentStatus(ctx context.Context, id string, status model.EnrichmentStatus, errorMessage *string) error {
	if !status.Valid() {
		return eris.Errorf("invalid enrichment status: %s", status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE lead_enrichments SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(status), errorMessage, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update status %s", id)
	}
	return checkRowsAffected(res, "enrichment", id)
}

func (s *SQLiteStore) GetEnrichment(ctx context.Context, id string) (*model.AuditRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+enrichmentColumns+` FROM lead_enrichments WHERE id = ?`,
		id,
	)
	r, err := scanSQLiteEnrichment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get enrichment %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) ListEnrichments(ctx context.Context, filter EnrichmentFilter) ([]model.AuditRow, error) {
	query := `SELECT ` + enrichmentColumns + ` FROM lead_enrichments WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.SalesforceLeadID != "" {
		query += ` AND salesforce_lead_id = ?`
		args = append(args, filter.SalesforceLeadID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list enrichments")
	}
	defer rows.Close()

	var results []model.AuditRow
	for rows.Next() {
		r, err := scanSQLiteEnrichment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan enrichment")
		}
		results = append(results, *r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list enrichments iterate")
}

func scanSQLiteEnrichment(row scannable) (*model.AuditRow, error) {
	var r model.AuditRow
	var leadID, salesforceLeadID, errorMessage sql.NullString
	var placesJSON, companyJSON, webtechJSON, breakdownJSON, projectionJSON sql.NullString
	var fitScore sql.NullInt64
	var crmUpdatedAt sql.NullTime

	err := row.Scan(&r.ID, &leadID, &salesforceLeadID, &r.JobID, &r.Status,
		&placesJSON, &companyJSON, &webtechJSON,
		&fitScore, &breakdownJSON, &projectionJSON,
		&r.CRMUpdated, &crmUpdatedAt, &errorMessage,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if leadID.Valid {
		r.LeadID = &leadID.String
	}
	if salesforceLeadID.Valid {
		r.SalesforceLeadID = &salesforceLeadID.String
	}
	if errorMessage.Valid {
		r.ErrorMessage = &errorMessage.String
	}
	if fitScore.Valid {
		score := int(fitScore.Int64)
		r.FitScore = &score
	}
	if crmUpdatedAt.Valid {
		r.CRMUpdatedAt = &crmUpdatedAt.Time
	}

	if err := unmarshalNullInto(placesJSON, &r.Places); err != nil {
		return nil, eris.Wrap(err, "unmarshal places facts")
	}
	if err := unmarshalNullInto(companyJSON, &r.Company); err != nil {
		return nil, eris.Wrap(err, "unmarshal company facts")
	}
	if err := unmarshalNullInto(webtechJSON, &r.WebTech); err != nil {
		return nil, eris.Wrap(err, "unmarshal webtech facts")
	}
	if err := unmarshalNullInto(breakdownJSON, &r.ScoreBreakdown); err != nil {
		return nil, eris.Wrap(err, "unmarshal score breakdown")
	}
	if err := unmarshalNullInto(projectionJSON, &r.Projection); err != nil {
		return nil, eris.Wrap(err, "unmarshal projection")
	}
	return &r, nil
}

func unmarshalNullInto[T any](data sql.NullString, target **T) error {
	if !data.Valid || data.String == "" {
		return nil
	}
	return unmarshalInto([]byte(data.String), target)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// Dead letter queue methods

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	payloadJSON, err := json.Marshal(entry.Update)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal dlq payload")
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (id, payload, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   error = excluded.error, error_type = excluded.error_type,
		   retry_count = excluded.retry_count, next_retry_at = excluded.next_retry_at,
		   last_failed_at = excluded.last_failed_at`,
		entry.ID, string(payloadJSON), entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, payload, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= ? AND retry_count < max_retries`
	args := []any{time.Now().UTC()}

	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}

	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var payloadJSON string
		if err := rows.Scan(&e.ID, &payloadJSON, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		if err := json.Unmarshal([]byte(payloadJSON), &e.Update); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal dlq payload")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: dequeue dlq iterate")
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = ?
		 WHERE id = ?`,
		nextRetryAt, lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment dlq retry %s", id)
	}
	return checkRowsAffected(res, "dlq entry", id)
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: remove dlq")
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count dlq")
}
