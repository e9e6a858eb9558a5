package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscore/internal/db"
	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot audit-trail operations.
var preparedStatements = map[string]string{
	"insert_enrichment": `INSERT INTO lead_enrichments (id, lead_id, salesforce_lead_id, job_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"update_status":     `UPDATE lead_enrichments SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
	"update_score":      `UPDATE lead_enrichments SET fit_score = $1, score_breakdown = $2, updated_at = $3 WHERE id = $4`,
	"update_projection": `UPDATE lead_enrichments SET projection = $1, updated_at = $2 WHERE id = $3`,
	"mark_crm_updated":  `UPDATE lead_enrichments SET crm_updated = TRUE, crm_updated_at = $1, updated_at = $1 WHERE id = $2`,
	"get_enrichment":    `SELECT id, lead_id, salesforce_lead_id, job_id, status, places_facts, company_facts, webtech_facts, fit_score, score_breakdown, projection, crm_updated, crm_updated_at, error_message, created_at, updated_at FROM lead_enrichments WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(20)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                 TEXT PRIMARY KEY,
	external_id        TEXT,
	salesforce_lead_id TEXT,
	business_name      TEXT NOT NULL,
	identity           JSONB NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_salesforce_lead_id ON leads(salesforce_lead_id);
CREATE INDEX IF NOT EXISTS idx_leads_external_id ON leads(external_id);

CREATE TABLE IF NOT EXISTS lead_enrichments (
	id                 TEXT PRIMARY KEY,
	lead_id            TEXT REFERENCES leads(id),
	salesforce_lead_id TEXT,
	job_id             TEXT NOT NULL UNIQUE,
	status             TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'success', 'partial', 'failed', 'completed', 'no_data')),
	places_facts       JSONB,
	company_facts      JSONB,
	webtech_facts      JSONB,
	fit_score          INTEGER,
	score_breakdown    JSONB,
	projection         JSONB,
	crm_updated        BOOLEAN NOT NULL DEFAULT FALSE,
	crm_updated_at     TIMESTAMPTZ,
	error_message      TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (lead_id IS NOT NULL OR salesforce_lead_id IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_enrichments_status ON lead_enrichments(status);
CREATE INDEX IF NOT EXISTS idx_enrichments_sf_lead ON lead_enrichments(salesforce_lead_id);
CREATE INDEX IF NOT EXISTS idx_enrichments_created_at ON lead_enrichments(created_at DESC);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	payload        JSONB NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, identity *model.LeadIdentity) (string, error) {
	id := uuid.New().String()

	identityJSON, err := json.Marshal(identity)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal identity")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (id, external_id, salesforce_lead_id, business_name, identity, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, nullable(identity.ExternalID), nullable(identity.SalesforceLeadID),
		identity.BusinessName, identityJSON, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert lead")
	}
	return id, nil
}

func (s *PostgresStore) CreateEnrichment(ctx context.Context, leadID, salesforceLeadID *string, jobID string) (*model.AuditRow, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO lead_enrichments (id, lead_id, salesforce_lead_id, job_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, leadID, salesforceLeadID, jobID, string(model.StatusPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert enrichment")
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

func (s *PostgresStore) UpdateEnrichmentFacts(ctx context.Context, id, source string, facts any) error {
	column, ok := factsColumns[source]
	if !ok {
		return eris.Wrapf(ErrUnknownSource, "%s", source)
	}

	factsJSON, err := json.Marshal(facts)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal %s facts", source)
	}

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE lead_enrichments SET %s = $1, updated_at = $2 WHERE id = $3`, column),
		factsJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s facts %s", source, id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("enrichment not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateEnrichmentScore(ctx context.Context, id string, fitScore int, breakdown *model.ScoreBreakdown) error {
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal score breakdown")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE lead_enrichments SET fit_score = $1, score_breakdown = $2, updated_at = $3 WHERE id = $4`,
		fitScore, breakdownJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update score %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("enrichment not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateEnrichmentProjection(ctx context.Context, id string, projection *model.CrmProjection) error {
	projectionJSON, err := json.Marshal(projection)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal projection")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE lead_enrichments SET projection = $1, updated_at = $2 WHERE id = $3`,
		projectionJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update projection %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("enrichment not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) MarkCRMUpdated(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE lead_enrichments SET crm_updated = TRUE, crm_updated_at = $1, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark crm updated %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("enrichment not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateEnrichmentStatus(ctx context.Context, id string, status model.EnrichmentStatus, errorMessage *string) error {
	if !status.Valid() {
		return eris.Errorf("invalid enrichment status: %s", status)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE lead_enrichments SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		string(status), errorMessage, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("enrichment not found: %s", id)
	}
	return nil
}

const enrichmentColumns = `id, lead_id, salesforce_lead_id, job_id, status, places_facts, company_facts, webtech_facts, fit_score, score_breakdown, projection, crm_updated, crm_updated_at, error_message, created_at, updated_at`

func (s *PostgresStore) GetEnrichment(ctx context.Context, id string) (*model.AuditRow, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+enrichmentColumns+` FROM lead_enrichments WHERE id = $1`,
		id,
	)
	r, err := scanEnrichment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get enrichment %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListEnrichments(ctx context.Context, filter EnrichmentFilter) ([]model.AuditRow, error) {
	query := `SELECT ` + enrichmentColumns + ` FROM lead_enrichments WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.SalesforceLeadID != "" {
		query += fmt.Sprintf(` AND salesforce_lead_id = $%d`, argIdx)
		args = append(args, filter.SalesforceLeadID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list enrichments")
	}
	defer rows.Close()

	var results []model.AuditRow
	for rows.Next() {
		r, err := scanEnrichment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan enrichment")
		}
		results = append(results, *r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list enrichments iterate")
}

// scannable abstracts pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanEnrichment(row scannable) (*model.AuditRow, error) {
	var r model.AuditRow
	var placesJSON, companyJSON, webtechJSON, breakdownJSON, projectionJSON []byte

	err := row.Scan(&r.ID, &r.LeadID, &r.SalesforceLeadID, &r.JobID, &r.Status,
		&placesJSON, &companyJSON, &webtechJSON,
		&r.FitScore, &breakdownJSON, &projectionJSON,
		&r.CRMUpdated, &r.CRMUpdatedAt, &r.ErrorMessage,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := unmarshalInto(placesJSON, &r.Places); err != nil {
		return nil, eris.Wrap(err, "unmarshal places facts")
	}
	if err := unmarshalInto(companyJSON, &r.Company); err != nil {
		return nil, eris.Wrap(err, "unmarshal company facts")
	}
	if err := unmarshalInto(webtechJSON, &r.WebTech); err != nil {
		return nil, eris.Wrap(err, "unmarshal webtech facts")
	}
	if err := unmarshalInto(breakdownJSON, &r.ScoreBreakdown); err != nil {
		return nil, eris.Wrap(err, "unmarshal score breakdown")
	}
	if err := unmarshalInto(projectionJSON, &r.Projection); err != nil {
		return nil, eris.Wrap(err, "unmarshal projection")
	}
	return &r, nil
}

// unmarshalInto decodes data into a freshly allocated **T target, leaving the
// pointer nil when the column was NULL.
func unmarshalInto[T any](data []byte, target **T) error {
	if len(data) == 0 {
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	*target = v
	return nil
}

// nullable maps an empty string to a NULL column value.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Dead letter queue methods

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	payloadJSON, err := json.Marshal(entry.Update)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal dlq payload")
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue
		 (id, payload, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   error = $3, error_type = $4, retry_count = $5,
		   next_retry_at = $7, last_failed_at = $9`,
		entry.ID, payloadJSON, entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "postgres: enqueue dlq")
}

func (s *PostgresStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, payload, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= now() AND retry_count < max_retries`
	args := []any{}
	argIdx := 1

	if filter.ErrorType != "" {
		query += fmt.Sprintf(` AND error_type = $%d`, argIdx)
		args = append(args, filter.ErrorType)
		argIdx++
	}

	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var payloadJSON []byte
		if err := rows.Scan(&e.ID, &payloadJSON, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		if err := json.Unmarshal(payloadJSON, &e.Update); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal dlq payload")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: dequeue dlq iterate")
}

func (s *PostgresStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = $1, error = $2, last_failed_at = now()
		 WHERE id = $3`,
		nextRetryAt, lastErr, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment dlq retry %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("dlq entry not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_queue WHERE id = $1`, id)
	return eris.Wrap(err, "postgres: remove dlq")
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count dlq")
}
