// Package store persists the enrichment audit trail: every request writes a
// lead_enrichments row that is progressively updated as stages complete and
// never deleted.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/resilience"
)

// Fact columns keyed by source name. Only these sources may write facts.
var factsColumns = map[string]string{
	"places":       "places_facts",
	"company_data": "company_facts",
	"web_tech":     "webtech_facts",
}

// ErrUnknownSource is returned when a facts update names an unknown source.
var ErrUnknownSource = eris.New("store: unknown source")

// EnrichmentFilter specifies criteria for listing enrichment rows.
type EnrichmentFilter struct {
	Status           model.EnrichmentStatus `json:"status,omitempty"`
	SalesforceLeadID string                 `json:"salesforce_lead_id,omitempty"`
	Limit            int                    `json:"limit,omitempty"`
	Offset           int                    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the enrichment pipeline.
type Store interface {
	// Leads
	CreateLead(ctx context.Context, identity *model.LeadIdentity) (string, error)

	// Enrichment audit trail
	CreateEnrichment(ctx context.Context, leadID, salesforceLeadID *string, jobID string) (*model.AuditRow, error)
	UpdateEnrichmentFacts(ctx context.Context, id, source string, facts any) error
	UpdateEnrichmentScore(ctx context.Context, id string, fitScore int, breakdown *model.ScoreBreakdown) error
	UpdateEnrichmentProjection(ctx context.Context, id string, projection *model.CrmProjection) error
	MarkCRMUpdated(ctx context.Context, id string) error
	UpdateEnrichmentStatus(ctx context.Context, id string, status model.EnrichmentStatus, errorMessage *string) error
	GetEnrichment(ctx context.Context, id string) (*model.AuditRow, error)
	ListEnrichments(ctx context.Context, filter EnrichmentFilter) ([]model.AuditRow, error)

	// Dead letter queue for failed CRM writes
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
