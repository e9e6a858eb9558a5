package resilience

import (
	"time"
)

// CRMUpdate is the payload of a deferred CRM write: the record id plus the
// exact fields that failed to land. Replays are last-writer-wins on the CRM
// side, so re-driving a stale entry is safe.
type CRMUpdate struct {
	SalesforceLeadID string         `json:"salesforce_lead_id"`
	Fields           map[string]any `json:"fields"`
	EnrichmentID     string         `json:"enrichment_id,omitempty"`
}

// DLQEntry is a CRM update that failed after retries and can be re-driven later.
type DLQEntry struct {
	ID           string    `json:"id"`
	Update       CRMUpdate `json:"update"`
	Error        string    `json:"error"`
	ErrorType    string    `json:"error_type"` // "transient" or "permanent"
	RetryCount   int       `json:"retry_count"`
	MaxRetries   int       `json:"max_retries"`
	NextRetryAt  time.Time `json:"next_retry_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastFailedAt time.Time `json:"last_failed_at"`
}

// DLQFilter specifies criteria for querying the dead letter queue.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry reports whether this entry hasn't exceeded its max retry count.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
