package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// EnrichmentStatus is the lifecycle status of one enrichment attempt.
type EnrichmentStatus string

const (
	StatusPending   EnrichmentStatus = "pending"
	StatusSuccess   EnrichmentStatus = "success"
	StatusPartial   EnrichmentStatus = "partial"
	StatusFailed    EnrichmentStatus = "failed"
	StatusCompleted EnrichmentStatus = "completed"
	StatusNoData    EnrichmentStatus = "no_data"
)

// Valid reports whether s is one of the six persisted statuses.
func (s EnrichmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusPartial, StatusFailed, StatusCompleted, StatusNoData:
		return true
	}
	return false
}

// AuditRow is the persisted record of one enrichment attempt. It is created
// pending, progressively updated as stages complete, and never deleted.
// At least one of LeadID and SalesforceLeadID is set; the store enforces it.
type AuditRow struct {
	ID               string           `json:"id"`
	LeadID           *string          `json:"lead_id,omitempty"`
	SalesforceLeadID *string          `json:"salesforce_lead_id,omitempty"`
	JobID            string           `json:"job_id"`
	Status           EnrichmentStatus `json:"status"`

	Places  *PlacesFacts  `json:"places_facts,omitempty"`
	Company *CompanyFacts `json:"company_facts,omitempty"`
	WebTech *WebTechFacts `json:"webtech_facts,omitempty"`

	FitScore       *int            `json:"fit_score,omitempty"`
	ScoreBreakdown *ScoreBreakdown `json:"score_breakdown,omitempty"`
	Projection     *CrmProjection  `json:"projection,omitempty"`

	CRMUpdated   bool       `json:"crm_updated"`
	CRMUpdatedAt *time.Time `json:"crm_updated_at,omitempty"`

	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewJobID returns an opaque 128-bit token, hex-encoded.
func NewJobID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
