// Package model defines the data types shared across the enrichment pipeline.
package model

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// salesforceLeadIDPattern matches the 15- or 18-character Lead record id
// format. The 18-character form appends a 3-character case-safety suffix.
var salesforceLeadIDPattern = regexp.MustCompile(`^00Q[A-Za-z0-9]{12}([A-Za-z0-9]{3})?$`)

// ValidSalesforceLeadID reports whether id matches the Lead record id format.
func ValidSalesforceLeadID(id string) bool {
	return salesforceLeadIDPattern.MatchString(id)
}

// LeadIdentity is the sparse business identity an enrichment request starts
// from. BusinessName is the only required field.
type LeadIdentity struct {
	ExternalID       string `json:"external_id,omitempty"`
	SalesforceLeadID string `json:"salesforce_lead_id,omitempty"`
	BusinessName     string `json:"business_name"`
	Website          string `json:"website,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Email            string `json:"email,omitempty"`
	City             string `json:"city,omitempty"`
	State            string `json:"state,omitempty"`
	UTMSource        string `json:"utm_source,omitempty"`
	UTMMedium        string `json:"utm_medium,omitempty"`
	UTMCampaign      string `json:"utm_campaign,omitempty"`
	GCLID            string `json:"gclid,omitempty"`
	FBCLID           string `json:"fbclid,omitempty"`
}

// Validate normalizes and checks the identity. A trimmed non-empty business
// name is required; a present Salesforce id must match the record id format.
func (id *LeadIdentity) Validate() error {
	id.BusinessName = strings.TrimSpace(id.BusinessName)
	if id.BusinessName == "" {
		return eris.New("business_name is required")
	}
	id.Website = strings.TrimSpace(id.Website)
	id.SalesforceLeadID = strings.TrimSpace(id.SalesforceLeadID)
	if id.SalesforceLeadID != "" && !ValidSalesforceLeadID(id.SalesforceLeadID) {
		return eris.Errorf("invalid salesforce_lead_id: %s", id.SalesforceLeadID)
	}
	return nil
}

// HasWebsite reports whether the input identity carries a website URL.
func (id *LeadIdentity) HasWebsite() bool {
	return strings.TrimSpace(id.Website) != ""
}
