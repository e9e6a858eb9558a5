// Package crm writes scored enrichment results back onto the Salesforce Lead
// record. Writes are best-effort: a failure after retries lands in the dead
// letter queue for later re-drive and never fails the enrichment itself.
package crm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/resilience"
	"github.com/sells-group/leadscore/internal/store"
	"github.com/sells-group/leadscore/pkg/salesforce"
)

// ErrInvalidLeadID is returned when the Salesforce id fails format validation.
// No update attempt is made for an invalid id.
var ErrInvalidLeadID = eris.New("crm: invalid salesforce lead id")

// Lead field API names the projection maps onto. Only non-null values are
// sent; the CRM treats absent fields as untouched.
const (
	fieldFitScore            = "Fit_Score__c"
	fieldScoreBreakdown      = "Score_Breakdown__c"
	fieldHasWebsite          = "Has_Website__c"
	fieldNumberOfEmployees   = "Number_of_Employees__c"
	fieldNumberOfGBPReviews  = "Number_of_GBP_Reviews__c"
	fieldYearsInBusiness     = "Number_of_Years_in_Business__c"
	fieldHasGMB              = "Has_GMB__c"
	fieldGMBURL              = "GMB_URL__c"
	fieldLocationType        = "Location_Type__c"
	fieldSpendingOnMarketing = "Spending_on_Marketing__c"
)

// dlqRetryDelay is how long a dead-lettered update waits before it becomes
// eligible for re-drive.
const dlqRetryDelay = 5 * time.Minute

// Writer pushes fit scores and projected fields to Salesforce.
type Writer struct {
	client salesforce.Client
	store  store.Store
	retry  resilience.RetryConfig

	nowFunc func() time.Time
}

// NewWriter creates a Writer. The store receives dead-lettered updates when
// all retries are exhausted.
func NewWriter(client salesforce.Client, st store.Store) *Writer {
	cfg := resilience.DefaultRetryConfig()
	cfg.ShouldRetry = isRetryable
	cfg.OnRetry = resilience.RetryLogger("salesforce", "update_lead")
	return &Writer{
		client:  client,
		store:   st,
		retry:   cfg,
		nowFunc: time.Now,
	}
}

// Update validates the Salesforce id, builds the field payload from the score
// and projection, and writes it with retry. On exhaustion the update is
// enqueued to the dead letter queue and the final error is returned.
// Repeated updates with the same payload are safe: Salesforce applies
// last-writer-wins.
func (w *Writer) Update(ctx context.Context, salesforceLeadID, enrichmentID string, fitScore int, breakdown *model.ScoreBreakdown, projection *model.CrmProjection) error {
	if !model.ValidSalesforceLeadID(salesforceLeadID) {
		return eris.Wrapf(ErrInvalidLeadID, "%s", salesforceLeadID)
	}

	fields, err := BuildFields(fitScore, breakdown, projection)
	if err != nil {
		return err
	}

	err = resilience.Do(ctx, w.retry, func(ctx context.Context) error {
		return w.client.UpdateLead(ctx, salesforceLeadID, fields)
	})
	if err == nil {
		return nil
	}

	w.deadLetter(ctx, resilience.CRMUpdate{
		SalesforceLeadID: salesforceLeadID,
		Fields:           fields,
		EnrichmentID:     enrichmentID,
	}, err)
	return eris.Wrap(err, "crm: update lead")
}

// Replay re-drives a previously dead-lettered update. The caller owns DLQ
// bookkeeping (retry counts, removal on success).
func (w *Writer) Replay(ctx context.Context, update resilience.CRMUpdate) error {
	if !model.ValidSalesforceLeadID(update.SalesforceLeadID) {
		return eris.Wrapf(ErrInvalidLeadID, "%s", update.SalesforceLeadID)
	}
	err := resilience.Do(ctx, w.retry, func(ctx context.Context) error {
		return w.client.UpdateLead(ctx, update.SalesforceLeadID, update.Fields)
	})
	return eris.Wrap(err, "crm: replay update")
}

// BuildFields maps the score and projection onto Lead field API names.
// Null projection values are omitted; the breakdown is serialized to a JSON
// string for the long-text field.
func BuildFields(fitScore int, breakdown *model.ScoreBreakdown, projection *model.CrmProjection) (map[string]any, error) {
	fields := map[string]any{
		fieldFitScore: fitScore,
	}

	if breakdown != nil {
		b, err := json.Marshal(breakdown)
		if err != nil {
			return nil, eris.Wrap(err, "crm: marshal score breakdown")
		}
		fields[fieldScoreBreakdown] = string(b)
	}

	if projection == nil {
		return fields, nil
	}

	fields[fieldHasWebsite] = projection.HasWebsite
	fields[fieldHasGMB] = projection.HasGMB
	fields[fieldSpendingOnMarketing] = projection.SpendingOnMarketing

	setIfPresent(fields, fieldNumberOfEmployees, projection.NumberOfEmployees)
	setIfPresent(fields, fieldNumberOfGBPReviews, projection.NumberOfGBPReviews)
	setIfPresent(fields, fieldYearsInBusiness, projection.NumberOfYearsInBusiness)
	setIfPresent(fields, fieldGMBURL, projection.GMBURL)
	setIfPresent(fields, fieldLocationType, projection.LocationType)

	return fields, nil
}

func setIfPresent(fields map[string]any, name string, value *string) {
	if value != nil {
		fields[name] = *value
	}
}

// deadLetter enqueues a failed update for later re-drive. Enqueue failures
// are logged, not surfaced; the original write error is what matters.
func (w *Writer) deadLetter(ctx context.Context, update resilience.CRMUpdate, cause error) {
	if w.store == nil {
		return
	}
	now := w.nowFunc().UTC()
	entry := resilience.DLQEntry{
		Update:       update,
		Error:        cause.Error(),
		ErrorType:    resilience.ClassifyError(cause),
		MaxRetries:   3,
		NextRetryAt:  now.Add(dlqRetryDelay),
		CreatedAt:    now,
		LastFailedAt: now,
	}
	if err := w.store.EnqueueDLQ(ctx, entry); err != nil {
		zap.L().Error("failed to enqueue dead letter entry",
			zap.String("salesforce_lead_id", update.SalesforceLeadID),
			zap.Error(err),
		)
	}
}

// permanentMarkers are Salesforce error codes that no amount of retrying
// will fix.
var permanentMarkers = []string{
	"INVALID_FIELD",
	"MALFORMED_ID",
	"REQUIRED_FIELD_MISSING",
	"INVALID_CROSS_REFERENCE_KEY",
	"ENTITY_IS_DELETED",
	"INSUFFICIENT_ACCESS",
	"invalid_grant",
}

// isRetryable treats Salesforce failures as retryable unless the error names
// a permanent condition. Session expiry is already handled one level down by
// the client's single re-auth.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	return true
}
