// Package enrich runs the pipeline for one lead: parallel source fan-out,
// consolidation, scoring, CRM projection, CRM write-back, and the audit
// trail that records each stage.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/projection"
	"github.com/sells-group/leadscore/internal/scoring"
	"github.com/sells-group/leadscore/internal/source"
	"github.com/sells-group/leadscore/internal/store"
)

// DefaultRequestTimeout bounds one full pipeline run.
const DefaultRequestTimeout = 60 * time.Second

// CRM update outcomes reported in the response.
const (
	CRMUpdated = "updated"
	CRMFailed  = "failed"
	CRMSkipped = "skipped"
)

// PlacesFetcher resolves an identity against the places source.
type PlacesFetcher interface {
	Fetch(ctx context.Context, identity *model.LeadIdentity) (*model.PlacesFacts, error)
}

// CompanyFetcher resolves an identity against the company-data source.
type CompanyFetcher interface {
	Fetch(ctx context.Context, identity *model.LeadIdentity) (*model.CompanyFacts, error)
}

// WebTechFetcher inspects the identity's website for tracker fingerprints.
type WebTechFetcher interface {
	Fetch(ctx context.Context, identity *model.LeadIdentity) (*model.WebTechFacts, error)
}

// CRMWriter pushes the scored result onto the CRM record.
type CRMWriter interface {
	Update(ctx context.Context, salesforceLeadID, enrichmentID string, fitScore int, breakdown *model.ScoreBreakdown, projection *model.CrmProjection) error
}

// Result is the outcome of one enrichment run, shaped for the boundary.
type Result struct {
	AuditID string `json:"audit_id,omitempty"`
	JobID   string `json:"request_id"`

	Status     model.EnrichmentStatus `json:"enrichment_status"`
	Record     model.EnrichmentRecord `json:"record"`
	FitScore   int                    `json:"fit_score"`
	Breakdown  *model.ScoreBreakdown  `json:"score_breakdown"`
	Projection *model.CrmProjection   `json:"projection"`

	CRMUpdateStatus string    `json:"crm_update_status"`
	EnrichedAt      time.Time `json:"enrichment_timestamp"`

	// AuditPersisted is false when the audit store was unavailable and the
	// trail for this run is incomplete.
	AuditPersisted bool `json:"audit_persisted"`
}

// Orchestrator coordinates one enrichment request end to end.
type Orchestrator struct {
	places  PlacesFetcher
	company CompanyFetcher
	webtech WebTechFetcher
	crm     CRMWriter
	store   store.Store

	timeout time.Duration
	nowFunc func() time.Time
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithRequestTimeout overrides the per-request pipeline deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// NewOrchestrator wires the pipeline. The CRM writer may be nil, in which
// case every run reports crm_update_status "skipped".
func NewOrchestrator(places PlacesFetcher, company CompanyFetcher, webtech WebTechFetcher, crm CRMWriter, st store.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		places:  places,
		company: company,
		webtech: webtech,
		crm:     crm,
		store:   st,
		timeout: DefaultRequestTimeout,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// sourceResult is one settled adapter outcome. facts is nil when the source
// had nothing or failed.
type sourceResult struct {
	name  string
	facts any
	err   error
}

// Enrich runs the full pipeline for one identity. Source failures degrade the
// result rather than fail it; only validation errors and a dead pipeline
// (cancellation before scoring) surface as errors.
func (o *Orchestrator) Enrich(ctx context.Context, identity *model.LeadIdentity) (*Result, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	res := &Result{
		JobID:           model.NewJobID(),
		Status:          model.StatusPending,
		CRMUpdateStatus: CRMSkipped,
		EnrichedAt:      o.nowFunc().UTC(),
	}
	audit := o.openAudit(ctx, identity, res.JobID)
	if audit != nil {
		res.AuditID = audit.ID
		res.AuditPersisted = true
	}

	record := o.fanOut(ctx, identity, res)

	// A request cancelled before scoring writes failed and stops. The CRM is
	// never touched on this path.
	if ctx.Err() != nil {
		msg := "request deadline exceeded"
		if eris.Is(ctx.Err(), context.Canceled) {
			msg = "request cancelled"
		}
		res.Status = model.StatusFailed
		o.closeAudit(ctx, res, &msg)
		return res, eris.Wrap(ctx.Err(), "enrich: pipeline aborted")
	}

	effective := effectiveIdentity(identity, record.Places)

	if err := o.scoreAndProject(ctx, effective, record, res); err != nil {
		msg := err.Error()
		res.Status = model.StatusFailed
		o.closeAudit(ctx, res, &msg)
		return res, err
	}

	o.writeCRM(ctx, identity, res)

	if record.Empty() {
		res.Status = model.StatusNoData
	} else {
		res.Status = model.StatusCompleted
	}
	o.closeAudit(ctx, res, nil)
	return res, nil
}

// openAudit snapshots the input and opens the pending audit row. A store
// failure degrades the trail, never the request.
func (o *Orchestrator) openAudit(ctx context.Context, identity *model.LeadIdentity, jobID string) *model.AuditRow {
	if o.store == nil {
		return nil
	}

	var leadID, sfID *string
	if id, err := o.store.CreateLead(ctx, identity); err != nil {
		zap.L().Error("failed to persist lead snapshot", zap.Error(err))
	} else {
		leadID = &id
	}
	if identity.SalesforceLeadID != "" {
		sfID = &identity.SalesforceLeadID
	}
	if leadID == nil && sfID == nil {
		return nil
	}

	row, err := o.store.CreateEnrichment(ctx, leadID, sfID, jobID)
	if err != nil {
		zap.L().Error("failed to open audit row", zap.String("job_id", jobID), zap.Error(err))
		return nil
	}
	return row
}

// fanOut dispatches the three adapters concurrently and consumes their
// results serially, so audit fact writes stay totally ordered. A failing or
// panicking adapter never disturbs the others.
func (o *Orchestrator) fanOut(ctx context.Context, identity *model.LeadIdentity, res *Result) *model.EnrichmentRecord {
	results := make(chan sourceResult, 3)

	dispatch := func(name string, fn func(ctx context.Context) (any, error)) {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					results <- sourceResult{name: name, err: eris.Errorf("%s adapter panicked: %v", name, r)}
				}
			}()
			facts, err := fn(ctx)
			results <- sourceResult{name: name, facts: facts, err: err}
		}()
	}

	dispatch(source.Places, func(ctx context.Context) (any, error) {
		facts, err := o.places.Fetch(ctx, identity)
		if facts == nil {
			return nil, err
		}
		return facts, err
	})
	dispatch(source.CompanyData, func(ctx context.Context) (any, error) {
		facts, err := o.company.Fetch(ctx, identity)
		if facts == nil {
			return nil, err
		}
		return facts, err
	})
	dispatch(source.WebTech, func(ctx context.Context) (any, error) {
		facts, err := o.webtech.Fetch(ctx, identity)
		if facts == nil {
			return nil, err
		}
		return facts, err
	})

	record := &model.EnrichmentRecord{}
	for i := 0; i < 3; i++ {
		r := <-results
		if r.err != nil {
			zap.L().Warn("source adapter failed",
				zap.String("source", r.name),
				zap.String("job_id", res.JobID),
				zap.Error(r.err),
			)
			continue
		}
		if r.facts == nil {
			continue
		}

		switch f := r.facts.(type) {
		case *model.PlacesFacts:
			record.Places = f
		case *model.CompanyFacts:
			record.Company = f
		case *model.WebTechFacts:
			record.WebTech = f
		}
		o.writeFacts(ctx, res, r.name, r.facts)
	}
	res.Record = *record
	return record
}

// scoreAndProject computes the score and projection and writes both to the
// audit row. The calculators are pure; a panic here is the only failure mode
// and is surfaced as a fatal pipeline error.
func (o *Orchestrator) scoreAndProject(ctx context.Context, identity *model.LeadIdentity, record *model.EnrichmentRecord, res *Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("enrich: scoring panicked: %v", r)
		}
	}()

	score, breakdown := scoring.Score(identity, record)
	res.FitScore = score
	res.Breakdown = &breakdown

	proj := projection.Project(identity, record)
	res.Projection = &proj

	if res.AuditID != "" {
		if err := o.store.UpdateEnrichmentScore(ctx, res.AuditID, score, &breakdown); err != nil {
			o.logAuditFailure(res, "score", err)
		}
		if err := o.store.UpdateEnrichmentProjection(ctx, res.AuditID, &proj); err != nil {
			o.logAuditFailure(res, "projection", err)
		}
	}
	return nil
}

// writeCRM pushes the result to the CRM when the identity carries a record
// id. Failure is logged and reported, never fatal.
func (o *Orchestrator) writeCRM(ctx context.Context, identity *model.LeadIdentity, res *Result) {
	if o.crm == nil || identity.SalesforceLeadID == "" {
		return
	}

	err := o.crm.Update(ctx, identity.SalesforceLeadID, res.AuditID, res.FitScore, res.Breakdown, res.Projection)
	if err != nil {
		zap.L().Warn("crm update failed",
			zap.String("salesforce_lead_id", identity.SalesforceLeadID),
			zap.String("job_id", res.JobID),
			zap.Error(err),
		)
		res.CRMUpdateStatus = CRMFailed
		return
	}

	res.CRMUpdateStatus = CRMUpdated
	if res.AuditID != "" {
		if err := o.store.MarkCRMUpdated(ctx, res.AuditID); err != nil {
			o.logAuditFailure(res, "crm_updated", err)
		}
	}
}

func (o *Orchestrator) writeFacts(ctx context.Context, res *Result, name string, facts any) {
	if res.AuditID == "" {
		return
	}
	if err := o.store.UpdateEnrichmentFacts(ctx, res.AuditID, name, facts); err != nil {
		o.logAuditFailure(res, fmt.Sprintf("%s facts", name), err)
	}
}

// closeAudit writes the terminal status. Always the last audit write.
func (o *Orchestrator) closeAudit(ctx context.Context, res *Result, errorMessage *string) {
	if res.AuditID == "" {
		return
	}
	// The terminal write must land even when the request context is spent.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
	}
	if err := o.store.UpdateEnrichmentStatus(ctx, res.AuditID, res.Status, errorMessage); err != nil {
		o.logAuditFailure(res, "terminal status", err)
	}
}

func (o *Orchestrator) logAuditFailure(res *Result, stage string, err error) {
	res.AuditPersisted = false
	zap.L().Error("audit write failed",
		zap.String("stage", stage),
		zap.String("audit_id", res.AuditID),
		zap.String("job_id", res.JobID),
		zap.Error(err),
	)
}

// effectiveIdentity applies the overlap precedence rule: input identity wins
// unless the places match was high-confidence (overwrite_address_hint), in
// which case the places fields replace website, phone, city, and state.
func effectiveIdentity(identity *model.LeadIdentity, facts *model.PlacesFacts) *model.LeadIdentity {
	if facts == nil || !facts.OverwriteAddressHint {
		return identity
	}

	merged := *identity
	if facts.Website != "" {
		merged.Website = facts.Website
	}
	if facts.Phone != "" {
		merged.Phone = facts.Phone
	}
	if facts.Locality != "" {
		merged.City = facts.Locality
	}
	return &merged
}
