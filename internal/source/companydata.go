package source

import (
	"context"
	"strings"
	"time"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/resilience"
	"github.com/sells-group/leadscore/pkg/companydata"
)

// CompanySource fetches firmographics from the company-data provider.
type CompanySource struct {
	client  companydata.Client
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	timeout time.Duration

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewCompanySource creates the company-data adapter using the shared breaker
// registry.
func NewCompanySource(client companydata.Client, breakers *resilience.SourceBreakers, timeout time.Duration) *CompanySource {
	rc := resilience.DefaultRetryConfig()
	rc.OnRetry = resilience.RetryLogger(CompanyData, "enrich")
	return &CompanySource{
		client:  client,
		breaker: breakers.Get(CompanyData),
		retry:   rc,
		timeout: timeout,
		nowFunc: time.Now,
	}
}

// Fetch looks up the company profile. A provider miss returns (nil, nil).
func (s *CompanySource) Fetch(ctx context.Context, identity *model.LeadIdentity) (*model.CompanyFacts, error) {
	req := companydata.EnrichRequest{
		Name:     identity.BusinessName,
		Website:  identity.Website,
		Locality: locality(identity),
	}

	profile, err := fetch(ctx, s.breaker, s.retry, s.timeout, func(ctx context.Context) (*companydata.CompanyProfile, error) {
		return s.client.Enrich(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, nil
	}

	facts := &model.CompanyFacts{
		FoundedYear:   profile.FoundedYear,
		EmployeeCount: profile.EmployeeCount,
		SizeRange:     profile.SizeRange,
		Industry:      profile.Industry,
		RevenueRange:  profile.RevenueRange,
	}
	if profile.Headquarters != nil {
		facts.Headquarters = strings.TrimSpace(strings.Join(nonEmpty(
			profile.Headquarters.City, profile.Headquarters.State), ", "))
	}
	if profile.FoundedYear != nil {
		// A future founded year clamps to zero years in business.
		years := max(s.nowFunc().Year()-*profile.FoundedYear, 0)
		facts.YearsInBusiness = &years
	}
	return facts, nil
}

func locality(identity *model.LeadIdentity) string {
	return strings.Join(nonEmpty(identity.City, identity.State), ", ")
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
