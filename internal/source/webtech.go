package source

import (
	"context"
	"strings"
	"time"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/resilience"
)

// Inspector detects marketing technology on a website.
type Inspector interface {
	Inspect(ctx context.Context, url string) (*model.WebTechFacts, error)
}

// WebTechSource inspects the lead's website for tracking pixels. It only
// runs when the input identity carries a website; there is nothing to render
// otherwise.
type WebTechSource struct {
	inspector Inspector
	breaker   *resilience.CircuitBreaker
	retry     resilience.RetryConfig
	timeout   time.Duration
}

// NewWebTechSource creates the web-tech adapter using the shared breaker
// registry.
func NewWebTechSource(inspector Inspector, breakers *resilience.SourceBreakers, timeout time.Duration) *WebTechSource {
	rc := resilience.DefaultRetryConfig()
	rc.OnRetry = resilience.RetryLogger(WebTech, "inspect")
	return &WebTechSource{
		inspector: inspector,
		breaker:   breakers.Get(WebTech),
		retry:     rc,
		timeout:   timeout,
	}
}

// Fetch renders the identity's website and reports detected trackers.
// (nil, nil) when the identity has no website.
func (s *WebTechSource) Fetch(ctx context.Context, identity *model.LeadIdentity) (*model.WebTechFacts, error) {
	if !identity.HasWebsite() {
		return nil, nil
	}
	url := canonicalURL(identity.Website)

	return fetch(ctx, s.breaker, s.retry, s.timeout, func(ctx context.Context) (*model.WebTechFacts, error) {
		return s.inspector.Inspect(ctx, url)
	})
}

// canonicalURL ensures the website has a scheme; bare domains get https.
func canonicalURL(website string) string {
	website = strings.TrimSpace(website)
	if strings.HasPrefix(website, "http://") || strings.HasPrefix(website, "https://") {
		return website
	}
	return "https://" + website
}
