// Package salesforce provides REST API access to Salesforce with a lazily
// established, cached session.
package salesforce

import (
	"context"
	"strings"
	"sync"

	gosf "github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the Salesforce operations used by the CRM writer.
type Client interface {
	// UpdateLead writes the given fields onto a Lead record.
	UpdateLead(ctx context.Context, id string, fields map[string]any) error
}

// Config holds credentials for the username-password OAuth flow.
type Config struct {
	LoginURL      string
	Username      string
	Password      string
	SecurityToken string
	ClientID      string
	ClientSecret  string
}

// ConnectFunc establishes an authenticated Salesforce session.
type ConnectFunc func() (*gosf.Salesforce, error)

// ClientOption configures the Salesforce client.
type ClientOption func(*sfClient)

// WithRateLimit sets a per-second rate limit for SF API calls.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) ClientOption {
	return func(c *sfClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithConnectFunc overrides how sessions are established. Used in tests.
func WithConnectFunc(fn ConnectFunc) ClientOption {
	return func(c *sfClient) {
		c.connect = fn
	}
}

// sfClient wraps go-salesforce/v3 with lazy session management. No network
// call happens until the first operation; the session is then cached and
// reused. A call that fails with an expired session drops the cache and
// re-authenticates exactly once.
//
// NOTE: The underlying go-salesforce/v3 library does not accept
// context.Context, so the ctx only governs rate limiter waiting.
type sfClient struct {
	connect ConnectFunc
	limiter *rate.Limiter

	mu sync.Mutex
	sf *gosf.Salesforce
}

// NewClient creates a Salesforce client. Authentication is deferred until
// the first operation.
func NewClient(cfg Config, opts ...ClientOption) Client {
	c := &sfClient{
		connect: func() (*gosf.Salesforce, error) {
			return gosf.Init(gosf.Creds{
				Domain:         cfg.LoginURL,
				Username:       cfg.Username,
				Password:       cfg.Password,
				SecurityToken:  cfg.SecurityToken,
				ConsumerKey:    cfg.ClientID,
				ConsumerSecret: cfg.ClientSecret,
			})
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *sfClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// session returns the cached session, establishing it on first use.
func (c *sfClient) session() (*gosf.Salesforce, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sf != nil {
		return c.sf, nil
	}
	sf, err := c.connect()
	if err != nil {
		return nil, eris.Wrap(err, "sf: authenticate")
	}
	c.sf = sf
	return sf, nil
}

// dropSession clears the cached session so the next call re-authenticates.
func (c *sfClient) dropSession() {
	c.mu.Lock()
	c.sf = nil
	c.mu.Unlock()
}

func (c *sfClient) UpdateLead(ctx context.Context, id string, fields map[string]any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "sf: rate limit")
	}

	sf, err := c.session()
	if err != nil {
		return err
	}

	record := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		record[k] = v
	}
	record["Id"] = id

	err = sf.UpdateOne("Lead", record)
	if err == nil {
		return nil
	}
	if !isSessionExpired(err) {
		return eris.Wrap(err, "sf: update lead "+id)
	}

	// One re-auth, one more attempt.
	c.dropSession()
	sf, sessErr := c.session()
	if sessErr != nil {
		return sessErr
	}
	if err := sf.UpdateOne("Lead", record); err != nil {
		return eris.Wrap(err, "sf: update lead "+id+" after re-auth")
	}
	return nil
}

func isSessionExpired(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "INVALID_SESSION_ID") ||
		strings.Contains(msg, "Session expired")
}
