// Package companydata is a client for the firmographic enrichment API.
package companydata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.companydata.io/v1"

// Client performs company enrichment lookups.
type Client interface {
	// Enrich looks up a firmographic profile. A miss returns (nil, nil).
	Enrich(ctx context.Context, req EnrichRequest) (*CompanyProfile, error)
}

// EnrichRequest identifies the company to look up. Website is the strongest
// match key; name plus locality is the fallback.
type EnrichRequest struct {
	Name     string
	Website  string
	Locality string
}

// CompanyProfile is the firmographic record returned by the API.
type CompanyProfile struct {
	Name          string        `json:"name"`
	FoundedYear   *int          `json:"founded_year"`
	EmployeeCount *int          `json:"employee_count"`
	SizeRange     string        `json:"size_range"`
	Industry      string        `json:"industry"`
	RevenueRange  string        `json:"revenue_range"`
	Headquarters  *Headquarters `json:"headquarters"`
}

// Headquarters is the company's primary location.
type Headquarters struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("companydata: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a company enrichment client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Enrich(ctx context.Context, enrichReq EnrichRequest) (*CompanyProfile, error) {
	q := url.Values{}
	if enrichReq.Name != "" {
		q.Set("name", enrichReq.Name)
	}
	if enrichReq.Website != "" {
		q.Set("website", enrichReq.Website)
	}
	if enrichReq.Locality != "" {
		q.Set("locality", enrichReq.Locality)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/companies/enrich?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "companydata: create request")
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "companydata: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "companydata: read response")
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var profile CompanyProfile
	if err := json.Unmarshal(respBody, &profile); err != nil {
		return nil, eris.Wrap(err, "companydata: unmarshal response")
	}

	return &profile, nil
}
