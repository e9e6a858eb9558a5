package source

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/resilience"
	"github.com/sells-group/leadscore/pkg/places"
)

const operationalStatus = "OPERATIONAL"

// PlacesSource resolves a lead identity against the Places text search and
// extracts review counts, address, and category facts.
type PlacesSource struct {
	client  places.Client
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	timeout time.Duration
}

// NewPlacesSource creates the places adapter using the shared breaker registry.
func NewPlacesSource(client places.Client, breakers *resilience.SourceBreakers, timeout time.Duration) *PlacesSource {
	rc := resilience.DefaultRetryConfig()
	rc.OnRetry = resilience.RetryLogger(Places, "text_search")
	return &PlacesSource{
		client:  client,
		breaker: breakers.Get(Places),
		retry:   rc,
		timeout: timeout,
	}
}

// Fetch looks the business up and returns facts for the best match, or
// (nil, nil) when no plausible match exists.
func (s *PlacesSource) Fetch(ctx context.Context, identity *model.LeadIdentity) (*model.PlacesFacts, error) {
	query := placesQuery(identity)

	resp, err := fetch(ctx, s.breaker, s.retry, s.timeout, func(ctx context.Context) (*places.TextSearchResponse, error) {
		return s.client.TextSearch(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	place := bestMatch(identity, resp.Places)
	if place == nil {
		zap.L().Debug("no plausible places match",
			zap.String("business_name", identity.BusinessName),
			zap.Int("candidates", len(resp.Places)),
		)
		return nil, nil
	}

	facts := &model.PlacesFacts{
		PlaceID:         place.ID,
		Name:            place.DisplayName.Text,
		PrimaryCategory: place.PrimaryType,
		ReviewCount:     place.UserRatingCount,
		Rating:          place.Rating,
		Address:         place.FormattedAddress,
		Operational:     place.BusinessStatus == operationalStatus,
		Website:         place.WebsiteURI,
		Phone:           place.NationalPhoneNumber,
		Types:           place.Types,
	}
	facts.OverwriteAddressHint = phonesMatch(identity.Phone, place.NationalPhoneNumber) &&
		namesMatch(identity.BusinessName, place.DisplayName.Text)
	return facts, nil
}

// placesQuery builds the text search query from the identity's name and
// whatever location hints it carries.
func placesQuery(identity *model.LeadIdentity) string {
	parts := []string{identity.BusinessName}
	if identity.City != "" {
		parts = append(parts, identity.City)
	}
	if identity.State != "" {
		parts = append(parts, identity.State)
	}
	return strings.Join(parts, " ")
}

// bestMatch returns the first candidate whose name plausibly refers to the
// input business. Text search ranks by relevance, so first match wins.
func bestMatch(identity *model.LeadIdentity, candidates []places.Place) *places.Place {
	for i := range candidates {
		if namesMatch(identity.BusinessName, candidates[i].DisplayName.Text) {
			return &candidates[i]
		}
	}
	return nil
}
