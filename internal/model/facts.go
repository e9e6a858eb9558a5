package model

// PlacesFacts holds what the places source returned about one identity.
type PlacesFacts struct {
	PlaceID         string   `json:"place_id,omitempty"`
	Name            string   `json:"name,omitempty"`
	PrimaryCategory string   `json:"primary_category,omitempty"`
	ReviewCount     int      `json:"review_count"`
	Rating          float64  `json:"rating"`
	Address         string   `json:"address,omitempty"`
	Operational     bool     `json:"operational"`
	Website         string   `json:"website,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	Locality        string   `json:"locality,omitempty"`
	Types           []string `json:"types,omitempty"`

	// OverwriteAddressHint is set only when both the normalized phone and
	// normalized name are high-confidence matches against the input
	// identity; the orchestrator then prefers these fields over the input.
	OverwriteAddressHint bool `json:"overwrite_address_hint"`
}

// CompanyFacts holds firmographics from the company-data source. Either
// EmployeeCount or SizeRange may be present; neither is required.
type CompanyFacts struct {
	FoundedYear     *int   `json:"founded_year,omitempty"`
	YearsInBusiness *int   `json:"years_in_business,omitempty"`
	EmployeeCount   *int   `json:"employee_count,omitempty"`
	SizeRange       string `json:"size_range,omitempty"`
	Industry        string `json:"industry,omitempty"`
	RevenueRange    string `json:"revenue_range,omitempty"`
	Headquarters    string `json:"headquarters,omitempty"`
}

// WebTechFacts records which of the five known trackers a rendered page
// loads. It is always well-typed: detection failure yields the all-false
// value, never nil booleans.
type WebTechFacts struct {
	HasMetaPixel           bool `json:"has_meta_pixel"`
	HasGA4                 bool `json:"has_ga4"`
	HasGoogleAdsTag        bool `json:"has_google_ads_tag"`
	HasTikTokPixel         bool `json:"has_tiktok_pixel"`
	HasMarketingAutomation bool `json:"has_marketing_automation"`

	// PixelCount counts how many of the first four trackers are present.
	PixelCount int `json:"pixel_count"`

	Tools []string `json:"tools,omitempty"`
}

// CountPixels recomputes PixelCount from the four advertising trackers.
func (w *WebTechFacts) CountPixels() int {
	n := 0
	for _, b := range []bool{w.HasMetaPixel, w.HasGA4, w.HasGoogleAdsTag, w.HasTikTokPixel} {
		if b {
			n++
		}
	}
	return n
}

// HasAdTracker reports whether any advertising tracker was detected.
// The marketing-automation script does not count.
func (w *WebTechFacts) HasAdTracker() bool {
	return w.HasMetaPixel || w.HasGoogleAdsTag || w.HasTikTokPixel
}

// EnrichmentRecord aggregates the three fact sets. Each source is
// independently optional; a nil pointer means the source produced nothing.
type EnrichmentRecord struct {
	Places  *PlacesFacts  `json:"places,omitempty"`
	Company *CompanyFacts `json:"company,omitempty"`
	WebTech *WebTechFacts `json:"webtech,omitempty"`
}

// Empty reports whether no source produced facts.
func (r *EnrichmentRecord) Empty() bool {
	return r.Places == nil && r.Company == nil && r.WebTech == nil
}
