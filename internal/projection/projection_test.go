package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscore/internal/model"
)

func intp(n int) *int { return &n }

func TestProject_EmptyRecord(t *testing.T) {
	p := Project(&model.LeadIdentity{BusinessName: "Acme"}, &model.EnrichmentRecord{})

	assert.False(t, p.HasWebsite)
	assert.Nil(t, p.NumberOfEmployees)
	assert.Nil(t, p.NumberOfGBPReviews)
	assert.Nil(t, p.NumberOfYearsInBusiness)
	assert.False(t, p.HasGMB)
	assert.Nil(t, p.GMBURL)
	assert.Nil(t, p.LocationType)
	assert.Nil(t, p.BusinessLicense)
	assert.False(t, p.SpendingOnMarketing)
}

func TestProject_PremiumPath(t *testing.T) {
	identity := &model.LeadIdentity{BusinessName: "ABC Roofing", Website: "https://abcroofing.com"}
	record := &model.EnrichmentRecord{
		Places: &model.PlacesFacts{
			PlaceID:     "x",
			ReviewCount: 35,
			Operational: true,
			Address:     "123 Main St",
		},
		Company: &model.CompanyFacts{
			YearsInBusiness: intp(10),
			EmployeeCount:   intp(20),
		},
		WebTech: &model.WebTechFacts{},
	}

	p := Project(identity, record)
	assert.True(t, p.HasWebsite)
	require.NotNil(t, p.NumberOfEmployees)
	assert.Equal(t, model.EmployeesOver5, *p.NumberOfEmployees)
	require.NotNil(t, p.NumberOfGBPReviews)
	assert.Equal(t, model.ReviewsOver14, *p.NumberOfGBPReviews)
	require.NotNil(t, p.NumberOfYearsInBusiness)
	assert.Equal(t, model.YearsFivePlus, *p.NumberOfYearsInBusiness)
	assert.True(t, p.HasGMB)
	require.NotNil(t, p.GMBURL)
	assert.Equal(t, "https://www.google.com/maps/place/?q=place_id:x", *p.GMBURL)
	require.NotNil(t, p.LocationType)
	assert.Equal(t, model.LocationPhysical, *p.LocationType)
	assert.False(t, p.SpendingOnMarketing)
}

func TestProject_SpendingOnMarketing(t *testing.T) {
	company := &model.CompanyFacts{YearsInBusiness: intp(10)}
	webtech := &model.WebTechFacts{HasMetaPixel: true, HasGA4: true, PixelCount: 2}

	p := Project(&model.LeadIdentity{BusinessName: "Acme"}, &model.EnrichmentRecord{
		Company: company,
		WebTech: webtech,
	})
	assert.True(t, p.SpendingOnMarketing)

	// GA4 alone is analytics, not an advertising tracker.
	p = Project(&model.LeadIdentity{BusinessName: "Acme"}, &model.EnrichmentRecord{
		Company: company,
		WebTech: &model.WebTechFacts{HasGA4: true, PixelCount: 1},
	})
	assert.False(t, p.SpendingOnMarketing)

	// Unknown domain age projects as false even with trackers.
	p = Project(&model.LeadIdentity{BusinessName: "Acme"}, &model.EnrichmentRecord{
		WebTech: webtech,
	})
	assert.False(t, p.SpendingOnMarketing)

	// Domain younger than two years projects as false.
	p = Project(&model.LeadIdentity{BusinessName: "Acme"}, &model.EnrichmentRecord{
		Company: &model.CompanyFacts{YearsInBusiness: intp(1)},
		WebTech: webtech,
	})
	assert.False(t, p.SpendingOnMarketing)
}

func TestProject_EmployeeBuckets(t *testing.T) {
	cases := []struct {
		employees int
		want      string
	}{
		{0, model.EmployeesZero},
		{1, model.EmployeesOneTwo},
		{2, model.EmployeesOneTwo},
		{3, model.EmployeesThree},
		{5, model.EmployeesThree},
		{6, model.EmployeesOver5},
		{400, model.EmployeesOver5},
	}
	for _, tc := range cases {
		p := Project(&model.LeadIdentity{BusinessName: "Acme"}, &model.EnrichmentRecord{
			Company: &model.CompanyFacts{EmployeeCount: intp(tc.employees)},
		})
		require.NotNil(t, p.NumberOfEmployees, "employees=%d", tc.employees)
		assert.Equal(t, tc.want, *p.NumberOfEmployees, "employees=%d", tc.employees)
	}
}

func TestProject_YearsBuckets_TieBreaks(t *testing.T) {
	cases := []struct {
		years int
		want  string
	}{
		{0, model.YearsUnder1},
		{1, model.YearsOneTo3},
		{3, model.YearsOneTo3}, // tie at 3 resolves down
		{4, model.YearsThreeTo5},
		{5, model.YearsThreeTo5}, // tie at 5 resolves down
		{6, model.YearsFivePlus},
	}
	for _, tc := range cases {
		p := Project(&model.LeadIdentity{BusinessName: "Acme"}, &model.EnrichmentRecord{
			Company: &model.CompanyFacts{YearsInBusiness: intp(tc.years)},
		})
		require.NotNil(t, p.NumberOfYearsInBusiness, "years=%d", tc.years)
		assert.Equal(t, tc.want, *p.NumberOfYearsInBusiness, "years=%d", tc.years)
	}
}

func TestProject_ReviewBuckets(t *testing.T) {
	p := Project(&model.LeadIdentity{BusinessName: "Acme"}, &model.EnrichmentRecord{
		Places: &model.PlacesFacts{ReviewCount: 14},
	})
	require.NotNil(t, p.NumberOfGBPReviews)
	assert.Equal(t, model.ReviewsUnder15, *p.NumberOfGBPReviews)

	p = Project(&model.LeadIdentity{BusinessName: "Acme"}, &model.EnrichmentRecord{
		Places: &model.PlacesFacts{ReviewCount: 15},
	})
	require.NotNil(t, p.NumberOfGBPReviews)
	assert.Equal(t, model.ReviewsOver14, *p.NumberOfGBPReviews)
}

func TestProject_LocationType(t *testing.T) {
	cases := []struct {
		name   string
		places *model.PlacesFacts
		want   *string
	}{
		{
			name:   "storefront tag wins",
			places: &model.PlacesFacts{Types: []string{"point_of_interest", "store"}, Operational: true, Address: "1 Elm"},
			want:   strp(model.LocationRetail),
		},
		{
			name:   "service area business",
			places: &model.PlacesFacts{Types: []string{"service_area_business"}},
			want:   strp(model.LocationHomeOffice),
		},
		{
			name:   "operational address defaults to office",
			places: &model.PlacesFacts{Types: []string{"general_contractor"}, Operational: true, Address: "1 Elm"},
			want:   strp(model.LocationPhysical),
		},
		{
			name:   "no address no type",
			places: &model.PlacesFacts{Types: []string{"general_contractor"}},
			want:   nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Project(&model.LeadIdentity{BusinessName: "Acme"}, &model.EnrichmentRecord{Places: tc.places})
			if tc.want == nil {
				assert.Nil(t, p.LocationType)
			} else {
				require.NotNil(t, p.LocationType)
				assert.Equal(t, *tc.want, *p.LocationType)
			}
		})
	}
}

func TestProject_BusinessLicenseAlwaysNull(t *testing.T) {
	records := []*model.EnrichmentRecord{
		{},
		{Places: &model.PlacesFacts{PlaceID: "x", Types: []string{"store"}}},
		{Company: &model.CompanyFacts{EmployeeCount: intp(9)}},
	}
	for _, record := range records {
		p := Project(&model.LeadIdentity{BusinessName: "Acme"}, record)
		assert.Nil(t, p.BusinessLicense)
	}
}

func TestProject_Deterministic(t *testing.T) {
	identity := &model.LeadIdentity{BusinessName: "Acme", Website: "https://acme.io"}
	record := &model.EnrichmentRecord{
		Places:  &model.PlacesFacts{PlaceID: "p1", ReviewCount: 9, Types: []string{"store"}},
		Company: &model.CompanyFacts{YearsInBusiness: intp(4), SizeRange: "1-2"},
		WebTech: &model.WebTechFacts{HasTikTokPixel: true, PixelCount: 1},
	}
	assert.Equal(t, Project(identity, record), Project(identity, record))
}
