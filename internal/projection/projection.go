// Package projection maps enrichment facts onto the fixed set of CRM lead
// fields. Project is total: every input produces a well-formed projection
// where each picklist field takes one of its documented values or null.
package projection

import (
	"fmt"
	"strings"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/scoring"
)

// gmbURLTemplate renders a Maps URL from a place id.
const gmbURLTemplate = "https://www.google.com/maps/place/?q=place_id:%s"

// minYearsForMarketingSpend is the domain-age threshold for the
// spending_on_marketing flag. Years in business stands in for domain age;
// no registration-date source exists.
const minYearsForMarketingSpend = 2

var storefrontTags = map[string]bool{
	"store":         true,
	"storefront":    true,
	"shopping_mall": true,
	"restaurant":    true,
	"cafe":          true,
	"supermarket":   true,
}

var homeOfficeTags = map[string]bool{
	"service_area_business": true,
	"home_office":           true,
	"residential":           true,
}

// Project derives the nine CRM fields from the identity and enrichment
// record. It never fails; unknown inputs project to null.
func Project(identity *model.LeadIdentity, record *model.EnrichmentRecord) model.CrmProjection {
	var p model.CrmProjection

	places := record.Places
	company := record.Company

	p.HasWebsite = (identity != nil && identity.HasWebsite()) ||
		(places != nil && places.Website != "")

	if n, ok := scoring.BestEmployeeCount(company); ok {
		p.NumberOfEmployees = strp(employeeBucket(n))
	}

	if places != nil {
		p.NumberOfGBPReviews = strp(reviewBucket(places.ReviewCount))
		if places.PlaceID != "" {
			p.HasGMB = true
			p.GMBURL = strp(fmt.Sprintf(gmbURLTemplate, places.PlaceID))
		}
		p.LocationType = locationType(places)
	}

	if company != nil && company.YearsInBusiness != nil {
		p.NumberOfYearsInBusiness = strp(yearsBucket(*company.YearsInBusiness))
	}

	// BusinessLicense is not derivable from any source; stays null.

	p.SpendingOnMarketing = spendingOnMarketing(company, record.WebTech)

	return p
}

func employeeBucket(n int) string {
	switch {
	case n <= 0:
		return model.EmployeesZero
	case n <= 2:
		return model.EmployeesOneTwo
	case n <= 5:
		return model.EmployeesThree
	default:
		return model.EmployeesOver5
	}
}

func reviewBucket(n int) string {
	if n < 15 {
		return model.ReviewsUnder15
	}
	return model.ReviewsOver14
}

// yearsBucket resolves ties downward: exactly 3 is "1 - 3 Years", exactly 5
// is "3 - 5 Years".
func yearsBucket(y int) string {
	switch {
	case y < 1:
		return model.YearsUnder1
	case y <= 3:
		return model.YearsOneTo3
	case y <= 5:
		return model.YearsThreeTo5
	default:
		return model.YearsFivePlus
	}
}

func locationType(places *model.PlacesFacts) *string {
	for _, tag := range places.Types {
		if storefrontTags[strings.ToLower(tag)] {
			return strp(model.LocationRetail)
		}
	}
	for _, tag := range places.Types {
		if homeOfficeTags[strings.ToLower(tag)] {
			return strp(model.LocationHomeOffice)
		}
	}
	if places.Operational && places.Address != "" {
		return strp(model.LocationPhysical)
	}
	return nil
}

func spendingOnMarketing(company *model.CompanyFacts, webtech *model.WebTechFacts) bool {
	if webtech == nil || !webtech.HasAdTracker() {
		return false
	}
	// Unknown age counts as not spending.
	if company == nil || company.YearsInBusiness == nil {
		return false
	}
	return *company.YearsInBusiness >= minYearsForMarketingSpend
}

func strp(s string) *string { return &s }
