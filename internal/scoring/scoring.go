// Package scoring computes the retention-fit score for an enrichment record.
//
// The calculator is pure: no clock, no randomness, no shared state. Every
// EnrichmentRecord, including the empty one, maps to a score in [0,100]
// with a structured breakdown. Trackers contribute a positive pixel bonus;
// there is no penalty scheme.
package scoring

import (
	"github.com/sells-group/leadscore/internal/model"
)

// Solvency component caps. The five components sum to at most 80 and the
// pixel bonus adds at most 10 on top.
const (
	websitePoints     = 10
	maxReviewPoints   = 25
	maxYearsPoints    = 20
	maxEmployeePoints = 20
	locationPoints    = 5
	maxPixelBonus     = 10
)

// Score maps a partial enrichment record to a fit score and its breakdown.
// Absent sub-records contribute zero.
func Score(identity *model.LeadIdentity, record *model.EnrichmentRecord) (int, model.ScoreBreakdown) {
	var bd model.ScoreBreakdown

	bd.Solvency.Website = websiteScore(identity, record)
	bd.Solvency.Reviews = reviewScore(record.Places)
	bd.Solvency.YearsInBusiness = yearsScore(record.Company)
	bd.Solvency.Employees = employeeScore(record.Company)
	bd.Solvency.Location = locationScore(record.Places)
	bd.Solvency.Total = bd.Solvency.Website +
		bd.Solvency.Reviews +
		bd.Solvency.YearsInBusiness +
		bd.Solvency.Employees +
		bd.Solvency.Location

	if record.WebTech != nil {
		bd.PixelBonus.PixelCount = record.WebTech.PixelCount
		bd.PixelBonus.Bonus = pixelBonus(record.WebTech.PixelCount)
	}

	final := clamp(bd.Solvency.Total+bd.PixelBonus.Bonus, 0, 100)
	return final, bd
}

func websiteScore(identity *model.LeadIdentity, record *model.EnrichmentRecord) int {
	if identity != nil && identity.HasWebsite() {
		return websitePoints
	}
	if record.Places != nil && record.Places.Website != "" {
		return websitePoints
	}
	return 0
}

func reviewScore(places *model.PlacesFacts) int {
	if places == nil {
		return 0
	}
	switch n := places.ReviewCount; {
	case n >= 30:
		return 25
	case n >= 15:
		return 20
	case n >= 5:
		return 10
	default:
		return 0
	}
}

func yearsScore(company *model.CompanyFacts) int {
	if company == nil || company.YearsInBusiness == nil {
		return 0
	}
	switch y := *company.YearsInBusiness; {
	case y >= 8:
		return 20
	case y >= 4:
		return 15
	case y >= 2:
		return 10
	default:
		return 0
	}
}

func employeeScore(company *model.CompanyFacts) int {
	n, ok := BestEmployeeCount(company)
	if !ok {
		return 0
	}
	switch {
	case n >= 16:
		return 20
	case n >= 6:
		return 15
	case n >= 3:
		return 10
	default:
		return 0
	}
}

func locationScore(places *model.PlacesFacts) int {
	if places != nil && places.Operational && places.Address != "" {
		return locationPoints
	}
	return 0
}

func pixelBonus(pixelCount int) int {
	switch {
	case pixelCount >= 2:
		return 10
	case pixelCount == 1:
		return 5
	default:
		return 0
	}
}

// BestEmployeeCount returns the best-available employee integer: the exact
// count when present, otherwise the midpoint of a parseable size range.
func BestEmployeeCount(company *model.CompanyFacts) (int, bool) {
	if company == nil {
		return 0, false
	}
	if company.EmployeeCount != nil {
		if *company.EmployeeCount < 0 {
			return 0, false
		}
		return *company.EmployeeCount, true
	}
	return ParseSizeRange(company.SizeRange)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
