package model

// Picklist values for the projected CRM fields. These are the exact strings
// the downstream Lead schema accepts.
const (
	EmployeesZero   = "0"
	EmployeesOneTwo = "1 - 2"
	EmployeesThree  = "3 - 5"
	EmployeesOver5  = "Over 5"

	ReviewsUnder15 = "Under 15"
	ReviewsOver14  = "Over 14"

	YearsUnder1   = "Under 1 Year"
	YearsOneTo3   = "1 - 3 Years"
	YearsThreeTo5 = "3 - 5 Years"
	YearsFivePlus = "5 - 10+ years"

	LocationHomeOffice = "Home Office"
	LocationPhysical   = "Physical Location (Office)"
	LocationRetail     = "Retail Location (Store Front)"
)

// CrmProjection is the fixed-shape record of the nine CRM fields derived
// from enrichment facts. Nil pointers project as null picklist values.
type CrmProjection struct {
	HasWebsite              bool    `json:"has_website"`
	NumberOfEmployees       *string `json:"number_of_employees"`
	NumberOfGBPReviews      *string `json:"number_of_gbp_reviews"`
	NumberOfYearsInBusiness *string `json:"number_of_years_in_business"`
	HasGMB                  bool    `json:"has_gmb"`
	GMBURL                  *string `json:"gmb_url"`
	LocationType            *string `json:"location_type"`

	// BusinessLicense is not derivable from any source and is always null.
	BusinessLicense *string `json:"business_license"`

	SpendingOnMarketing bool `json:"spending_on_marketing"`
}
