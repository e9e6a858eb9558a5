package model

// SolvencyBreakdown decomposes the solvency portion of the fit score.
// Total is always the sum of the five components.
type SolvencyBreakdown struct {
	Website         int `json:"website"`
	Reviews         int `json:"reviews"`
	YearsInBusiness int `json:"years_in_business"`
	Employees       int `json:"employees"`
	Location        int `json:"location"`
	Total           int `json:"total"`
}

// PixelBonusBreakdown records the advertising-tracker bonus.
type PixelBonusBreakdown struct {
	PixelCount int `json:"pixel_count"`
	Bonus      int `json:"bonus"`
}

// ScoreBreakdown is the structured decomposition of a fit score. The final
// score is solvency.total + pixel_bonus.bonus clamped to [0,100].
type ScoreBreakdown struct {
	Solvency   SolvencyBreakdown   `json:"solvency"`
	PixelBonus PixelBonusBreakdown `json:"pixel_bonus"`
}
