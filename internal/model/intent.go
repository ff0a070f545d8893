package model

// Intent classifies the purpose of a user utterance
type Intent string

const (
	IntentSearch        Intent = "search"
	IntentInquiry       Intent = "inquiry"
	IntentFilter        Intent = "filter"
	IntentCompare       Intent = "compare"
	IntentScheduleVisit Intent = "schedule_visit"
	IntentGeneral       Intent = "general"
	IntentClarification Intent = "clarification"
)

// ValidIntent reports whether s is a known intent
func ValidIntent(s string) bool {
	switch Intent(s) {
	case IntentSearch, IntentInquiry, IntentFilter, IntentCompare,
		IntentScheduleVisit, IntentGeneral, IntentClarification:
		return true
	}
	return false
}

// IntentSlots represents structured fields extracted from free text.
// Every slot is independently optional.
type IntentSlots struct {
	City         *string  `json:"city,omitempty"`
	Locality     *string  `json:"locality,omitempty"`
	BudgetMin    *float64 `json:"budget_min,omitempty"`
	BudgetMax    *float64 `json:"budget_max,omitempty"`
	PropertyType *string  `json:"property_type,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Amenities    []string `json:"amenities,omitempty"`
	Furnishing   *string  `json:"furnishing,omitempty"`
	ListingType  *string  `json:"listing_type,omitempty"`
	Urgency      *string  `json:"urgency,omitempty"`
}

// IntentAnalysis is the result of classifying one utterance. Confidence is
// advisory; no component branches on its numeric value.
type IntentAnalysis struct {
	Intent     Intent      `json:"intent"`
	Confidence float64     `json:"confidence"`
	Slots      IntentSlots `json:"extractedData"`
}
