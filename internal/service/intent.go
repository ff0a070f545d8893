package service

import (
	"context"
	"strings"

	"core/internal/model"

	"go.uber.org/zap"
)

const intentSystemPrompt = `You are a real estate assistant. Classify the user's message and extract structured search criteria.

Respond ONLY with valid JSON in this exact shape:
{"intent": "...", "confidence": 0.0, "city": "...", "locality": "...", "budget_min": 0, "budget_max": 0, "property_type": "...", "bedrooms": 0, "amenities": [], "furnishing": "...", "listing_type": "...", "urgency": "..."}

intent must be one of: search, inquiry, filter, compare, schedule_visit, general, clarification
- search: the user wants to find properties
- filter: the user refines earlier criteria ("only furnished ones", "under 80 lakh")
- inquiry: a question about a specific property or process
- compare: the user wants properties compared
- schedule_visit: the user wants to arrange a site visit
- clarification: the user answers a question you asked
- general: anything else

Extraction rules:
- confidence: how sure you are about the intent, between 0 and 1
- property_type must be one of: apartment, villa, independent-house, plot
- listing_type must be "sale" or "rent"
- furnishing is one of: unfurnished, semi-furnished, fully-furnished
- budgets are in rupees: "50 lakh" = 5000000, "1.2 crore" = 12000000, "80k rent" = 80000
- bedrooms: "2BHK" = 2, "3 bed" = 3
- urgency: immediate, soon, or exploring, when stated
- Omit any field that is not mentioned; never guess values

Examples:
Message: "show me 2BHK apartments in Pune under 80 lakh"
Response: {"intent": "search", "confidence": 0.95, "city": "Pune", "property_type": "apartment", "bedrooms": 2, "budget_max": 8000000}

Message: "only the furnished ones please"
Response: {"intent": "filter", "confidence": 0.9, "furnishing": "fully-furnished"}

Message: "can I visit the second one this weekend?"
Response: {"intent": "schedule_visit", "confidence": 0.9, "urgency": "soon"}`

// intentResponse is the flat JSON shape the model answers in
type intentResponse struct {
	Intent       string   `json:"intent"`
	Confidence   float64  `json:"confidence"`
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

// IntentAnalyzer classifies user utterances and extracts slots. Any failure
// (disabled gateway, timeout, malformed JSON) yields a defined default, not
// an error.
type IntentAnalyzer struct {
	llm *LLMGateway
	log *zap.Logger
}

// NewIntentAnalyzer creates a new intent analyzer
func NewIntentAnalyzer(llm *LLMGateway, log *zap.Logger) *IntentAnalyzer {
	return &IntentAnalyzer{llm: llm, log: log}
}

// fallbackAnalysis is the defined result for any extraction failure
func fallbackAnalysis() model.IntentAnalysis {
	return model.IntentAnalysis{
		Intent:     model.IntentGeneral,
		Confidence: 0.3,
		Slots:      model.IntentSlots{},
	}
}

// Extract classifies one utterance using the precise (low temperature) preset
func (a *IntentAnalyzer) Extract(ctx context.Context, utterance string) model.IntentAnalysis {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return fallbackAnalysis()
	}

	var raw intentResponse
	if _, ok := a.llm.CompleteJSON(ctx, intentSystemPrompt, utterance, PresetPrecise, &raw); !ok {
		a.log.Debug("intent extraction fell back to default", zap.String("utterance", utterance))
		return fallbackAnalysis()
	}

	return a.sanitize(raw)
}

// sanitize validates the model's answer field by field; invalid fields are
// discarded rather than failing the whole analysis.
func (a *IntentAnalyzer) sanitize(raw intentResponse) model.IntentAnalysis {
	analysis := model.IntentAnalysis{
		Intent:     model.IntentGeneral,
		Confidence: raw.Confidence,
	}

	if model.ValidIntent(raw.Intent) {
		analysis.Intent = model.Intent(raw.Intent)
	}
	if analysis.Confidence < 0 || analysis.Confidence > 1 {
		analysis.Confidence = 0.5
	}

	slots := model.IntentSlots{}
	if raw.City != nil && strings.TrimSpace(*raw.City) != "" {
		city := strings.TrimSpace(*raw.City)
		slots.City = &city
	}
	if raw.Locality != nil && strings.TrimSpace(*raw.Locality) != "" {
		locality := strings.TrimSpace(*raw.Locality)
		slots.Locality = &locality
	}
	if raw.BudgetMin != nil && *raw.BudgetMin > 0 {
		slots.BudgetMin = raw.BudgetMin
	}
	if raw.BudgetMax != nil && *raw.BudgetMax > 0 {
		slots.BudgetMax = raw.BudgetMax
	}
	if slots.BudgetMin != nil && slots.BudgetMax != nil && *slots.BudgetMin > *slots.BudgetMax {
		slots.BudgetMin = nil
		slots.BudgetMax = nil
	}
	if raw.PropertyType != nil && model.ValidPropertyType(*raw.PropertyType) {
		slots.PropertyType = raw.PropertyType
	}
	if raw.Bedrooms != nil && *raw.Bedrooms >= 0 && *raw.Bedrooms <= 10 {
		slots.Bedrooms = raw.Bedrooms
	}
	if len(raw.Amenities) > 0 {
		slots.Amenities = raw.Amenities
	}
	if raw.Furnishing != nil && strings.TrimSpace(*raw.Furnishing) != "" {
		slots.Furnishing = raw.Furnishing
	}
	if raw.ListingType != nil {
		lt := strings.ToLower(strings.TrimSpace(*raw.ListingType))
		if lt == string(model.ListingSale) || lt == string(model.ListingRent) {
			slots.ListingType = &lt
		}
	}
	if raw.Urgency != nil && strings.TrimSpace(*raw.Urgency) != "" {
		slots.Urgency = raw.Urgency
	}

	analysis.Slots = slots
	return analysis
}
