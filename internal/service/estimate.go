package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"core/internal/config"
	"core/internal/model"
	"core/internal/repository"

	"go.uber.org/zap"
)

// maxReportedComparables caps the evidence list returned to the caller
const maxReportedComparables = 5

// Estimator produces price estimates from comparable sold and approved
// listings. Estimates are derived on demand and never persisted.
type Estimator struct {
	search *SearchEngine
	store  PropertyStore
	llm    *LLMGateway
	cfg    *config.EstimationConfig
	log    *zap.Logger
}

// NewEstimator creates a new price estimator
func NewEstimator(search *SearchEngine, store PropertyStore, llm *LLMGateway, cfg *config.EstimationConfig, log *zap.Logger) *Estimator {
	return &Estimator{
		search: search,
		store:  store,
		llm:    llm,
		cfg:    cfg,
		log:    log,
	}
}

// Estimate computes a price estimate for the described property. A thin
// comparable pool lowers the confidence tier rather than failing the request,
// and an internal panic degrades to the insufficient-data estimate.
func (e *Estimator) Estimate(ctx context.Context, req model.PriceEstimateRequest) (estimate *model.PriceEstimate, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("estimation panicked", zap.Any("panic", r), zap.String("city", req.Location.City))
			estimate = e.insufficientDataEstimate(req)
			err = nil
		}
	}()

	comparables := e.gatherComparables(ctx, req)
	comparables = e.filterByBedrooms(comparables, req.Bedrooms)

	if len(comparables) == 0 {
		return e.insufficientDataEstimate(req), nil
	}

	stats := computePriceStats(comparables)
	quality, strictSim := e.assessQuality(comparables)
	confidence := e.confidenceTier(quality, strictSim)

	estimate = &model.PriceEstimate{
		EstimatedPrice: stats.Median,
		RangeLow:       stats.Percentile25,
		RangeHigh:      stats.Percentile75,
		PricePerArea:   stats.MedianPerArea,
		Confidence:     confidence,
		Comparables:    topComparables(comparables, maxReportedComparables),
		DataQuality:    quality,
		Disclaimer:     model.EstimateDisclaimer,
	}

	estimate.Explanation, estimate.Factors = e.narrative(ctx, req, estimate, stats)
	return estimate, nil
}

// gatherComparables retrieves the candidate pool, preferring vector
// similarity over spec matching. Sold listings count as evidence alongside
// approved ones.
func (e *Estimator) gatherComparables(ctx context.Context, req model.PriceEstimateRequest) []model.ComparableProperty {
	statuses := []model.PropertyStatus{model.StatusApproved, model.StatusSold}
	filters := model.SearchFilters{City: &req.Location.City}
	if req.PropertyType != nil {
		filters.PropertyType = req.PropertyType
	}

	query := repository.PropertyQuery{
		Filters:  filters,
		Statuses: statuses,
		Limit:    e.cfg.ComparablePool,
	}

	if matches, ok := e.search.Comparables(ctx, estimateQueryText(req), query); ok {
		return toComparables(matches)
	}

	// No embeddings available; fall back to a plain filtered lookup.
	properties, _, err := e.store.Search(ctx, query)
	if err != nil {
		e.log.Error("comparable fallback lookup failed", zap.Error(err))
		return nil
	}

	matches := make([]model.PropertyMatch, 0, len(properties))
	for i, p := range properties {
		matches = append(matches, model.PropertyMatch{Property: p, Similarity: keywordScore(i)})
	}
	return toComparables(matches)
}

// estimateQueryText renders the request as embedding input, mirroring the
// composition used when listings themselves are embedded.
func estimateQueryText(req model.PriceEstimateRequest) string {
	var parts []string
	if req.PropertyType != nil {
		parts = append(parts, *req.PropertyType)
	}
	if req.Bedrooms != nil {
		parts = append(parts, fmt.Sprintf("%d bedroom", *req.Bedrooms))
	}
	if req.CarpetArea != nil {
		parts = append(parts, fmt.Sprintf("%.0f sqft", *req.CarpetArea))
	}
	if req.Furnishing != nil {
		parts = append(parts, *req.Furnishing)
	}
	if req.Location.Locality != nil {
		parts = append(parts, "in "+*req.Location.Locality+", "+req.Location.City)
	} else {
		parts = append(parts, "in "+req.Location.City)
	}
	if len(req.Amenities) > 0 {
		parts = append(parts, "with "+strings.Join(req.Amenities, ", "))
	}
	return strings.Join(parts, " ")
}

// toComparables projects retrieved matches into comparables. Listings
// without a positive price carry no pricing evidence and are excluded.
func toComparables(matches []model.PropertyMatch) []model.ComparableProperty {
	comparables := make([]model.ComparableProperty, 0, len(matches))
	for _, m := range matches {
		if m.ExpectedPrice <= 0 {
			continue
		}
		comparables = append(comparables, model.ComparableProperty{
			ID:           m.ID,
			Title:        m.Title,
			Location:     m.Property.Location(),
			PropertyType: string(m.PropertyType),
			Price:        m.ExpectedPrice,
			PricePerArea: m.Property.PricePerArea(),
			Bedrooms:     m.Bedrooms,
			CarpetArea:   m.CarpetArea,
			SoldAt:       m.SoldAt,
			Similarity:   m.Similarity,
		})
	}
	return comparables
}

// filterByBedrooms drops comparables outside the bedroom tolerance.
// A comparable with unknown bedrooms cannot be verified and is dropped too.
func (e *Estimator) filterByBedrooms(comparables []model.ComparableProperty, bedrooms *int) []model.ComparableProperty {
	if bedrooms == nil {
		return comparables
	}
	kept := comparables[:0]
	for _, c := range comparables {
		if c.Bedrooms == nil {
			continue
		}
		diff := *c.Bedrooms - *bedrooms
		if diff < 0 {
			diff = -diff
		}
		if diff <= e.cfg.BedroomTolerance {
			kept = append(kept, c)
		}
	}
	return kept
}

// percentile returns the nearest-rank percentile of a sorted slice
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// computePriceStats derives robust statistics over the comparable prices.
// Median-centered values resist the outliers listing data is full of.
func computePriceStats(comparables []model.ComparableProperty) model.PriceStats {
	prices := make([]float64, 0, len(comparables))
	var perArea []float64
	var sum float64
	for _, c := range comparables {
		prices = append(prices, c.Price)
		sum += c.Price
		if c.PricePerArea > 0 {
			perArea = append(perArea, c.PricePerArea)
		}
	}
	sort.Float64s(prices)
	sort.Float64s(perArea)

	stats := model.PriceStats{
		Median:       percentile(prices, 50),
		Mean:         sum / float64(len(prices)),
		Percentile25: percentile(prices, 25),
		Percentile75: percentile(prices, 75),
		Min:          prices[0],
		Max:          prices[len(prices)-1],
	}
	if len(perArea) > 0 {
		stats.MedianPerArea = percentile(perArea, 50)
	}
	return stats
}

// assessQuality counts the evidence behind the estimate. The reported
// HighSimilarity counter uses the looser threshold; the stricter count
// returned alongside feeds the confidence tier only.
func (e *Estimator) assessQuality(comparables []model.ComparableProperty) (model.DataQuality, int) {
	quality := model.DataQuality{TotalComparables: len(comparables)}
	var strictSim int
	for _, c := range comparables {
		if c.SoldAt != nil {
			quality.WithSaleDate++
		}
		if c.Similarity > e.cfg.SimilarityGood {
			quality.HighSimilarity++
		}
		if c.Similarity > e.cfg.SimilarityHigh {
			strictSim++
		}
	}
	return quality, strictSim
}

// confidenceTier maps evidence counts onto the three confidence tiers.
// Every high-tier condition must hold; medium requires both of its two.
func (e *Estimator) confidenceTier(q model.DataQuality, strictSim int) model.ConfidenceTier {
	if q.TotalComparables >= e.cfg.HighMinComparables &&
		strictSim >= e.cfg.HighMinHighSim &&
		q.WithSaleDate >= e.cfg.HighMinRecentSales {
		return model.ConfidenceHigh
	}
	if q.TotalComparables >= e.cfg.MedMinComparables &&
		strictSim >= e.cfg.MedMinHighSim {
		return model.ConfidenceMedium
	}
	return model.ConfidenceLow
}

func topComparables(comparables []model.ComparableProperty, n int) []model.ComparableProperty {
	sorted := make([]model.ComparableProperty, len(comparables))
	copy(sorted, comparables)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Similarity > sorted[j].Similarity
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// insufficientDataEstimate is returned when no comparables survive
// filtering. It names the city so the caller knows what data is missing.
func (e *Estimator) insufficientDataEstimate(req model.PriceEstimateRequest) *model.PriceEstimate {
	return &model.PriceEstimate{
		Confidence: model.ConfidenceLow,
		Explanation: fmt.Sprintf(
			"We don't have enough comparable listings in %s to produce a reliable estimate yet. "+
				"Try broadening the location or property criteria.", req.Location.City),
		Comparables: []model.ComparableProperty{},
		Disclaimer:  model.EstimateDisclaimer,
	}
}

// estimateNarrative is the JSON shape requested from the language model
type estimateNarrative struct {
	Explanation string             `json:"explanation"`
	Factors     []model.FactorNote `json:"factors"`
}

const narrativeSystemPrompt = `You are a real estate pricing analyst. Given a property description and the computed estimate, write a short plain-language explanation for a home buyer.

Respond ONLY with valid JSON:
{"explanation": "2-3 sentences on how the estimate was derived and what drives it", "factors": [{"factor": "location", "note": "..."}, {"factor": "size", "note": "..."}]}

Keep the tone factual. Never promise accuracy and never invent data that is not in the input.`

// narrative produces the human-readable explanation, preferring the language
// model and degrading to a deterministic template.
func (e *Estimator) narrative(ctx context.Context, req model.PriceEstimateRequest, est *model.PriceEstimate, stats model.PriceStats) (string, []model.FactorNote) {
	if e.llm.Enabled() {
		input := fmt.Sprintf(
			"Property: %s\nEstimated price: %.0f (range %.0f to %.0f)\nMedian comparable price: %.0f\nComparables used: %d\nConfidence: %s",
			estimateQueryText(req), est.EstimatedPrice, est.RangeLow, est.RangeHigh,
			stats.Median, est.DataQuality.TotalComparables, est.Confidence)

		var out estimateNarrative
		if _, ok := e.llm.CompleteJSON(ctx, narrativeSystemPrompt, input, PresetPrecise, &out); ok && out.Explanation != "" {
			return out.Explanation, out.Factors
		}
		e.log.Debug("narrative generation fell back to template")
	}

	return e.templateNarrative(req, est)
}

// templateNarrative builds the explanation without any model call
func (e *Estimator) templateNarrative(req model.PriceEstimateRequest, est *model.PriceEstimate) (string, []model.FactorNote) {
	explanation := fmt.Sprintf(
		"Based on %d comparable listings in %s, the estimated price is %.0f, with typical prices ranging from %.0f to %.0f. Confidence in this estimate is %s.",
		est.DataQuality.TotalComparables, req.Location.City,
		est.EstimatedPrice, est.RangeLow, est.RangeHigh, est.Confidence)

	factors := []model.FactorNote{
		{Factor: "location", Note: "Comparables are drawn from " + req.Location.City},
	}
	if req.Bedrooms != nil {
		factors = append(factors, model.FactorNote{
			Factor: "bedrooms",
			Note:   fmt.Sprintf("Restricted to listings within %d bedroom of %d", e.cfg.BedroomTolerance, *req.Bedrooms),
		})
	}
	if req.CarpetArea != nil && est.PricePerArea > 0 {
		factors = append(factors, model.FactorNote{
			Factor: "size",
			Note:   fmt.Sprintf("Priced at a median of %.0f per unit area over %.0f units", est.PricePerArea, *req.CarpetArea),
		})
	}
	return explanation, factors
}
