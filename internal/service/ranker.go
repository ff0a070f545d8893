package service

import (
	"fmt"
	"strings"

	"core/internal/model"
	"core/internal/utils"
)

// keywordScore converts a keyword-result rank into a comparable score.
// Position 0 scores 1.0 and each later position decays, so mixed result
// lists stay ordered sensibly even without a vector similarity.
func keywordScore(position int) float64 {
	return 1.0 / (1.0 + float64(position)*0.1)
}

// matchReason explains in one phrase why a property matched the request.
// The most specific satisfied criterion wins.
func matchReason(p *model.Property, filters model.SearchFilters) string {
	if filters.Bedrooms != nil && p.Bedrooms != nil && *p.Bedrooms == *filters.Bedrooms {
		return fmt.Sprintf("Matches your %d bedroom requirement in %s", *filters.Bedrooms, p.Location())
	}
	if filters.City != nil && strings.EqualFold(p.City, *filters.City) {
		if filters.PriceMax != nil && p.ExpectedPrice <= *filters.PriceMax {
			return fmt.Sprintf("Within your budget in %s", p.City)
		}
		return fmt.Sprintf("Located in %s as requested", p.City)
	}
	if filters.PriceMax != nil && p.ExpectedPrice <= *filters.PriceMax {
		return "Fits your budget"
	}
	if filters.PropertyType != nil && string(p.PropertyType) == *filters.PropertyType {
		return fmt.Sprintf("Matches the %s type you asked for", p.PropertyType)
	}
	for _, wanted := range filters.Amenities {
		for _, amenity := range p.Amenities {
			if utils.FuzzyMatchAmenity(wanted, amenity) {
				return fmt.Sprintf("Has the %s you asked for", wanted)
			}
		}
	}
	return "Close match to your search"
}

// annotateMatches fills the Reason field on every match in place
func annotateMatches(matches []model.PropertyMatch, filters model.SearchFilters) {
	for i := range matches {
		matches[i].Reason = matchReason(&matches[i].Property, filters)
	}
}
