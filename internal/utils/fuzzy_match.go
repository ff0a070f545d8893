package utils

import (
	"fmt"
	"strings"
)

// amenityAliases maps a canonical keyword to the spellings that appear in
// listing data and in user queries.
var amenityAliases = map[string][]string{
	"lift":         {"lift", "elevator"},
	"parking":      {"parking", "car parking", "covered parking", "car park"},
	"power backup": {"power backup", "generator", "inverter", "backup"},
	"gym":          {"gym", "gymnasium", "fitness", "fitness centre"},
	"pool":         {"swimming pool", "pool"},
	"security":     {"security", "24x7 security", "gated security", "cctv"},
	"park":         {"park", "garden", "children's play area", "play area"},
	"gas pipeline": {"gas pipeline", "piped gas"},
	"clubhouse":    {"clubhouse", "club house", "community hall"},
	"water supply": {"water supply", "24x7 water", "borewell"},
	"balcony":      {"balcony", "terrace"},
	"vaastu":       {"vaastu", "vastu", "vaastu compliant"},
}

// FuzzyMatchAmenity reports whether the search term matches the amenity,
// allowing for the aliases above.
func FuzzyMatchAmenity(searchTerm, amenity string) bool {
	searchLower := strings.ToLower(strings.TrimSpace(searchTerm))
	amenityLower := strings.ToLower(strings.TrimSpace(amenity))

	if searchLower == amenityLower {
		return true
	}
	if strings.Contains(amenityLower, searchLower) {
		return true
	}

	for key, values := range amenityAliases {
		if !strings.Contains(searchLower, key) && key != searchLower {
			continue
		}
		for _, alias := range values {
			if strings.Contains(amenityLower, alias) {
				return true
			}
		}
	}

	return false
}

// BuildAmenityConditions builds JSONB EXISTS conditions for fuzzy amenity
// matching against a jsonb array column. Returns SQL conditions, their
// parameters, and the next free parameter index.
func BuildAmenityConditions(searchTerms []string, paramIndex int) ([]string, []interface{}, int) {
	if len(searchTerms) == 0 {
		return nil, nil, paramIndex
	}

	var conditions []string
	var params []interface{}

	for _, term := range searchTerms {
		termLower := strings.ToLower(strings.TrimSpace(term))
		if termLower == "" {
			continue
		}

		patterns := []string{termLower}
		for key, values := range amenityAliases {
			if strings.Contains(termLower, key) {
				patterns = values
				break
			}
		}

		var orConditions []string
		for _, pattern := range patterns {
			orConditions = append(orConditions, fmt.Sprintf("elem::text ILIKE $%d", paramIndex))
			params = append(params, "%"+pattern+"%")
			paramIndex++
		}

		condition := "EXISTS (SELECT 1 FROM jsonb_array_elements_text(amenities) elem WHERE " +
			strings.Join(orConditions, " OR ") + ")"
		conditions = append(conditions, condition)
	}

	return conditions, params, paramIndex
}
