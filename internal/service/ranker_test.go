package service

import (
	"testing"

	"core/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestKeywordScoreDecays(t *testing.T) {
	assert.Equal(t, 1.0, keywordScore(0))
	assert.Greater(t, keywordScore(0), keywordScore(1))
	assert.Greater(t, keywordScore(1), keywordScore(10))
	assert.Greater(t, keywordScore(100), 0.0)
}

func TestMatchReasonPriority(t *testing.T) {
	p := testProperty("p1", "Flat", "Pune", 5000000, func(p *model.Property) {
		p.Bedrooms = intPtr(2)
		p.Amenities = model.JSONArray{"Covered Parking"}
	})

	tests := []struct {
		name    string
		filters model.SearchFilters
		want    string
	}{
		{
			name:    "bedrooms win over city",
			filters: model.SearchFilters{Bedrooms: intPtr(2), City: strPtr("Pune")},
			want:    "Matches your 2 bedroom requirement in Pune",
		},
		{
			name:    "city with budget",
			filters: model.SearchFilters{City: strPtr("Pune"), PriceMax: floatPtr(6000000)},
			want:    "Within your budget in Pune",
		},
		{
			name:    "city alone",
			filters: model.SearchFilters{City: strPtr("pune")},
			want:    "Located in Pune as requested",
		},
		{
			name:    "budget alone",
			filters: model.SearchFilters{PriceMax: floatPtr(6000000)},
			want:    "Fits your budget",
		},
		{
			name:    "property type",
			filters: model.SearchFilters{PropertyType: strPtr("apartment")},
			want:    "Matches the apartment type you asked for",
		},
		{
			name:    "amenity via alias",
			filters: model.SearchFilters{Amenities: []string{"parking"}},
			want:    "Has the parking you asked for",
		},
		{
			name:    "no criteria",
			filters: model.SearchFilters{},
			want:    "Close match to your search",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchReason(&p, tt.filters))
		})
	}
}
