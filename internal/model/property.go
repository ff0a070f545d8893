package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pgvector/pgvector-go"
)

// PropertyType enumerates the supported listing categories
type PropertyType string

const (
	PropertyApartment        PropertyType = "apartment"
	PropertyVilla            PropertyType = "villa"
	PropertyIndependentHouse PropertyType = "independent-house"
	PropertyPlot             PropertyType = "plot"
)

// ValidPropertyType reports whether t is a known property type
func ValidPropertyType(t string) bool {
	switch PropertyType(t) {
	case PropertyApartment, PropertyVilla, PropertyIndependentHouse, PropertyPlot:
		return true
	}
	return false
}

// PropertyStatus enumerates the listing lifecycle states
type PropertyStatus string

const (
	StatusDraft           PropertyStatus = "draft"
	StatusPendingApproval PropertyStatus = "pending-approval"
	StatusApproved        PropertyStatus = "approved"
	StatusRejected        PropertyStatus = "rejected"
	StatusSold            PropertyStatus = "sold"
	StatusRented          PropertyStatus = "rented"
)

// ListingType distinguishes sale from rental listings
type ListingType string

const (
	ListingSale ListingType = "sale"
	ListingRent ListingType = "rent"
)

// Property represents a marketplace property listing. The conversational core
// only reads approved (and, for price estimation, sold) listings and never
// mutates them except to attach an embedding.
type Property struct {
	ID             string          `json:"id" db:"id"`
	Title          string          `json:"title" db:"title"`
	Description    *string         `json:"description,omitempty" db:"description"`
	PropertyType   PropertyType    `json:"propertyType" db:"property_type"`
	City           string          `json:"city" db:"city"`
	State          *string         `json:"state,omitempty" db:"state"`
	Locality       *string         `json:"locality,omitempty" db:"locality"`
	Pincode        *string         `json:"pincode,omitempty" db:"pincode"`
	Landmark       *string         `json:"landmark,omitempty" db:"landmark"`
	Bedrooms       *int            `json:"bedrooms,omitempty" db:"bedrooms"`
	Bathrooms      *int            `json:"bathrooms,omitempty" db:"bathrooms"`
	CarpetArea     *float64        `json:"carpetArea,omitempty" db:"carpet_area"`
	Furnishing     *string         `json:"furnishing,omitempty" db:"furnishing"`
	AgeYears       *int            `json:"propertyAge,omitempty" db:"age_years"`
	Possession     *string         `json:"possession,omitempty" db:"possession"`
	Amenities      JSONArray       `json:"amenities,omitempty" db:"amenities"`
	ExpectedPrice  float64         `json:"expectedPrice" db:"expected_price"`
	Negotiable     bool            `json:"negotiable" db:"negotiable"`
	Maintenance    *float64        `json:"maintenance,omitempty" db:"maintenance"`
	Status         PropertyStatus  `json:"status" db:"status"`
	ListingType    ListingType     `json:"listingType" db:"listing_type"`
	SoldAt         *time.Time      `json:"soldAt,omitempty" db:"sold_at"`
	Embedding      pgvector.Vector `json:"-" db:"embedding"`
	EmbeddingModel *string         `json:"-" db:"embedding_model"`
	EmbeddedAt     *time.Time      `json:"-" db:"embedded_at"`
	EmbeddingText  *string         `json:"-" db:"embedding_text"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// Location renders a short human-readable location string
func (p *Property) Location() string {
	if p.Locality != nil && *p.Locality != "" {
		return *p.Locality + ", " + p.City
	}
	return p.City
}

// PricePerArea returns price per unit carpet area, or 0 if area is unknown
func (p *Property) PricePerArea() float64 {
	if p.CarpetArea == nil || *p.CarpetArea <= 0 {
		return 0
	}
	return p.ExpectedPrice / *p.CarpetArea
}

// PropertyMatch is a retrieved property with its similarity score.
// Keyword-path results carry a rank-derived score instead of a vector
// similarity.
type PropertyMatch struct {
	Property
	Similarity float64 `json:"similarity"`
	Reason     string  `json:"reason,omitempty"`
}

// SearchFilters represents structured metadata filters applied to retrieval
type SearchFilters struct {
	City         *string  `json:"city,omitempty"`
	Locality     *string  `json:"locality,omitempty"`
	PriceMin     *float64 `json:"price_min,omitempty"`
	PriceMax     *float64 `json:"price_max,omitempty"`
	PropertyType *string  `json:"property_type,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Furnishing   *string  `json:"furnishing,omitempty"`
	ListingType  *string  `json:"listing_type,omitempty"`
	Amenities    []string `json:"amenities,omitempty"`
}

// SearchResult is the uniform retrieval result; retrieval failures surface as
// an empty result, never an error to the caller.
type SearchResult struct {
	Properties []PropertyMatch `json:"properties"`
	TotalFound int             `json:"totalFound"`
}

// EmbeddingMeta records how a stored vector was produced
type EmbeddingMeta struct {
	Model      string
	SourceText string
	EmbeddedAt time.Time
}

// JSONArray represents a JSON array column
type JSONArray []string

// Value implements driver.Valuer interface
func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), j)
	}
	return json.Unmarshal(bytes, j)
}
