package model

import "time"

// EstimateDisclaimer accompanies every price estimate
const EstimateDisclaimer = "This estimate is based on comparable listings and market data. " +
	"Actual prices may vary depending on exact location, condition, and negotiation. " +
	"Please consult a professional valuer for an official valuation."

// EstimateLocation carries the where of a price-estimate request;
// city is the only mandatory field.
type EstimateLocation struct {
	City     string  `json:"city" binding:"required"`
	Locality *string `json:"locality,omitempty"`
}

// PriceEstimateRequest is the inbound estimation contract
type PriceEstimateRequest struct {
	Location     EstimateLocation `json:"location" binding:"required"`
	PropertyType *string          `json:"propertyType,omitempty"`
	Bedrooms     *int             `json:"bedrooms,omitempty"`
	CarpetArea   *float64         `json:"carpetArea,omitempty"`
	Amenities    []string         `json:"amenities,omitempty"`
	PropertyAge  *int             `json:"propertyAge,omitempty"`
	Furnishing   *string          `json:"furnishing,omitempty"`
}

// ComparableProperty is a scored, denormalized projection of a Property used
// as evidence for price estimation.
type ComparableProperty struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Location     string     `json:"location"`
	PropertyType string     `json:"propertyType"`
	Price        float64    `json:"price"`
	PricePerArea float64    `json:"pricePerArea,omitempty"`
	Bedrooms     *int       `json:"bedrooms,omitempty"`
	CarpetArea   *float64   `json:"carpetArea,omitempty"`
	SoldAt       *time.Time `json:"soldAt,omitempty"`
	Similarity   float64    `json:"similarity"`
}

// PriceStats holds robust statistics over a comparable price list
type PriceStats struct {
	Median       float64 `json:"median"`
	Mean         float64 `json:"mean"`
	Percentile25 float64 `json:"percentile25"`
	Percentile75 float64 `json:"percentile75"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	MedianPerArea float64 `json:"medianPerArea"`
}

// ConfidenceTier summarizes how trustworthy an estimate is
type ConfidenceTier string

const (
	ConfidenceLow    ConfidenceTier = "low"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceHigh   ConfidenceTier = "high"
)

// FactorNote is a per-factor contribution note in the estimate narrative
type FactorNote struct {
	Factor string `json:"factor"`
	Note   string `json:"note"`
}

// DataQuality counts the evidence behind an estimate
type DataQuality struct {
	TotalComparables int `json:"totalComparables"`
	WithSaleDate     int `json:"withSaleDate"`
	HighSimilarity   int `json:"highSimilarity"`
}

// PriceEstimate is the estimation result returned to the caller; it is
// derived and never persisted.
type PriceEstimate struct {
	EstimatedPrice float64              `json:"estimatedPrice"`
	RangeLow       float64              `json:"rangeLow"`
	RangeHigh      float64              `json:"rangeHigh"`
	PricePerArea   float64              `json:"pricePerArea"`
	Confidence     ConfidenceTier       `json:"confidence"`
	Explanation    string               `json:"explanation"`
	Factors        []FactorNote         `json:"factors,omitempty"`
	Comparables    []ComparableProperty `json:"comparables"`
	DataQuality    DataQuality          `json:"dataQuality"`
	Disclaimer     string               `json:"disclaimer"`
}
