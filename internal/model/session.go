package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// SessionStatus enumerates the conversation lifecycle states.
// active -> closed (explicit action) -> archived (time-based sweep);
// there is no transition out of archived.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionClosed   SessionStatus = "closed"
	SessionArchived SessionStatus = "archived"
)

// MessageRole is the author role of a conversation message
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// MessageMetadata carries optional per-message annotations used for analytics
// and debugging. Immutable once the message is appended.
type MessageMetadata struct {
	Intent      string   `json:"intent,omitempty"`
	SearchQuery string   `json:"search_query,omitempty"`
	PropertyIDs []string `json:"property_ids,omitempty"`
}

// Message is a single conversation turn
type Message struct {
	Role      MessageRole      `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// UserPreferences is the accumulated partial preference record for a session.
// It is mutated only by field-wise merge: a present field overrides, an
// absent field leaves the existing value untouched.
type UserPreferences struct {
	City         *string  `json:"city,omitempty"`
	Localities   []string `json:"localities,omitempty"`
	BudgetMin    *float64 `json:"budget_min,omitempty"`
	BudgetMax    *float64 `json:"budget_max,omitempty"`
	PropertyType *string  `json:"property_type,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Amenities    []string `json:"amenities,omitempty"`
	Furnishing   *string  `json:"furnishing,omitempty"`
	ListingType  *string  `json:"listing_type,omitempty"`
}

// Merge overlays non-empty fields of partial on top of p. Absent fields are
// never cleared implicitly.
func (p *UserPreferences) Merge(partial UserPreferences) {
	if partial.City != nil {
		p.City = partial.City
	}
	if len(partial.Localities) > 0 {
		p.Localities = partial.Localities
	}
	if partial.BudgetMin != nil {
		p.BudgetMin = partial.BudgetMin
	}
	if partial.BudgetMax != nil {
		p.BudgetMax = partial.BudgetMax
	}
	if partial.PropertyType != nil {
		p.PropertyType = partial.PropertyType
	}
	if partial.Bedrooms != nil {
		p.Bedrooms = partial.Bedrooms
	}
	if len(partial.Amenities) > 0 {
		p.Amenities = partial.Amenities
	}
	if partial.Furnishing != nil {
		p.Furnishing = partial.Furnishing
	}
	if partial.ListingType != nil {
		p.ListingType = partial.ListingType
	}
}

// Session is the unit of continuity for a user's multi-turn chat.
// The message list is append-only within a session; persistence truncates it
// to the most recent N messages.
type Session struct {
	ID             string          `json:"id" db:"id"`
	UserID         string          `json:"user_id" db:"user_id"`
	Status         SessionStatus   `json:"status" db:"status"`
	Messages       MessageList     `json:"messages" db:"messages"`
	Preferences    PreferencesJSON `json:"preferences" db:"preferences"`
	LastActivityAt time.Time       `json:"last_activity_at" db:"last_activity_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// MessageList is a JSON column of ordered messages
type MessageList []Message

// Value implements driver.Valuer interface
func (m MessageList) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal([]Message{})
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner interface
func (m *MessageList) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), m)
	}
	return json.Unmarshal(bytes, m)
}

// PreferencesJSON is a JSON column holding the accumulated preferences
type PreferencesJSON struct {
	UserPreferences
}

// Value implements driver.Valuer interface
func (p PreferencesJSON) Value() (driver.Value, error) {
	return json.Marshal(p.UserPreferences)
}

// Scan implements sql.Scanner interface
func (p *PreferencesJSON) Scan(value interface{}) error {
	if value == nil {
		p.UserPreferences = UserPreferences{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), &p.UserPreferences)
	}
	return json.Unmarshal(bytes, &p.UserPreferences)
}
