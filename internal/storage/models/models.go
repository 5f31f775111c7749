package models

import (
	"encoding/json"
	"time"
)

// DiagnosisRecord is one saved analysis. The flat English fields exist so
// older clients keep rendering; Details carries the full bilingual result.
type DiagnosisRecord struct {
	ID          string          `json:"id"`
	DiseaseName string          `json:"disease_name"`
	Symptoms    []string        `json:"symptoms"`
	Treatment   string          `json:"treatment"`
	Prevention  string          `json:"prevention"`
	IsHealthy   bool            `json:"is_healthy"`
	Confidence  float64         `json:"confidence"`
	ImageURL    string          `json:"image_url,omitempty"`
	Language    string          `json:"language,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// UserPreferences is the small settings blob attached to an identity.
type UserPreferences struct {
	Language string `json:"language"`
	Theme    string `json:"theme,omitempty"`
}

// DefaultPreferences are returned for identities that never saved any.
func DefaultPreferences() UserPreferences {
	return UserPreferences{Language: "en"}
}

// Profile describes who the history belongs to.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Guest     bool      `json:"guest"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
