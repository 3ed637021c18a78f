package models

import "time"

// InteractionEntry is one row of the append-only interaction log. Exactly
// one of Response or ErrorMessage is set, matching Success.
type InteractionEntry struct {
	ID           int64     `json:"id"`
	Principal    string    `json:"principal"`
	Question     string    `json:"question"`
	AskedAt      time.Time `json:"askedAt"`
	Success      bool      `json:"success"`
	Response     string    `json:"response,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}
