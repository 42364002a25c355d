package entity

import "time"

// ApiKeyRecord mirrors an OpenRouter-managed API key listing entry.
type ApiKeyRecord struct {
	Hash      string     `json:"hash"`
	Name      string     `json:"name"`
	Label     string     `json:"label"`
	Disabled  bool       `json:"disabled"`
	Limit     *float64   `json:"limit,omitempty"`
	Usage     float64    `json:"usage"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ManagedKeyName is the well-known label this core attaches to the API key
// it creates and owns on the user's OpenRouter account.
const ManagedKeyName = "IDE Plugin Key"
