// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to records in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// DefaultColorToken is the card color used when a poem is saved without one.
const DefaultColorToken = "bg-slate-800"

// Poem represents a saved entry in the collection.
//
// The `json:"..."` tags describe the wire shape shared by the HTTP API and the CLI client.
// CreatedAt is set once by the repository and never changes; UpdatedAt is refreshed
// on every edit.
type Poem struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	ColorToken     string    `json:"colorToken"`
	ImageReference string    `json:"imageReference,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// PoemInput carries the user-editable fields of a poem.
// It is the body of create and update requests.
type PoemInput struct {
	Title          string `json:"title"`
	Content        string `json:"content"`
	ColorToken     string `json:"colorToken,omitempty"`
	ImageReference string `json:"imageReference,omitempty"`
}

// ColorTokens is the fixed card palette, keyed by display name.
var ColorTokens = map[string]string{
	"Slate Black":   "bg-slate-800",
	"Deep Ocean":    "bg-blue-800",
	"Dark Forest":   "bg-green-800",
	"Rich Purple":   "bg-purple-800",
	"Wine Red":      "bg-red-800",
	"Dark Amber":    "bg-amber-800",
	"Royal Navy":    "bg-indigo-800",
	"Deep Rose":     "bg-rose-800",
	"Dark Teal":     "bg-teal-800",
	"Coffee Brown":  "bg-yellow-900",
	"Dark Violet":   "bg-violet-800",
	"Deep Crimson":  "bg-red-900",
	"Dark Emerald":  "bg-emerald-800",
	"Midnight Blue": "bg-blue-900",
	"Dark Bronze":   "bg-yellow-800",
	"Deep Burgundy": "bg-red-950",
	"Dark Moss":     "bg-green-900",
	"Deep Space":    "bg-slate-950",
	"Dark Berry":    "bg-purple-900",
	"Rich Mahogany": "bg-orange-900",
}

// IsColorToken reports whether token belongs to the palette.
func IsColorToken(token string) bool {
	for _, t := range ColorTokens {
		if t == token {
			return true
		}
	}
	return false
}
