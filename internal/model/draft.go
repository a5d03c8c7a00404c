package model

import "time"

// Aux keys stored alongside a draft's text.
const (
	AuxColorToken     = "colorToken"
	AuxImageReference = "imageReference"
)

// DraftSnapshot is the in-progress editor state kept in local storage.
//
// SavedAt is epoch milliseconds so the stored JSON stays stable across
// languages and time zones. A snapshot is only ever restored while fresh.
type DraftSnapshot struct {
	Title   string            `json:"title"`
	Content string            `json:"content"`
	Aux     map[string]string `json:"aux,omitempty"`
	SavedAt int64             `json:"savedAt"`
}

// SavedTime returns SavedAt as a time.Time.
func (d DraftSnapshot) SavedTime() time.Time {
	return time.UnixMilli(d.SavedAt)
}

// Empty reports whether neither title nor content holds any text.
func (d DraftSnapshot) Empty() bool {
	return d.Title == "" && d.Content == ""
}
