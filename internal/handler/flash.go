package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/sakif/poetry-studio/internal/notify"
)

// flashCookie carries notifications across a POST-redirect-GET.
const flashCookie = "flash"

type flashItem struct {
	Level   string `json:"l"`
	Title   string `json:"t"`
	Message string `json:"m,omitempty"`
}

// Flash is a notification ready for a template.
type Flash struct {
	Level   string
	Title   string
	Message string
}

func toFlashes(ns []notify.Notification) []Flash {
	out := make([]Flash, 0, len(ns))
	for _, n := range ns {
		out = append(out, Flash{Level: n.Level.String(), Title: n.Title, Message: n.Message})
	}
	return out
}

// setFlash stores ns for the next page render. Nothing is written for an empty slice.
func setFlash(w http.ResponseWriter, ns []notify.Notification) {
	if len(ns) == 0 {
		return
	}
	items := make([]flashItem, 0, len(ns))
	for _, n := range ns {
		items = append(items, flashItem{Level: n.Level.String(), Title: n.Title, Message: n.Message})
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash reads and clears the flash cookie. A malformed cookie is dropped.
func takeFlash(w http.ResponseWriter, r *http.Request) []Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var items []flashItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	out := make([]Flash, 0, len(items))
	for _, it := range items {
		out = append(out, Flash{Level: it.Level, Title: it.Title, Message: it.Message})
	}
	return out
}
