package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/poetry-studio/internal/apperror"
	"github.com/sakif/poetry-studio/internal/model"
	"github.com/sakif/poetry-studio/internal/service"
)

// PoemHandler serves the JSON poem collection under /api/poems.
//
//	GET    /api/poems/count          → {"count": n}
//	GET    /api/poems?offset=&limit= → [Poem]
//	GET    /api/poems/{id}           → Poem
//	POST   /api/poems                → 201 Poem
//	PUT    /api/poems/{id}           → Poem
//	DELETE /api/poems/{id}           → 204
type PoemHandler struct {
	poems  *service.PoemService
	logger *slog.Logger
}

func NewPoemHandler(poems *service.PoemService, logger *slog.Logger) *PoemHandler {
	return &PoemHandler{poems: poems, logger: logger}
}

// CountResponse is the body of GET /api/poems/count.
type CountResponse struct {
	Count int `json:"count"`
}

func (h *PoemHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.poems.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// HandleList returns one range of poems, newest first.
// Missing parameters fall back to offset 0 and the default limit; malformed ones
// are a 400.
func (h *PoemHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	poems, err := h.poems.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poems)
}

func (h *PoemHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	poem, err := h.poems.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poem)
}

func (h *PoemHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in model.PoemInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	poem, err := h.poems.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/poems/"+poem.ID)
	writeJSON(w, http.StatusCreated, poem)
}

func (h *PoemHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in model.PoemInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	poem, err := h.poems.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poem)
}

func (h *PoemHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.poems.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a non-negative integer")
	}
	return n, nil
}
