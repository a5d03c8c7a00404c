package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/poetry-studio/internal/generate"
	"github.com/sakif/poetry-studio/internal/service"
)

// EnhanceRequest is the body of POST /api/enhance.
type EnhanceRequest struct {
	Text string `json:"text"`
}

// EnhanceEvent is one line of the NDJSON stream. Exactly one field is set.
type EnhanceEvent struct {
	Partial string `json:"partial,omitempty"`
	Final   string `json:"final,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// EnhanceHandler streams a generated commentary as newline-delimited JSON.
//
// STREAM SHAPE:
//
//	{"partial":"Starting analysis..."}
//	{"partial":"Analysing with mistralai/...\n\n"}
//	{"final":"The poem ..."}
//
// Errors found before the first event (bad body, empty text, generation not
// configured) get a normal JSON error response with a proper status. Once the
// stream has started the status is already 200, so a failure is reported as a
// final {"error":...} line instead.
type EnhanceHandler struct {
	enhance *service.EnhanceService
	logger  *slog.Logger
}

func NewEnhanceHandler(enhance *service.EnhanceService, logger *slog.Logger) *EnhanceHandler {
	return &EnhanceHandler{enhance: enhance, logger: logger}
}

func (h *EnhanceHandler) HandleEnhance(w http.ResponseWriter, r *http.Request) {
	var req EnhanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	rc := http.NewResponseController(w)
	// A multi-model run outlasts the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})
	enc := json.NewEncoder(w)
	started := false

	send := func(ev EnhanceEvent) {
		if !started {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if err := enc.Encode(ev); err != nil {
			h.logger.Debug("enhance: client gone", slog.String("error", err.Error()))
			return
		}
		if err := rc.Flush(); err != nil {
			h.logger.Debug("enhance: flush", slog.String("error", err.Error()))
		}
	}

	out, err := h.enhance.Enhance(r.Context(), req.Text, func(p string) {
		send(EnhanceEvent{Partial: p})
	})
	if err != nil {
		if generate.IsCancelled(err) {
			if started {
				send(EnhanceEvent{Error: "cancelled", Message: "generation cancelled"})
			}
			return
		}
		if !started {
			writeError(w, err)
			return
		}
		_, body := errorBody(err)
		send(EnhanceEvent{Error: body.Error, Message: body.Message})
		return
	}

	send(EnhanceEvent{Final: out})
}
