package harness

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// maxManifestSize caps request bodies.
const maxManifestSize = 1 << 20

// maxSeekSeconds is the largest seek position a time.Duration can hold.
const maxSeekSeconds = float64(math.MaxInt64) / float64(time.Second)

// Handler exposes session endpoints using go-chi.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler returns a Handler that uses the given Service and Logger.
// Request and error counts are recorded by metrics.RequestMiddleware.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts the session endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/", h.ListSessions)
		r.Route("/{session_id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DestroySession)
			r.Post("/seek", h.Seek)
			r.Post("/skip", h.Skip)
		})
	})
}

// CreateSession handles POST /sessions. The body is a YAML or JSON manifest.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	m, err := DecodeManifest(http.MaxBytesReader(w, r.Body, maxManifestSize))
	if err != nil {
		h.log.Debug("invalid manifest", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err)
		return
	}

	v, err := h.svc.Create(r.Context(), m)
	if err != nil {
		if errors.Is(err, ErrInvalidManifest) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.log.Error("create session failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Location", "/sessions/"+v.ID)
	writeJSON(w, http.StatusCreated, v)
}

// ListSessions handles GET /sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": h.svc.List()})
}

// GetSession handles GET /sessions/{session_id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Get(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Seek handles POST /sessions/{session_id}/seek.
// Body: { "position": 42.5 } in seconds.
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Position *float64 `json:"position"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxManifestSize)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidPosition, err))
		return
	}
	if body.Position == nil || *body.Position < 0 || *body.Position >= maxSeekSeconds {
		writeError(w, http.StatusBadRequest, ErrInvalidPosition)
		return
	}

	pos := time.Duration(*body.Position * float64(time.Second))
	v, err := h.svc.Seek(r.Context(), chi.URLParam(r, "session_id"), pos)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Skip handles POST /sessions/{session_id}/skip.
func (h *Handler) Skip(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Skip(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// DestroySession handles DELETE /sessions/{session_id}.
func (h *Handler) DestroySession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	if err := h.svc.Destroy(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	h.log.Info("session destroyed", slog.String("session_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrNoAdPlaying):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, ErrInvalidPosition):
		writeError(w, http.StatusBadRequest, err)
	default:
		h.log.Error("session request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
