// Package api exposes a small read-only HTTP surface over the engine's
// state, for dashboards and liveness probes.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/nidhogg/firmament/internal/gateway"
	"github.com/nidhogg/firmament/internal/mood"
	"github.com/nidhogg/firmament/internal/store"
)

// Store is the read surface the API serves.
type Store interface {
	GetEntityState(ctx context.Context) (mood.State, error)
	GetRelationshipStats(ctx context.Context, userID string) (*store.RelationshipStats, error)
	RecentAmbients(ctx context.Context, limit int) ([]store.AmbientEntry, error)
}

// Adapters reports gateway adapter health.
type Adapters interface {
	Statuses() []gateway.AdapterStatus
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store    Store
	adapters Adapters
	logger   *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(st Store, adapters Adapters, logger *zap.Logger) *Handler {
	return &Handler{store: st, adapters: adapters, logger: logger}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/state", h.getState)
		r.Get("/relationships/{userID}", h.getRelationship)
		r.Get("/ambient", h.getAmbient)
		r.Get("/adapters", h.getAdapters)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "entity": "raec"})
}

type stateResponse struct {
	Energy            float64 `json:"energy"`
	Valence           float64 `json:"valence"`
	Mood              string  `json:"mood"`
	Contemplation     string  `json:"contemplation"`
	InteractionsToday int     `json:"interactions_today"`
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) {
	state, err := h.store.GetEntityState(r.Context())
	if err != nil {
		h.logger.Error("state read failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "state unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{
		Energy:            state.Energy,
		Valence:           state.Valence,
		Mood:              state.Mood,
		Contemplation:     state.Contemplation,
		InteractionsToday: state.InteractionsToday,
	})
}

type relationshipResponse struct {
	UserID           string  `json:"user_id"`
	UserName         string  `json:"user_name"`
	InteractionCount int     `json:"interaction_count"`
	DepthScore       float64 `json:"depth_score"`
	Tone             string  `json:"tone"`
	ActiveFacts      int     `json:"active_facts"`
	ActiveEpisodes   int     `json:"active_episodes"`
}

func (h *Handler) getRelationship(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	stats, err := h.store.GetRelationshipStats(r.Context(), userID)
	if err != nil {
		h.logger.Error("relationship read failed", zap.String("user", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	if stats == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown user"})
		return
	}
	writeJSON(w, http.StatusOK, relationshipResponse{
		UserID:           stats.Row.UserID,
		UserName:         stats.Row.UserName,
		InteractionCount: stats.Row.InteractionCount,
		DepthScore:       stats.Row.DepthScore,
		Tone:             stats.Row.Tone,
		ActiveFacts:      stats.ActiveFacts,
		ActiveEpisodes:   stats.ActiveEpisodes,
	})
}

type ambientResponse struct {
	ChannelID string `json:"channel_id"`
	Message   string `json:"message"`
	Summary   string `json:"summary"`
	Timestamp string `json:"timestamp"`
}

func (h *Handler) getAmbient(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.RecentAmbients(r.Context(), 20)
	if err != nil {
		h.logger.Error("ambient read failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	out := make([]ambientResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ambientResponse{
			ChannelID: e.ChannelID,
			Message:   e.Message,
			Summary:   e.Summary,
			Timestamp: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getAdapters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.adapters.Statuses())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
