package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/adshield/fraud-service/internal/models"
	"github.com/adshield/fraud-service/internal/repository"
	"github.com/adshield/fraud-service/internal/service"
)

// FraudHandler exposes the fraud engine over HTTP: click checks, statistics,
// reputation lookups and the suspicious activity log.
type FraudHandler struct {
	pipeline   *service.Pipeline
	tracker    *service.Tracker
	activities repository.AnalyticsRepository
}

func NewFraudHandler(pipeline *service.Pipeline, tracker *service.Tracker, activities repository.AnalyticsRepository) *FraudHandler {
	return &FraudHandler{
		pipeline:   pipeline,
		tracker:    tracker,
		activities: activities,
	}
}

// Routes mounts the fraud API.
func (h *FraudHandler) Routes(r chi.Router) {
	r.Post("/fraud/check", h.CheckClick)
	r.Post("/fraud/impression", h.RecordImpression)
	r.Get("/fraud/stats", h.Stats)
	r.Get("/reputation/{entityType}/{entityID}", h.Reputation)
	r.Get("/activities", h.Activities)
}

// CheckClick runs one click through the pipeline and returns the decision.
// The endpoint never fails a request because of an engine fault; degraded
// decisions come back allowed with the error surfaced in the body.
func (h *FraudHandler) CheckClick(w http.ResponseWriter, r *http.Request) {
	var click models.ClickEvent
	if err := json.NewDecoder(r.Body).Decode(&click); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid click payload")
		return
	}

	outcome := h.pipeline.Process(r.Context(), click)
	writeJSON(w, http.StatusOK, outcome)
}

type impressionRequest struct {
	UserID string `json:"userId"`
	AdID   string `json:"adId"`
}

func (h *FraudHandler) RecordImpression(w http.ResponseWriter, r *http.Request) {
	var req impressionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.AdID == "" {
		writeJSONError(w, http.StatusBadRequest, "userId and adId are required")
		return
	}
	if err := h.pipeline.RecordImpression(r.Context(), req.UserID, req.AdID); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "failed to record impression")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recorded": true})
}

func (h *FraudHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.pipeline.Statistics(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "failed to compute statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

var entityTypes = map[string]models.EntityType{
	"user":               models.EntityUser,
	"device":             models.EntityDevice,
	"ip":                 models.EntityIP,
	"device_fingerprint": models.EntityDeviceFingerprint,
	"ip_fingerprint":     models.EntityIPFingerprint,
}

// Reputation returns the raw reputation score for one entity. An optional
// threshold query parameter also reports whether the score meets it.
func (h *FraudHandler) Reputation(w http.ResponseWriter, r *http.Request) {
	entity, ok := entityTypes[chi.URLParam(r, "entityType")]
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "unknown entity type")
		return
	}
	entityID := chi.URLParam(r, "entityID")
	if entityID == "" {
		writeJSONError(w, http.StatusBadRequest, "entity id is required")
		return
	}

	threshold := 80
	if v := r.URL.Query().Get("threshold"); v != "" {
		t, err := strconv.Atoi(v)
		if err != nil || t < 0 || t > 100 {
			writeJSONError(w, http.StatusBadRequest, "threshold must be 0-100")
			return
		}
		threshold = t
	}

	suspicious, score, err := h.tracker.IsSuspicious(r.Context(), entity, entityID, threshold)
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "reputation store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entityType": entity,
		"entityId":   entityID,
		"score":      score,
		"threshold":  threshold,
		"suspicious": suspicious,
	})
}

func (h *FraudHandler) Activities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repository.ActivityFilter{
		EntityID: q.Get("entityId"),
	}
	if t := q.Get("entityType"); t != "" {
		entity, ok := entityTypes[t]
		if !ok {
			writeJSONError(w, http.StatusBadRequest, "unknown entity type")
			return
		}
		filter.EntityType = entity
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	records, err := h.activities.Activities(r.Context(), filter)
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "failed to query activities")
		return
	}
	if records == nil {
		records = []models.SuspiciousActivityRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": records})
}
