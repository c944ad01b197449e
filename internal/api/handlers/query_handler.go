package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finsight/backend/internal/cache/redis"
	"github.com/finsight/backend/internal/metrics"
	"github.com/finsight/backend/internal/session"
	"github.com/finsight/backend/internal/storage/models"
	"github.com/finsight/backend/internal/storage/sqlite"
	"github.com/finsight/backend/pkg/logger"
)

// QueryHandler serves the question answering endpoints. The optional
// shared cache is a cross-session exact-match tier in front of the
// per-session routers.
type QueryHandler struct {
	sessions *session.Manager
	db       *sqlite.Client
	shared   *redis.Client
}

func NewQueryHandler(sessions *session.Manager, db *sqlite.Client, shared *redis.Client) *QueryHandler {
	return &QueryHandler{
		sessions: sessions,
		db:       db,
		shared:   shared,
	}
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		Query     string `json:"query"`
		SessionID string `json:"session_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	r, sessionID := h.sessions.Get(req.SessionID)
	start := time.Now()

	if h.shared != nil {
		cached, hit, err := h.shared.GetAnswer(c.Context(), normalizeQuery(req.Query))
		if err != nil {
			logger.Warn("Shared cache lookup failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("shared").Inc()
			r.RecordExchange(req.Query, cached.Answer)

			return c.JSON(fiber.Map{
				"id":         uuid.New().String(),
				"session_id": sessionID,
				"query":      req.Query,
				"response":   cached.Answer,
				"passages":   cached.Passages,
				"cache_hit":  true,
				"cache_tier": "shared",
				"latency_ms": time.Since(start).Milliseconds(),
			})
		}
		metrics.CacheMisses.WithLabelValues("shared").Inc()
	}

	resp := r.Route(c.Context(), req.Query)
	latency := time.Since(start)

	status := "ok"
	switch {
	case resp.Failed:
		status = "failed"
	case resp.NeedsClarification:
		status = "clarification"
		metrics.ClarificationsRequested.Inc()
	}
	metrics.QueryTotal.WithLabelValues(status).Inc()
	metrics.QueryDuration.WithLabelValues(string(resp.Intent)).Observe(latency.Seconds())

	if resp.CacheHit {
		metrics.CacheHits.WithLabelValues("session").Inc()
	} else {
		metrics.CacheMisses.WithLabelValues("session").Inc()
	}
	if resp.Confidence != "" {
		metrics.QueryConfidence.WithLabelValues(string(resp.Confidence)).Inc()
	}
	metrics.RetrievedChunks.Observe(float64(len(resp.Passages)))

	queryID := uuid.New().String()

	if h.db != nil && !resp.Failed {
		record := &models.QueryRecord{
			ID:         queryID,
			SessionID:  sessionID,
			QueryText:  req.Query,
			Response:   resp.Answer,
			Intent:     string(resp.Intent),
			Confidence: string(resp.Confidence),
			CacheHit:   resp.CacheHit,
			LatencyMS:  latency.Milliseconds(),
			CreatedAt:  time.Now(),
		}
		if err := h.db.InsertQueryRecord(record); err != nil {
			logger.Warn("Failed to record query", zap.Error(err))
		}
	}

	if h.shared != nil && !resp.Failed && !resp.NeedsClarification && !resp.CacheHit {
		cached := &redis.CachedAnswer{
			Answer:    resp.Answer,
			Passages:  resp.Passages,
			TokenInfo: resp.TokenInfo,
		}
		if err := h.shared.SetAnswer(c.Context(), normalizeQuery(req.Query), cached); err != nil {
			logger.Warn("Failed to write shared cache", zap.Error(err))
		}
	}

	if resp.Failed {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":      resp.Answer,
			"session_id": sessionID,
		})
	}

	return c.JSON(fiber.Map{
		"id":                  queryID,
		"session_id":          sessionID,
		"query":               req.Query,
		"response":            resp.Answer,
		"passages":            resp.Passages,
		"intent":              resp.Intent,
		"confidence":          resp.Confidence,
		"needs_clarification": resp.NeedsClarification,
		"cache_hit":           resp.CacheHit,
		"similarity":          resp.Similarity,
		"latency_ms":          latency.Milliseconds(),
	})
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	limit := c.QueryInt("limit", 20)

	records, err := h.db.GetQueryHistory(sessionID, limit)
	if err != nil {
		logger.Error("Failed to fetch query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch query history",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"history":    records,
	})
}

func (h *QueryHandler) HandleFeedback(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"session_id"`
		Query     string `json:"query"`
		Answer    string `json:"answer"`
		Feedback  string `json:"feedback"`
		Rating    int    `json:"rating"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	r, _ := h.sessions.Get(req.SessionID)
	r.RecordFeedback(req.Query, req.Answer, req.Feedback, req.Rating)

	if h.db != nil {
		feedback := &models.Feedback{
			QueryText: req.Query,
			Answer:    req.Answer,
			Feedback:  req.Feedback,
			Rating:    req.Rating,
		}
		if err := h.db.StoreFeedback(feedback); err != nil {
			logger.Warn("Failed to store feedback", zap.Error(err))
		}
	}

	if req.Rating > 0 {
		metrics.FeedbackRating.Observe(float64(req.Rating))
	}

	return c.JSON(fiber.Map{
		"message": "Feedback recorded",
	})
}

func (h *QueryHandler) GetCacheStats(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	r, _ := h.sessions.Get(sessionID)
	stats := r.CacheStats()

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"size":       stats.Size,
		"capacity":   stats.Capacity,
		"threshold":  stats.Threshold,
	})
}

func (h *QueryHandler) ClearCache(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"session_id"`
		Shared    bool   `json:"shared"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.SessionID != "" {
		r, _ := h.sessions.Get(req.SessionID)
		r.ClearCache()
	}

	if req.Shared && h.shared != nil {
		if err := h.shared.InvalidateAnswers(c.Context()); err != nil {
			logger.Warn("Failed to invalidate shared cache", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"message": "Cache cleared",
	})
}

func (h *QueryHandler) GetMemoryContext(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	r, _ := h.sessions.Get(sessionID)

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"context":    r.MemoryContext(),
	})
}

func (h *QueryHandler) ClearMemory(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"session_id"`
	}

	if err := c.BodyParser(&req); err != nil || req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	r, _ := h.sessions.Get(req.SessionID)
	r.ClearMemory()

	return c.JSON(fiber.Map{
		"message": "Memory cleared",
	})
}

func (h *QueryHandler) DeleteSession(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session id is required",
		})
	}

	h.sessions.Remove(sessionID)
	metrics.ActiveSessions.Set(float64(h.sessions.Count()))

	return c.JSON(fiber.Map{
		"message": "Session removed",
	})
}
