package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"face-search/internal/models"
	"face-search/internal/repository"
	"face-search/internal/service/proxy"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Тексты ответов шлюза (plain text)
const (
	msgMethodNotAllowed = "Method Not Allowed"
	msgMissingImage     = "Missing image in request body"
	msgEncodeFailed     = "Failed to encode a face"
)

const (
	defaultSearchesLimit = 20
	maxSearchesLimit     = 100
)

// Version - версия сервиса для /health
const Version = "1.0.0"

// Encoder - нормализация и пересылка запроса в сервис распознавания
type Encoder interface {
	EncodeFace(ctx context.Context, req proxy.Request) (*proxy.Result, error)
}

// StatsCache - кэш статистики (Redis)
type StatsCache interface {
	GetStats(ctx context.Context) (*models.Stats, error)
	SetStats(ctx context.Context, stats *models.Stats) error
	InvalidateStats(ctx context.Context) error
}

// Handler содержит все зависимости для обработки HTTP запросов.
// repo и cache необязательны
type Handler struct {
	encoder Encoder
	repo    repository.RepositoryInterface
	cache   StatsCache
	logger  *slog.Logger
}

// NewHandler создает новый handler с зависимостями
func NewHandler(
	encoder Encoder,
	repo repository.RepositoryInterface,
	cache StatsCache,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		encoder: encoder,
		repo:    repo,
		cache:   cache,
		logger:  logger,
	}
}

// ============ ENCODE FACE ============

// HandleEncodeFace godoc
// @Summary Find similar faces
// @Description Strips the data URI prefix from the image and relays the recognition service response unchanged.
// @Tags search
// @Accept json
// @Produce json
// @Produce plain
// @Param request body models.EncodeFaceRequest true "Image as data URI or bare base64"
// @Param num_rows query int false "Number of results (1-20)"
// @Param tolerance_var query number false "Distance tolerance (0-0.8)"
// @Param min_age query int false "Minimum age"
// @Param max_age query int false "Maximum age"
// @Success 200 {array} models.SearchResult
// @Failure 400 {string} string "Missing image in request body"
// @Failure 405 {string} string "Method Not Allowed"
// @Failure 500 {string} string "Failed to encode a face"
// @Router /api/encode_face [post]
func (h *Handler) HandleEncodeFace(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.String(http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	start := time.Now()
	query := c.Request.URL.Query()

	var req models.EncodeFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, msgMissingImage)
		h.audit(c.Request.Context(), query, "", http.StatusBadRequest, nil, false, start)
		return
	}

	result, err := h.encoder.EncodeFace(c.Request.Context(), proxy.Request{
		Image: req.Image,
		Query: query,
	})
	switch {
	case errors.Is(err, proxy.ErrValidation):
		c.String(http.StatusBadRequest, msgMissingImage)
		h.audit(c.Request.Context(), query, "", http.StatusBadRequest, nil, false, start)
		return
	case err != nil:
		c.String(http.StatusInternalServerError, msgEncodeFailed)
		h.audit(c.Request.Context(), query, proxy.ImageHash(proxy.NormalizeImage(req.Image)), http.StatusInternalServerError, nil, false, start)
		return
	}

	// Тело сервиса распознавания отдаем без изменений
	c.Data(http.StatusOK, "application/json", result.Body)
	h.audit(c.Request.Context(), query, result.ImageSHA256, http.StatusOK, result.Body, result.CacheHit, start)
}

// audit сохраняет запись о запросе. Ошибки только логируются
func (h *Handler) audit(ctx context.Context, query url.Values, imageHash string, status int, body []byte, cacheHit bool, start time.Time) {
	if h.repo == nil {
		return
	}

	record := &models.SearchRecord{
		ID:           uuid.New().String(),
		ImageSHA256:  imageHash,
		NumRows:      query.Get(models.ParamNumRows),
		ToleranceVar: query.Get(models.ParamToleranceVar),
		MinAge:       query.Get(models.ParamMinAge),
		MaxAge:       query.Get(models.ParamMaxAge),
		StatusCode:   status,
		ResultCount:  countResults(body),
		LatencyMs:    time.Since(start).Milliseconds(),
		CacheHit:     cacheHit,
		CreatedAt:    time.Now().UTC(),
	}

	if err := h.repo.CreateSearch(ctx, record); err != nil {
		h.logger.Warn("⚠️  не удалось сохранить запись аудита", "error", err)
		return
	}

	// Инвалидируем кэш
	if h.cache != nil {
		if err := h.cache.InvalidateStats(ctx); err != nil {
			h.logger.Warn("⚠️  не удалось сбросить кэш статистики", "error", err)
		}
	}
}

func countResults(body []byte) int {
	if body == nil {
		return 0
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return 0
	}
	return len(items)
}

// ============ STATS ============

// HandleGetStats godoc
// @Summary Gateway statistics
// @Description Aggregate counters over audited searches. Cached for 5 minutes when Redis is enabled.
// @Tags audit
// @Produce json
// @Success 200 {object} models.Stats
// @Failure 500 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /api/stats [get]
func (h *Handler) HandleGetStats(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error: "Аудит отключен",
		})
		return
	}

	ctx := c.Request.Context()

	// Пробуем из кэша
	if h.cache != nil {
		if stats, err := h.cache.GetStats(ctx); err == nil && stats != nil {
			c.JSON(http.StatusOK, stats)
			return
		}
	}

	// Из БД
	stats, err := h.repo.GetStats(ctx)
	if err != nil {
		h.logger.Error("❌ ошибка получения статистики", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Ошибка получения статистики",
		})
		return
	}

	// Сохраняем в кэш
	if h.cache != nil {
		if err := h.cache.SetStats(ctx, stats); err != nil {
			h.logger.Warn("⚠️  не удалось сохранить статистику в кэш", "error", err)
		}
	}

	c.JSON(http.StatusOK, stats)
}

// ============ SEARCHES ============

// HandleRecentSearches godoc
// @Summary Recent searches
// @Description Latest audited gateway requests, newest first. The image itself is never stored.
// @Tags audit
// @Produce json
// @Param limit query int false "Number of records (1-100)" default(20)
// @Success 200 {array} models.SearchRecord
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /api/searches [get]
func (h *Handler) HandleRecentSearches(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error: "Аудит отключен",
		})
		return
	}

	limit := defaultSearchesLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSearchesLimit {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "Параметр limit должен быть от 1 до 100",
			})
			return
		}
		limit = n
	}

	records, err := h.repo.GetRecentSearches(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("❌ ошибка получения истории поисков", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Ошибка получения истории",
		})
		return
	}

	c.JSON(http.StatusOK, records)
}

// ============ HEALTH ============

// HandleHealth godoc
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "face-search-gateway",
		"version": Version,
	})
}
