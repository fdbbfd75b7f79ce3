package proxy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"face-search/internal/models"
)

var (
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrValidation       = errors.New("missing image in request body")
	ErrUpstream         = errors.New("failed to encode a face")
)

var dataURIPrefix = regexp.MustCompile(`^data:image/(png|jpeg|gif|webp);base64,`)

// Upstream - сервис распознавания (pkg/recognition_client)
type Upstream interface {
	EncodeFace(ctx context.Context, imageBase64, query string) ([]byte, error)
}

// Cache - кэш успешных ответов сервиса распознавания
type Cache interface {
	GetResponse(ctx context.Context, key string) ([]byte, error)
	SetResponse(ctx context.Context, key string, body []byte) error
}

// Request - нормализуемый запрос клиента
type Request struct {
	Image string
	Query url.Values
}

// Result - ответ сервиса распознавания и сведения для аудита
type Result struct {
	Body        []byte
	CacheHit    bool
	ImageSHA256 string
}

// Service переводит запрос клиента в запрос к сервису распознавания.
// Состояния между запросами нет
type Service struct {
	upstream Upstream
	cache    Cache
	logger   *slog.Logger
}

// NewService создает сервис без кэша
func NewService(upstream Upstream, logger *slog.Logger) *Service {
	return &Service{
		upstream: upstream,
		logger:   logger,
	}
}

// WithCache включает кэш ответов
func (s *Service) WithCache(cache Cache) *Service {
	s.cache = cache
	return s
}

// NormalizeImage убирает префикс data:image/(png|jpeg|gif|webp);base64,
// Остальные значения возвращаются без изменений
func NormalizeImage(image string) string {
	if loc := dataURIPrefix.FindStringIndex(image); loc != nil {
		return image[loc[1]:]
	}
	return image
}

// BuildQuery собирает query string для сервиса распознавания.
// Передаются только присутствующие непустые параметры, значения как есть
func BuildQuery(values url.Values) string {
	parts := make([]string, 0, len(models.ParamNames))
	for _, name := range models.ParamNames {
		if v := values.Get(name); v != "" {
			parts = append(parts, name+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}

// ImageHash возвращает sha256 нормализованного изображения
func ImageHash(imageBase64 string) string {
	sum := sha256.Sum256([]byte(imageBase64))
	return hex.EncodeToString(sum[:])
}

// CacheKey - ключ кэша для пары изображение + параметры
func CacheKey(imageHash, query string) string {
	return "encode:" + imageHash + ":" + query
}

// EncodeFace нормализует запрос и пересылает его в сервис распознавания.
// Ошибки: ErrValidation (нет изображения) или ErrUpstream (любая проблема с сервисом)
func (s *Service) EncodeFace(ctx context.Context, req Request) (*Result, error) {
	image := NormalizeImage(req.Image)
	if image == "" {
		return nil, ErrValidation
	}

	query := BuildQuery(req.Query)
	result := &Result{ImageSHA256: ImageHash(image)}
	key := CacheKey(result.ImageSHA256, query)

	if s.cache != nil {
		if body, err := s.cache.GetResponse(ctx, key); err != nil {
			s.logger.Warn("⚠️  ошибка чтения кэша", "error", err)
		} else if body != nil {
			result.Body = body
			result.CacheHit = true
			return result, nil
		}
	}

	body, err := s.upstream.EncodeFace(ctx, image, query)
	if err != nil {
		s.logger.Error("❌ ошибка сервиса распознавания",
			"error", err,
			"query", query,
		)
		return nil, ErrUpstream
	}
	result.Body = body

	if s.cache != nil {
		if err := s.cache.SetResponse(ctx, key, body); err != nil {
			s.logger.Warn("⚠️  ошибка записи в кэш", "error", err)
		}
	}

	return result, nil
}
