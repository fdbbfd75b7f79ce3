package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"face-search/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	statsKey = "stats"
	statsTTL = 5 * time.Minute
)

// Service управляет кэшированием через Redis
type Service struct {
	client      *redis.Client
	responseTTL time.Duration
}

// NewService создает новый cache service и проверяет подключение
func NewService(ctx context.Context, addr, password string, db int, responseTTL time.Duration) (*Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	return NewWithClient(client, responseTTL), nil
}

// NewWithClient оборачивает уже созданный клиент
func NewWithClient(client *redis.Client, responseTTL time.Duration) *Service {
	return &Service{
		client:      client,
		responseTTL: responseTTL,
	}
}

// Close закрывает соединение с Redis
func (s *Service) Close() error {
	return s.client.Close()
}

// ============ RESPONSE CACHE ============

// GetResponse возвращает закэшированное тело ответа сервиса распознавания.
// nil, nil - ключа нет
func (s *Service) GetResponse(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SetResponse сохраняет тело ответа на responseTTL
func (s *Service) SetResponse(ctx context.Context, key string, body []byte) error {
	return s.client.Set(ctx, key, body, s.responseTTL).Err()
}

// ============ STATS CACHE ============

// GetStats получает статистику из кэша
func (s *Service) GetStats(ctx context.Context) (*models.Stats, error) {
	data, err := s.client.Get(ctx, statsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var stats models.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}

	return &stats, nil
}

// SetStats сохраняет статистику в кэш на 5 минут
func (s *Service) SetStats(ctx context.Context, stats *models.Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, statsKey, data, statsTTL).Err()
}

// InvalidateStats очищает кэш статистики
func (s *Service) InvalidateStats(ctx context.Context) error {
	return s.client.Del(ctx, statsKey).Err()
}
