package repository

import (
	"context"

	"face-search/internal/models"
)

// RepositoryInterface определяет контракт для работы с аудитом поисков
// Это позволяет легко мокать репозиторий в тестах
type RepositoryInterface interface {
	// Searches
	CreateSearch(ctx context.Context, record *models.SearchRecord) error
	GetRecentSearches(ctx context.Context, limit int) ([]models.SearchRecord, error)

	// Stats
	GetStats(ctx context.Context) (*models.Stats, error)
}

// Проверяем что Repository реализует RepositoryInterface
var _ RepositoryInterface = (*Repository)(nil)
