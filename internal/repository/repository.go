package repository

import (
	"context"

	"face-search/internal/models"

	"github.com/jmoiron/sqlx"
)

// Repository инкапсулирует всю работу с базой аудита
type Repository struct {
	db *sqlx.DB
}

// NewRepository создает новый репозиторий
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// ============ SEARCHES ============

// CreateSearch сохраняет запись об одном запросе к шлюзу
func (r *Repository) CreateSearch(ctx context.Context, record *models.SearchRecord) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO searches (
			id, image_sha256, num_rows, tolerance_var, min_age, max_age,
			status_code, result_count, latency_ms, cache_hit, created_at
		) VALUES (
			:id, :image_sha256, :num_rows, :tolerance_var, :min_age, :max_age,
			:status_code, :result_count, :latency_ms, :cache_hit, :created_at
		)
	`, record)
	return err
}

// GetRecentSearches возвращает последние записи, новые первыми
func (r *Repository) GetRecentSearches(ctx context.Context, limit int) ([]models.SearchRecord, error) {
	var records []models.SearchRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT id, image_sha256, num_rows, tolerance_var, min_age, max_age,
		       status_code, result_count, latency_ms, cache_hit, created_at
		FROM searches
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}

	if records == nil {
		records = []models.SearchRecord{} // Пустой массив вместо nil
	}
	return records, nil
}

// ============ STATS ============

// GetStats возвращает общую статистику шлюза
func (r *Repository) GetStats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats

	err := r.db.GetContext(ctx, &stats, `
		SELECT COUNT(*) AS total_searches,
		       COUNT(*) FILTER (WHERE status_code >= 400) AS failed_searches,
		       COUNT(*) FILTER (WHERE cache_hit) AS cache_hits,
		       COALESCE(AVG(latency_ms), 0) AS avg_latency_ms
		FROM searches
	`)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}
