package storage

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"face-search/internal/models"
	"face-search/internal/service/proxy"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// Service управляет файловым хранилищем найденных лиц
type Service struct {
	resultsDir string
}

// NewService создает новый файловый сервис
func NewService(resultsDir string) (*Service, error) {
	// Создаем директорию если ее нет
	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать results: %w", err)
	}

	return &Service{
		resultsDir: resultsDir,
	}, nil
}

// SaveResults сохраняет изображения найденных лиц в отдельную папку запуска.
// Возвращает runID и пути к файлам в порядке результатов
func (s *Service) SaveResults(results []models.SearchResult) (string, []string, error) {
	// Генерируем уникальный ID запуска
	runID := uuid.New().String()
	runDir := s.RunPath(runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", nil, fmt.Errorf("не удалось создать папку запуска: %w", err)
	}

	savedFiles := make([]string, 0, len(results))
	for i, result := range results {
		data, err := base64.StdEncoding.DecodeString(proxy.NormalizeImage(result.ImageBase64))
		if err != nil {
			return runID, savedFiles, fmt.Errorf("результат %d: некорректный base64: %w", result.ID, err)
		}

		ext := mimetype.Detect(data).Extension()
		name := fmt.Sprintf("%02d_%d_%s%s", i+1, result.ID, unsafeName.ReplaceAllString(result.Name, "_"), ext)
		destPath := filepath.Join(runDir, name)

		if err := os.WriteFile(destPath, data, 0644); err != nil {
			return runID, savedFiles, fmt.Errorf("ошибка записи файла %s: %w", destPath, err)
		}

		savedFiles = append(savedFiles, destPath)
	}

	return runID, savedFiles, nil
}

// RunPath возвращает путь к папке запуска
func (s *Service) RunPath(runID string) string {
	return filepath.Join(s.resultsDir, runID)
}

// DeleteRun удаляет всю папку запуска
func (s *Service) DeleteRun(runID string) error {
	return os.RemoveAll(s.RunPath(runID))
}
