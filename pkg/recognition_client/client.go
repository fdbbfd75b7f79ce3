package recognition_client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"face-search/internal/models"
)

var (
	// ErrUpstream - любая ошибка при обращении к сервису распознавания
	ErrUpstream = errors.New("recognition service error")
	// ErrInvalidResponse - сервис вернул 2xx, но тело не является JSON
	ErrInvalidResponse = errors.New("invalid response from recognition service")
)

// StatusError - сервис распознавания вернул не-2xx статус
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("recognition service returned status %d: %s", e.StatusCode, e.Body)
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrUpstream)
func (e *StatusError) Unwrap() error {
	return ErrUpstream
}

// Client для взаимодействия с сервисом распознавания лиц
type Client struct {
	apiURL     string
	httpClient *http.Client
}

// NewClient создает новый клиент. apiURL - полный адрес encode_face
func NewClient(apiURL string, timeout time.Duration) *Client {
	return &Client{
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// EncodeFace отправляет изображение (base64 без префикса) на поиск похожих лиц.
// query уже собран вызывающим кодом и передаётся как есть.
// Возвращает тело ответа без изменений
func (c *Client) EncodeFace(ctx context.Context, imageBase64, query string) ([]byte, error) {
	requestBody, err := json.Marshal(models.UpstreamRequest{ImageBase64: imageBase64})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrUpstream, err)
	}

	url := c.apiURL
	if query != "" {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + query
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: do request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, ErrInvalidResponse)
	}

	return body, nil
}
