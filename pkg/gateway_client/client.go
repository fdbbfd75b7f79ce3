package gateway_client

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

const encodeFacePath = "/api/encode_face"

// ErrInvalidResponse - шлюз вернул 2xx, но тело не является списком результатов
var ErrInvalidResponse = errors.New("invalid response from gateway")

// NetworkError - запрос к шлюзу не удался или вернул не-2xx статус
type NetworkError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return "Network error: " + e.Err.Error()
	}
	return fmt.Sprintf("HTTP error! status: %d - %s", e.StatusCode, e.Body)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Client для вызова шлюза /api/encode_face
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создает новый клиент. baseURL - адрес шлюза без пути
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// EncodeFace отправляет снимок сессии в шлюз и разбирает список похожих лиц
func (c *Client) EncodeFace(ctx context.Context, snap models.Snapshot) ([]models.SearchResult, error) {
	requestBody, err := json.Marshal(models.EncodeFaceRequest{Image: snap.Image})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + encodeFacePath + "?" + snap.Params.Query()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var results []models.SearchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if results == nil {
		results = []models.SearchResult{}
	}

	return results, nil
}
