package models

import (
	"encoding/base64"
	"time"
)

// SessionStatus - состояние сессии поиска
type SessionStatus string

// Константы статусов сессии
const (
	StatusIdle     SessionStatus = "idle"
	StatusQuerying SessionStatus = "querying"
	StatusSuccess  SessionStatus = "success"
	StatusError    SessionStatus = "error"
)

// UploadedImage - загруженное пользователем изображение
type UploadedImage struct {
	MediaType string // png, jpeg, gif, webp
	Data      []byte
}

// DataURI возвращает изображение в виде data:image/<type>;base64,<payload>
func (i UploadedImage) DataURI() string {
	return "data:image/" + i.MediaType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// SearchResult - одно похожее лицо из ответа сервиса распознавания
type SearchResult struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Distance    float64 `json:"distance"`
	ImageBase64 string  `json:"image_base64"`
}

// Snapshot - неизменяемая копия изображения и параметров в момент запроса
type Snapshot struct {
	Seq    uint64
	Image  string // data URI
	Params SearchParameters
}

// Session - состояние контроллера поиска
// Results заполнен только в StatusSuccess, ErrorMessage только в StatusError
type Session struct {
	Status         SessionStatus
	Image          *UploadedImage
	Params         SearchParameters
	Results        []SearchResult
	ErrorMessage   string
	HasEverQueried bool
}

// Clone возвращает копию сессии, безопасную для передачи в другие горутины
func (s Session) Clone() Session {
	out := s
	if s.Image != nil {
		img := *s.Image
		out.Image = &img
	}
	if s.Results != nil {
		out.Results = make([]SearchResult, len(s.Results))
		copy(out.Results, s.Results)
	}
	return out
}

// EncodeFaceRequest - тело запроса к /api/encode_face
type EncodeFaceRequest struct {
	Image string `json:"image"`
}

// UpstreamRequest - тело запроса к сервису распознавания
type UpstreamRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// SearchRecord - запись аудита одного запроса к шлюзу
// Само изображение не хранится, только его sha256
type SearchRecord struct {
	ID           string    `db:"id" json:"id"`
	ImageSHA256  string    `db:"image_sha256" json:"image_sha256"`
	NumRows      string    `db:"num_rows" json:"num_rows"`
	ToleranceVar string    `db:"tolerance_var" json:"tolerance_var"`
	MinAge       string    `db:"min_age" json:"min_age"`
	MaxAge       string    `db:"max_age" json:"max_age"`
	StatusCode   int       `db:"status_code" json:"status_code"`
	ResultCount  int       `db:"result_count" json:"result_count"`
	LatencyMs    int64     `db:"latency_ms" json:"latency_ms"`
	CacheHit     bool      `db:"cache_hit" json:"cache_hit"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Stats - общая статистика шлюза
type Stats struct {
	TotalSearches  int     `db:"total_searches" json:"total_searches"`
	FailedSearches int     `db:"failed_searches" json:"failed_searches"`
	CacheHits      int     `db:"cache_hits" json:"cache_hits"`
	AvgLatencyMs   float64 `db:"avg_latency_ms" json:"avg_latency_ms"`
}

// ErrorResponse - JSON ответ с ошибкой для служебных эндпоинтов
type ErrorResponse struct {
	Error string `json:"error"`
}
