package websocket

import (
	"context"
	"log/slog"
	"net/http"

	"face-search/internal/controller"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler обрабатывает WebSocket подключения
type Handler struct {
	manager  *Manager
	searcher controller.Searcher
	logger   *slog.Logger
}

// NewHandler создает новый WebSocket handler.
// searcher - клиент шлюза, через который сессии отправляют запросы
func NewHandler(manager *Manager, searcher controller.Searcher, logger *slog.Logger) *Handler {
	return &Handler{
		manager:  manager,
		searcher: searcher,
		logger:   logger,
	}
}

// HandleWebSocket открывает живую сессию поиска
func (h *Handler) HandleWebSocket(c *gin.Context) {
	// Апгрейдим HTTP соединение до WebSocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("не удалось открыть WebSocket", "error", err)
		return
	}

	sessionID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	// Создаем клиента с собственным контроллером
	client := &Client{
		ID:         sessionID,
		Conn:       conn,
		Send:       make(chan Message, 256),
		controller: controller.New(h.searcher, h.logger.With("session_id", sessionID)),
		cancel:     cancel,
	}

	// Регистрируем клиента
	h.manager.RegisterClient(client)

	// Запускаем горутины сессии, чтения и записи
	go client.controller.Run(ctx)
	go client.ForwardUpdates(h.manager)
	go client.WritePump(h.logger)
	go client.ReadPump(h.manager)
}
