package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"face-search/internal/controller"
	"face-search/internal/models"
	"face-search/internal/render"

	"github.com/gorilla/websocket"
)

// MessageType типы сообщений для WebSocket
type MessageType string

const (
	MessageTypeSessionUpdate MessageType = "session_update"
	MessageTypeError         MessageType = "error"
)

// Команды от клиента (текстовые фреймы)
const (
	CommandUpdateParameter = "update_parameter"
	CommandClearImage      = "clear_image"
)

// Message структура WebSocket сообщения
type Message struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Payload   interface{} `json:"payload"`
}

// Command - текстовая команда клиента
type Command struct {
	Type  string          `json:"type"`
	Name  string          `json:"name,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Client представляет WebSocket клиента со своей сессией поиска
type Client struct {
	ID         string
	Conn       *websocket.Conn
	Send       chan Message
	controller *controller.Controller
	cancel     context.CancelFunc
}

// Manager управляет WebSocket соединениями
type Manager struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	done       chan struct{}
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewManager создает новый WebSocket manager
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run запускает менеджер (должен работать в отдельной горутине)
func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			for id, client := range m.clients {
				close(client.Send)
				delete(m.clients, id)
			}
			m.mu.Unlock()
			return

		case client := <-m.register:
			m.mu.Lock()
			m.clients[client.ID] = client
			m.mu.Unlock()
			m.logger.Info("🔌 WebSocket: клиент подключен", "session_id", client.ID)

		case client := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[client.ID]; ok {
				delete(m.clients, client.ID)
				close(client.Send)
				m.logger.Info("WebSocket: клиент отключен", "session_id", client.ID)
			}
			m.mu.Unlock()

		case message := <-m.broadcast:
			m.mu.Lock()
			for _, client := range m.clients {
				// Сообщение сессии получает только ее клиент
				if message.SessionID != "" && client.ID != message.SessionID {
					continue
				}

				select {
				case client.Send <- message:
				default:
					// Если канал переполнен - отключаем клиента
					close(client.Send)
					delete(m.clients, client.ID)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Count возвращает число подключенных клиентов
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// RegisterClient регистрирует нового клиента
func (m *Manager) RegisterClient(client *Client) {
	select {
	case m.register <- client:
	case <-m.done:
		close(client.Send)
	}
}

// UnregisterClient отключает клиента
func (m *Manager) UnregisterClient(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
}

// Broadcast отправляет сообщение клиентам
func (m *Manager) Broadcast(message Message) {
	select {
	case m.broadcast <- message:
	case <-m.done:
	}
}

// BroadcastSessionUpdate отправляет новое состояние сессии ее клиенту
func (m *Manager) BroadcastSessionUpdate(sessionID string, session models.Session) {
	m.Broadcast(Message{
		Type:      MessageTypeSessionUpdate,
		SessionID: sessionID,
		Payload:   render.Build(session),
	})
}

// SendError отправляет клиенту ошибку команды. Сессия не меняется
func (m *Manager) SendError(sessionID, errMsg string) {
	m.Broadcast(Message{
		Type:      MessageTypeError,
		SessionID: sessionID,
		Payload: map[string]interface{}{
			"error": errMsg,
		},
	})
}

// ForwardUpdates пересылает переходы сессии клиенту до остановки контроллера
func (c *Client) ForwardUpdates(manager *Manager) {
	for session := range c.controller.Subscribe() {
		manager.BroadcastSessionUpdate(c.ID, session)
	}
}

// ReadPump читает сообщения от клиента
func (c *Client) ReadPump(manager *Manager) {
	defer func() {
		c.cancel()
		manager.UnregisterClient(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(controller.MaxImageSize + 1024)

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				manager.logger.Warn("WebSocket error", "session_id", c.ID, "error", err)
			}
			break
		}

		// Бинарный фрейм - выбранный файл
		if messageType == websocket.BinaryMessage {
			c.controller.SubmitImage(bytes.NewReader(message))
			continue
		}

		if errMsg := c.handleCommand(message); errMsg != "" {
			manager.SendError(c.ID, errMsg)
		}
	}
}

// handleCommand выполняет текстовую команду и возвращает текст ошибки
func (c *Client) handleCommand(message []byte) string {
	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		return "invalid command: " + err.Error()
	}

	switch cmd.Type {
	case CommandUpdateParameter:
		if err := c.controller.UpdateParameter(cmd.Name, commandValue(cmd.Value)); err != nil {
			return err.Error()
		}
	case CommandClearImage:
		c.controller.ClearImage()
	default:
		return "unknown command: " + cmd.Type
	}
	return ""
}

// commandValue принимает и строку, и число: "12" и 12
func commandValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// WritePump отправляет сообщения клиенту
func (c *Client) WritePump(logger *slog.Logger) {
	defer func() {
		c.Conn.Close()
	}()

	for message := range c.Send {
		w, err := c.Conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}

		// Сериализуем сообщение в JSON
		data, err := json.Marshal(message)
		if err != nil {
			logger.Error("ошибка сериализации сообщения", "error", err)
			w.Close()
			continue
		}

		if _, err := w.Write(data); err != nil {
			logger.Warn("ошибка записи в WebSocket", "error", err)
			w.Close()
			return
		}

		if err := w.Close(); err != nil {
			return
		}
	}
}
