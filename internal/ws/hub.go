package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"support-chat/internal/models"
	"support-chat/internal/observability"
)

// LobbyRoom receives chat-list updates for every connected admin.
const LobbyRoom = "lobby"

const writeWait = 10 * time.Second

// ChatRoom names the room carrying one chat thread.
func ChatRoom(chatID string) string {
	return "chat:" + chatID
}

// Relay forwards events to other service instances.
type Relay interface {
	Publish(ctx context.Context, room string, event models.ChatEvent) error
}

type client struct {
	conn *websocket.Conn
	info ConnInfo
	// gorilla connections allow one concurrent writer
	mu sync.Mutex
}

// Hub maintains active websocket rooms.
type Hub struct {
	rooms  map[string]map[*websocket.Conn]*client
	relay  Relay
	logger zerolog.Logger
	mu     sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*websocket.Conn]*client),
		logger: logger,
	}
}

// SetRelay enables cross-instance fan-out.
func (h *Hub) SetRelay(relay Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = relay
}

// AddClient registers a websocket connection to a room.
func (h *Hub) AddClient(room string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*websocket.Conn]*client)
	}
	h.rooms[room][conn] = &client{conn: conn, info: info}
}

// RemoveClient removes a websocket connection from a room.
func (h *Hub) RemoveClient(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[room]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// RoomSize reports how many connections a room holds.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ChatUpdated tells admins and the chat's own room that chat changed.
func (h *Hub) ChatUpdated(chat models.Chat) {
	event := models.ChatEvent{Type: models.EventChatUpdated, ChatID: chat.ID, Chat: &chat}
	h.dispatch(LobbyRoom, event)
	h.dispatch(ChatRoom(chat.ID), event)
}

// MessageAppended pushes msg to the thread and re-sorts the admin list.
func (h *Hub) MessageAppended(chat models.Chat, msg models.Message) {
	h.dispatch(ChatRoom(chat.ID), models.ChatEvent{Type: models.EventMessage, ChatID: chat.ID, Message: &msg})
	h.dispatch(LobbyRoom, models.ChatEvent{Type: models.EventChatUpdated, ChatID: chat.ID, Chat: &chat})
}

func (h *Hub) dispatch(room string, event models.ChatEvent) {
	h.Deliver(room, event)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay == nil {
		return
	}
	if err := relay.Publish(context.Background(), room, event); err != nil {
		h.logger.Warn().Err(err).Str("room", room).Msg("relay publish failed")
	}
}

// Deliver sends event to the connections of room on this instance only.
func (h *Hub) Deliver(room string, event models.ChatEvent) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("room", room).Msg("encode websocket event")
		return
	}
	for _, c := range clients {
		if err := c.write(payload); err != nil {
			h.logger.Debug().Err(err).Str("room", room).Str("conn_id", c.info.ConnID).Msg("websocket write error")
			c.conn.Close()
			h.RemoveClient(room, c.conn)
			h.publishWSError(room, c.info, err)
		}
	}
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Hub) publishWSError(room string, info ConnInfo, err error) {
	_ = observability.PublishEvent(context.Background(), wsRoutingKey(info.Kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   wsPayload(room, "ws_error", info, err.Error()),
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
	observability.IncWSEvent(info.Kind, "ws_error")
}

func wsPayload(room, event string, info ConnInfo, reason string) observability.WSEventPayload {
	var duration int64
	if !info.ConnectedAt.IsZero() {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	return observability.WSEventPayload{
		WS: observability.WSEventDetails{
			Kind:       info.Kind,
			ResourceID: room,
			Event:      event,
			ConnID:     info.ConnID,
			DurationMS: duration,
			Reason:     reason,
		},
		Identity: observability.WSIdentity{
			AdminID:  info.AdminID,
			DeviceID: info.DeviceID,
			IP:       info.IP,
		},
	}
}

func wsRoutingKey(kind string) string {
	if kind == KindVisitor {
		return "ws_events.support.visitors"
	}
	return "ws_events.support.admins"
}
