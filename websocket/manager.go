package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"wifizen/auth"
	"wifizen/feed"

	"github.com/gorilla/websocket"
)

// Manager pushes every synchronized feed snapshot to all connected
// clients. Clients never mutate through the socket; writes go through
// the HTTP surface and come back as a fresh snapshot.
type Manager struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu       sync.RWMutex
	lastFeed []byte
}

type Client struct {
	conn    *websocket.Conn
	uid     string
	send    chan []byte
	manager *Manager
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (m *Manager) Start() {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			m.clients[client] = true
			last := m.lastFeed
			m.mu.Unlock()
			if last != nil {
				client.send <- last
			}
			log.Printf("websocket client registered, total: %d", m.clientCount())

		case client := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
			}
			m.mu.Unlock()
			log.Printf("websocket client unregistered, total: %d", m.clientCount())

		case message := <-m.broadcast:
			m.mu.Lock()
			for client := range m.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(m.clients, client)
				}
			}
			m.mu.Unlock()
		}
	}
}

// BroadcastFeed sends the ordered feed to every client. New clients get
// the latest snapshot on connect.
func (m *Manager) BroadcastFeed(entries []feed.Entry) {
	msg, err := json.Marshal(map[string]any{
		"type":    "feed",
		"payload": entries,
	})
	if err != nil {
		log.Printf("error marshaling feed message: %v", err)
		return
	}
	m.mu.Lock()
	m.lastFeed = msg
	m.mu.Unlock()
	m.broadcast <- msg
}

// BroadcastSyncCancelled tells clients the live feed stopped. No
// resubscription is attempted.
func (m *Manager) BroadcastSyncCancelled(err error) {
	msg, marshalErr := json.Marshal(map[string]any{
		"type":    "sync_cancelled",
		"payload": map[string]any{"reason": err.Error()},
	})
	if marshalErr != nil {
		return
	}
	m.broadcast <- msg
}

func (m *Manager) clientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler upgrades the connection after validating the session token
// from the query string.
func Handler(manager *Manager, authSvc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		uid, err := authSvc.ParseToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}

		client := &Client{
			conn:    conn,
			uid:     uid,
			send:    make(chan []byte, 256),
			manager: manager,
		}
		manager.register <- client

		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.manager.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			break
		}

		var data map[string]any
		if err := json.Unmarshal(message, &data); err != nil {
			continue
		}
		if data["type"] == "ping" {
			c.sendPong()
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendPong() {
	msg, err := json.Marshal(map[string]any{
		"type":    "pong",
		"payload": map[string]any{"time": time.Now().Unix()},
	})
	if err != nil {
		return
	}
	c.send <- msg
}
