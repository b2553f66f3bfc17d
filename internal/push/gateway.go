package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"paper-trader/internal/infrastructure"
	"paper-trader/internal/model"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TopicTrades carries every committed open/close event.
const TopicTrades = "trades"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Gateway fans trade events out to websocket clients by topic.
type Gateway struct {
	logger        *zap.Logger
	clients       map[*Client]bool
	subscriptions map[string]map[*Client]bool
	mu            sync.RWMutex
}

func NewGateway(logger *zap.Logger) *Gateway {
	return &Gateway{
		logger:        logger,
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

func (g *Gateway) Name() string { return "websocket" }

// Handle implements the dispatcher sink.
func (g *Gateway) Handle(_ context.Context, event model.TradeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal trade event: %w", err)
	}
	g.Publish(TopicTrades, data)
	return nil
}

// Publish sends payload to every subscriber of topic. Slow clients are skipped.
func (g *Gateway) Publish(topic string, payload []byte) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sent := 0
	for c := range g.subscriptions[topic] {
		select {
		case c.send <- payload:
			sent++
		default:
			// Do not block, just drop if channel is full
			infrastructure.EventsDropped.WithLabelValues("websocket_client").Inc()
		}
	}
	return sent
}

func (g *Gateway) Subscribers(topic string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.subscriptions[topic])
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("failed to upgrade websocket", zap.Error(err))
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
	}

	g.mu.Lock()
	g.clients[client] = true
	g.mu.Unlock()
	infrastructure.WSConnections.Inc()

	go g.writePump(client)
	g.readPump(client)
}

func (g *Gateway) readPump(c *Client) {
	defer func() {
		g.mu.Lock()
		delete(g.clients, c)
		for topic, clients := range g.subscriptions {
			delete(clients, c)
			if len(clients) == 0 {
				delete(g.subscriptions, topic)
			}
		}
		close(c.send)
		g.mu.Unlock()
		infrastructure.WSConnections.Dec()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var req struct {
			Action string `json:"action"` // "subscribe", "unsubscribe"
			Topic  string `json:"topic"`
		}
		if err := json.Unmarshal(message, &req); err != nil || req.Topic == "" {
			continue
		}

		g.mu.Lock()
		switch req.Action {
		case "subscribe":
			if g.subscriptions[req.Topic] == nil {
				g.subscriptions[req.Topic] = make(map[*Client]bool)
			}
			g.subscriptions[req.Topic][c] = true
			g.logger.Info("client subscribed to topic", zap.String("topic", req.Topic))
		case "unsubscribe":
			if clients, ok := g.subscriptions[req.Topic]; ok {
				delete(clients, c)
				if len(clients) == 0 {
					delete(g.subscriptions, req.Topic)
				}
			}
		}
		g.mu.Unlock()
	}
}

func (g *Gateway) writePump(c *Client) {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
