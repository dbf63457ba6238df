package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/classpulse/backend/internal/apperr"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// Client is a single WebSocket connection in the session.
type Client struct {
	ID      string
	hub     *Hub
	session Session
	conn    *websocket.Conn
	logger  *zap.Logger

	sendMu sync.Mutex
	closed bool
	send   chan WSMessage
}

// ServeWs handles the WebSocket upgrade and runs the client loop. Identity
// arrives afterwards in the session:join event, not in the upgrade request.
func ServeWs(hub *Hub, session Session, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:      uuid.NewString(),
			hub:     hub,
			session: session,
			conn:    conn,
			logger:  logger,
			send:    make(chan WSMessage, 256),
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

// enqueue queues a message for the write pump, dropping it if the buffer is
// full or the connection is closing.
func (c *Client) enqueue(msg WSMessage) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		// buffer full, skip
	}
}

// close stops the write pump after queued messages flush.
func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.session.Leave(c.ID)
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		ctx := context.Background()
		switch msg.Event {
		case EventJoin:
			var p JoinPayload
			_ = json.Unmarshal(msg.Data, &p)
			err := c.session.Join(ctx, c.ID, p)
			c.ack(msg.Ref, err)
			if errors.Is(err, ErrKicked) {
				c.close()
				return
			}
		case EventCreatePoll:
			var p CreatePollPayload
			_ = json.Unmarshal(msg.Data, &p)
			c.ack(msg.Ref, c.session.CreatePoll(ctx, c.ID, p))
		case EventVote:
			var p VotePayload
			_ = json.Unmarshal(msg.Data, &p)
			c.ack(msg.Ref, c.session.SubmitVote(ctx, c.ID, p))
		case EventKick:
			var p KickPayload
			_ = json.Unmarshal(msg.Data, &p)
			c.ack(msg.Ref, c.session.Kick(c.ID, p))
		case EventChatSend:
			var p ChatPayload
			_ = json.Unmarshal(msg.Data, &p)
			c.ack(msg.Ref, c.session.SendChat(c.ID, p))
		case EventRequestState:
			c.session.PushState(ctx, c.ID)
		default:
			// ignore
		}
	}
}

// ack reports the outcome of one request back to this client. Failures are
// additionally pushed as app:error, matching the parallel error notice the
// UI listens for.
func (c *Client) ack(ref string, err error) {
	if err == nil {
		c.sendJSON(EventAck, AckPayload{Ref: ref, OK: true})
		return
	}
	message := apperr.MessageOf(err, "something went wrong")
	if errors.Is(err, ErrKicked) {
		message = "you were removed from the session"
	} else {
		c.sendJSON(EventError, ErrorPayload{Message: message})
	}
	c.sendJSON(EventAck, AckPayload{Ref: ref, OK: false, Message: message})
}

func (c *Client) sendJSON(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.enqueue(WSMessage{Event: event, Data: data})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
