package ws

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"hidden_mines/internal/domain"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
	sendBuffer = 256
)

type Client struct {
	Actor domain.Actor
	Conn  *websocket.Conn
	Send  chan []byte

	hub    *Hub
	gameID atomic.Uint64
}

func NewClient(actor domain.Actor, conn *websocket.Conn, hub *Hub, gameID uint64) *Client {
	c := &Client{
		Actor: actor,
		Conn:  conn,
		Send:  make(chan []byte, sendBuffer),
		hub:   hub,
	}
	c.gameID.Store(gameID)
	return c
}

// follows reports whether ev is in the client's subscription.
func (c *Client) follows(ev domain.Event) bool {
	id := c.gameID.Load()
	if id == 0 {
		return true
	}
	return ev.GameID == id
}

func (c *Client) Run() {
	c.hub.Register(c)
	go c.writePump()
	c.reply(MsgReady, ReadyPayload{Actor: c.Actor, GameID: c.gameID.Load()})
	c.readPump()
}

func (c *Client) reply(typ string, data interface{}) {
	msg, err := json.Marshal(Envelope{Type: typ, Data: data})
	if err != nil {
		return
	}
	c.hub.send(c, msg)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(1024)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("read error", "actor", c.Actor.Hex(), "error", err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(MsgError, ErrorPayload{Message: "invalid message"})
			continue
		}
		switch msg.Type {
		case MsgSubscribe:
			c.gameID.Store(msg.Data.GameID)
			c.reply(MsgReady, ReadyPayload{Actor: c.Actor, GameID: msg.Data.GameID})
		case MsgPing:
			c.reply(MsgPong, nil)
		default:
			c.reply(MsgError, ErrorPayload{Message: "unknown message type"})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
