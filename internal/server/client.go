package server

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/tabletop/internal/core/observability/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// client pumps envelopes between one websocket and its room. The room owns
// the send channel and closes it when the client leaves.
type client struct {
	id     string
	conn   *websocket.Conn
	room   *Room
	send   chan Envelope
	limit  rateLimit
	logger log.Log
}

func newClient(id string, conn *websocket.Conn, room *Room, commandRate int, logger log.Log) *client {
	return &client{
		id:     id,
		conn:   conn,
		room:   room,
		send:   make(chan Envelope, sendBuffer),
		limit:  newRateLimit(commandRate),
		logger: logger.With(log.String("client", id), log.String("room", room.ID())),
	}
}

// readPump forwards inbound envelopes to the room until the connection
// fails or the room stops.
func (c *client) readPump(readLimit int64) {
	defer func() {
		c.room.Leave(c)
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("Close after read failed", log.Error(err))
		}
	}()

	c.conn.SetReadLimit(readLimit)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("Failed to set read deadline", log.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info("Websocket read failed", log.Error(err))
			}
			return
		}
		if err := c.room.Submit(c, env); err != nil {
			return
		}
	}
}

// writePump drains the send channel and keeps the connection alive with
// pings. A closed channel ends the session with a close frame.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("Close after write failed", log.Error(err))
		}
	}()

	for {
		select {
		case env, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Failed to set write deadline", log.Error(err))
			}
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
					c.logger.Debug("Write close message failed", log.Error(err))
				}
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Debug("Write envelope failed", log.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Failed to set ping write deadline", log.Error(err))
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Ping failed", log.Error(err))
				return
			}
		}
	}
}
