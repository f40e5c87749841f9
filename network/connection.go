// network/connection.go
package network

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type Connection interface {
	Send(msg Message) error
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
	ReadRequest() (*Request, error)
}

type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
	heartbeat time.Duration
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

// Send writes msg as one JSON text frame.
func (c *WSConnection) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Name, err)
	}

	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ReadRequest blocks for the next frame. A frame that is not a valid envelope
// is returned as ErrMalformed so the caller can answer and keep reading.
func (c *WSConnection) ReadRequest() (*Request, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if c.heartbeat > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.heartbeat * 2))
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil || req.Name == "" {
		return nil, ErrMalformed
	}
	return &req, nil
}

func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	c.heartbeat = interval
	_ = c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	})
}

// Ping sends a control ping; the pong handler extends the read deadline.
func (c *WSConnection) Ping() error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
