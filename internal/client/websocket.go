// ABOUTME: WebSocket client for the note control protocol
// ABOUTME: Handles connection, handshake, and request/acknowledgement round trips
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-notes/internal/protocol"
	"github.com/Resonate-Protocol/resonate-notes/pkg/decps"
	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned when sending on a closed client
var ErrNotConnected = errors.New("not connected")

// ServerError is a server/error reply
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
}

// Config holds client configuration
type Config struct {
	// ServerAddr is host:port, or a full ws:// URL
	ServerAddr string
	ClientID   string
	Name       string

	// Timeout bounds each handshake and request round trip (default: 5s)
	Timeout time.Duration
}

// Client sends note requests to a player
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.Mutex

	server    protocol.ServerHello
	connected bool
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	return &Client{config: config}
}

// endpoint resolves ServerAddr to a WebSocket URL
func (c *Client) endpoint() (string, error) {
	if u, err := url.Parse(c.config.ServerAddr); err == nil && (u.Scheme == "ws" || u.Scheme == "wss") {
		if u.Path == "" {
			u.Path = protocol.Path
		}
		return u.String(), nil
	}

	if c.config.ServerAddr == "" {
		return "", fmt.Errorf("server address is empty")
	}

	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: protocol.Path}
	return u.String(), nil
}

// Connect establishes WebSocket connection and performs handshake
func (c *Client) Connect() error {
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}
	log.Printf("Connecting to %s", endpoint)

	dialer := websocket.Dialer{HandshakeTimeout: c.config.Timeout}
	conn, _, err := dialer.Dial(endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	return nil
}

// handshake performs the protocol handshake
func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  protocol.Version,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var server protocol.ServerHello
	if err := c.roundTrip(protocol.TypeClientHello, hello, protocol.TypeServerHello, &server); err != nil {
		return err
	}
	c.server = server

	log.Printf("Handshake complete with %s (ID: %s)", server.Name, server.ServerID)
	return nil
}

// PlayNotes queues notes on the player
func (c *Client) PlayNotes(ns []protocol.NoteSpec) (protocol.Queued, error) {
	return c.request(protocol.TypePlayNotes, protocol.PlayNotes{Notes: ns})
}

// PlayDECPS queues a DECPS sequence on the player
func (c *Client) PlayDECPS(seq decps.Sequence) (protocol.Queued, error) {
	return c.request(protocol.TypePlayDECPS, protocol.PlayDECPS{Sequence: seq.String()})
}

func (c *Client) request(msgType string, payload interface{}) (protocol.Queued, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var queued protocol.Queued
	err := c.roundTrip(msgType, payload, protocol.TypeQueued, &queued)
	return queued, err
}

// roundTrip sends one message and waits for the expected reply. c.mu must be held.
func (c *Client) roundTrip(msgType string, payload interface{}, replyType string, reply interface{}) error {
	if !c.connected {
		return ErrNotConnected
	}

	deadline := time.Now().Add(c.config.Timeout)
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(protocol.Message{Type: msgType, Payload: payload}); err != nil {
		return fmt.Errorf("failed to send %s: %w", msgType, err)
	}

	c.conn.SetReadDeadline(deadline)
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", replyType, err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", replyType, err)
	}

	switch msg.Type {
	case replyType:
		return protocol.DecodePayload(msg.Payload, reply)
	case protocol.TypeError:
		var serverErr protocol.Error
		if err := protocol.DecodePayload(msg.Payload, &serverErr); err != nil {
			return err
		}
		return &ServerError{Code: serverErr.Error, Message: serverErr.Message}
	default:
		return fmt.Errorf("expected %s, got %s", replyType, msg.Type)
	}
}

// Server returns the server/hello received during the handshake
func (c *Client) Server() protocol.ServerHello {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
