// ABOUTME: WebSocket control server for the note player
// ABOUTME: Accepts note and DECPS requests from remote clients and queues them for playback
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-notes/internal/app"
	"github.com/Resonate-Protocol/resonate-notes/internal/discovery"
	"github.com/Resonate-Protocol/resonate-notes/internal/protocol"
	"github.com/Resonate-Protocol/resonate-notes/pkg/decps"
	"github.com/Resonate-Protocol/resonate-notes/pkg/notes"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Error codes sent in server/error
const (
	ErrCodeInvalidMessage  = "invalid_message"
	ErrCodeInvalidNote     = "invalid_note"
	ErrCodeInvalidSequence = "invalid_sequence"
	ErrCodeQueueFull       = "queue_full"
	ErrCodeStopped         = "stopped"
	ErrCodeDuplicateClient = "duplicate_client_id"
	ErrCodeUnknownType     = "unknown_type"
)

// Queue accepts notes for playback
type Queue interface {
	Enqueue(ns []notes.Note) (string, error)
}

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	Debug      bool
}

// Server accepts control connections for one note player
type Server struct {
	config   Config
	serverID string
	queue    Queue

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	clients   map[string]*Client
	clientsMu sync.RWMutex

	mdnsManager *discovery.Manager

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client is a connected controller
type Client struct {
	ID   string
	Name string
	Conn *websocket.Conn

	sendChan chan interface{}
}

// New creates a server that queues requests on queue
func New(config Config, queue Queue) *Server {
	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		queue:    queue,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin != "" {
					log.Printf("Warning: accepting WebSocket from origin: %s", origin)
				}
				return true
			},
		},
		clients:  make(map[string]*Client),
		stopChan: make(chan struct{}),
	}

	s.mux.HandleFunc(protocol.Path, s.handleWebSocket)

	return s
}

// Handler returns the HTTP handler serving the control endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ID returns the server's identifier
func (s *Server) ID() string {
	return s.serverID
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Start serves until Stop is called or the listener fails
func (s *Server) Start() error {
	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        protocol.Path,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("WebSocket server listening on %s%s", addr, protocol.Path)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.beginShutdown()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.drain()
	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// beginShutdown makes new connections and registrations fail
func (s *Server) beginShutdown() {
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()
}

// drain closes registered clients and waits for every connection handler
func (s *Server) drain() {
	// Hijacked connections are not closed by Shutdown
	s.closeClients()
	s.wg.Wait()
}

// track reserves a wait group slot unless shutdown has begun
func (s *Server) track() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()

	if s.isShutdown {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShutdown
}

func (s *Server) closeClients() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		client.Conn.Close()
	}
}

// handleWebSocket upgrades and serves one control connection
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)

	s.handleConnection(conn)
}

// handleConnection runs the handshake and then reads requests until the peer leaves
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	if !s.track() {
		log.Printf("Rejecting connection during shutdown")
		return
	}
	defer s.wg.Done()

	if s.config.Debug {
		log.Printf("[DEBUG] New connection, waiting for handshake")
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	if msg.Type != protocol.TypeClientHello {
		log.Printf("Expected %s, got %s", protocol.TypeClientHello, msg.Type)
		return
	}

	var hello protocol.ClientHello
	if err := protocol.DecodePayload(msg.Payload, &hello); err != nil {
		log.Printf("Error decoding client hello: %v", err)
		return
	}

	if hello.ClientID == "" {
		log.Printf("Client hello missing ClientID")
		return
	}
	if hello.Name == "" {
		log.Printf("Client hello missing Name")
		return
	}

	log.Printf("Client hello: %s (ID: %s, version: %d)", hello.Name, hello.ClientID, hello.Version)

	client := &Client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan interface{}, 100),
	}

	s.clientsMu.Lock()
	// Registering after closeClients ran would leave drain waiting on this peer
	if s.shuttingDown() {
		s.clientsMu.Unlock()
		log.Printf("Rejecting client %s during shutdown", hello.Name)
		return
	}
	if existing, exists := s.clients[hello.ClientID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Client ID %s already connected (name: %s), rejecting duplicate", hello.ClientID, existing.Name)

		errorMsg := protocol.Message{
			Type: protocol.TypeError,
			Payload: protocol.Error{
				Error:   ErrCodeDuplicateClient,
				Message: "Client ID already connected",
			},
		}
		if data, err := json.Marshal(errorMsg); err == nil {
			conn.WriteMessage(websocket.TextMessage, data)
		}
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	writerDone := make(chan struct{})
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()
		close(client.sendChan)
		<-writerDone
		log.Printf("Client disconnected: %s", client.Name)
	}()

	serverHello := protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.Version,
	}
	if err := s.sendMessage(client, protocol.TypeServerHello, serverHello); err != nil {
		log.Printf("Error sending server hello: %v", err)
		close(writerDone)
		return
	}

	go func() {
		defer close(writerDone)
		s.clientWriter(client)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		s.handleClientMessage(client, data)
	}
}

// clientWriter sends queued messages and keepalive pings to the client
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Error marshaling message: %v", err)
				continue
			}
			client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Error writing text message: %v", err)
				drain(client.sendChan)
				return
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				drain(client.sendChan)
				return
			}
		}
	}
}

// drain discards messages until the channel is closed
func drain(ch <-chan interface{}) {
	for range ch {
	}
}

// handleClientMessage processes one request from a client
func (s *Server) handleClientMessage(client *Client, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		s.sendError(client, ErrCodeInvalidMessage, err.Error())
		return
	}

	if s.config.Debug {
		log.Printf("[DEBUG] %s from %s", msg.Type, client.Name)
	}

	switch msg.Type {
	case protocol.TypePlayNotes:
		s.handlePlayNotes(client, msg.Payload)
	case protocol.TypePlayDECPS:
		s.handlePlayDECPS(client, msg.Payload)
	default:
		log.Printf("Unknown message type: %s", msg.Type)
		s.sendError(client, ErrCodeUnknownType, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

// handlePlayNotes validates and queues a list of notes
func (s *Server) handlePlayNotes(client *Client, payload interface{}) {
	var req protocol.PlayNotes
	if err := protocol.DecodePayload(payload, &req); err != nil {
		s.sendError(client, ErrCodeInvalidMessage, err.Error())
		return
	}

	ns := make([]notes.Note, 0, len(req.Notes))
	for i, spec := range req.Notes {
		if err := spec.Validate(); err != nil {
			s.sendError(client, ErrCodeInvalidNote, fmt.Sprintf("note %d: %v", i, err))
			return
		}
		ns = append(ns, spec.Note())
	}

	s.enqueue(client, ns)
}

// handlePlayDECPS parses and queues a DECPS sequence
func (s *Server) handlePlayDECPS(client *Client, payload interface{}) {
	var req protocol.PlayDECPS
	if err := protocol.DecodePayload(payload, &req); err != nil {
		s.sendError(client, ErrCodeInvalidMessage, err.Error())
		return
	}

	seq, err := decps.Parse(req.Sequence)
	if err != nil {
		s.sendError(client, ErrCodeInvalidSequence, err.Error())
		return
	}

	s.enqueue(client, seq.Expand())
}

func (s *Server) enqueue(client *Client, ns []notes.Note) {
	id, err := s.queue.Enqueue(ns)
	if err != nil {
		code := ErrCodeStopped
		if errors.Is(err, app.ErrQueueFull) {
			code = ErrCodeQueueFull
		}
		log.Printf("Rejected request from %s: %v", client.Name, err)
		s.sendError(client, code, err.Error())
		return
	}

	var total time.Duration
	for _, n := range ns {
		total += n.Duration
	}

	log.Printf("Queued %d notes from %s (request %s, %v)", len(ns), client.Name, id, total)

	if err := s.sendMessage(client, protocol.TypeQueued, protocol.Queued{
		RequestID:  id,
		Count:      len(ns),
		DurationMs: total.Milliseconds(),
	}); err != nil {
		log.Printf("Error sending queued ack: %v", err)
	}
}

func (s *Server) sendError(client *Client, code, message string) {
	if err := s.sendMessage(client, protocol.TypeError, protocol.Error{
		Error:   code,
		Message: message,
	}); err != nil {
		log.Printf("Error sending error to %s: %v", client.Name, err)
	}
}

// sendMessage queues a JSON message for the client's writer
func (s *Server) sendMessage(client *Client, msgType string, payload interface{}) error {
	msg := protocol.Message{
		Type:    msgType,
		Payload: payload,
	}

	select {
	case client.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}
