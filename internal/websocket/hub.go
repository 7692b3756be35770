// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

// Package websocket maintains the registry of authenticated streaming
// channels and delivers change events to them.
//
// Delivery is owner-scoped: every client is registered under its
// authenticated principal's id, and an event for one owner is only ever
// written to that owner's connections. There is no global broadcast of
// record changes.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/pulsetrack/pulsetrack/internal/logging"
	"github.com/pulsetrack/pulsetrack/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung shutdown operation.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Control message types exchanged with clients. Record change events use
// their own typed names ("sleepUpdate", "moodUpdate", "workoutUpdate").
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is one WebSocket frame: a typed name plus payload.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ownedMessage pairs a message with the owner it belongs to.
type ownedMessage struct {
	uid string
	msg Message
}

// Hub maintains the set of active clients, indexed by owner, and routes
// owner-scoped messages to them.
type Hub struct {
	clients    map[*Client]bool
	byOwner    map[string]map[*Client]bool
	deliver    chan ownedMessage
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		deliver:    make(chan ownedMessage, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		byOwner:    make(map[string]map[*Client]bool),
	}
}

// RunWithContext runs the hub until the context is canceled. Designed for
// suture supervision: on cancellation all clients are closed and ctx.Err()
// is returned so the supervisor sees a clean stop.
//
// Selection is priority-based because Go's select picks randomly among ready
// channels: shutdown first, then client lifecycle, then delivery. Client
// state is therefore always settled before a message is routed.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: shutdown.
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: client lifecycle.
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		// Priority 3: delivery, or block until any event arrives.
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case om := <-h.deliver:
			h.deliverToOwner(om)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	owned, ok := h.byOwner[client.uid]
	if !ok {
		owned = make(map[*Client]bool)
		h.byOwner[client.uid] = owned
	}
	owned[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.RecordWSConnection(true)
	logging.Info().
		Str("uid", client.uid).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	removed := h.removeClientLocked(client)
	total := len(h.clients)
	h.mu.Unlock()

	if removed {
		metrics.RecordWSConnection(false)
		logging.Info().
			Str("uid", client.uid).
			Int("total_clients", total).
			Msg("websocket client disconnected")
	}
}

// removeClientLocked deletes the client from both indexes and closes its
// send channel. Caller holds h.mu. Reports whether the client was present.
func (h *Hub) removeClientLocked(client *Client) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	close(client.send)
	if owned, ok := h.byOwner[client.uid]; ok {
		delete(owned, client)
		if len(owned) == 0 {
			delete(h.byOwner, client.uid)
		}
	}
	return true
}

// deliverToOwner writes the message to every connection of one owner, in
// client-id order for deterministic delivery. Clients whose send buffer is
// full are dropped; fanout is fire-and-forget with no backpressure.
func (h *Hub) deliverToOwner(om ownedMessage) {
	h.mu.Lock()

	owned := h.byOwner[om.uid]
	if len(owned) == 0 {
		h.mu.Unlock()
		return
	}

	clients := make([]*Client, 0, len(owned))
	for client := range owned {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var dropped []*Client
	for _, client := range clients {
		select {
		case client.send <- om.msg:
			metrics.WSMessagesSent.Inc()
		default:
			metrics.WSMessagesDropped.Inc()
			if h.removeClientLocked(client) {
				dropped = append(dropped, client)
			}
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	// Dropped clients get the same accounting as a normal disconnect.
	for _, client := range dropped {
		metrics.RecordWSConnection(false)
		logging.Warn().
			Str("uid", client.uid).
			Int("total_clients", total).
			Msg("websocket client dropped, send buffer full")
	}
}

// DeliverToOwner queues a typed message for one owner's connections.
// Non-blocking: if the hub's queue is full the message is dropped and
// counted, never retried.
func (h *Hub) DeliverToOwner(uid, messageType string, data any) {
	om := ownedMessage{
		uid: uid,
		msg: Message{Type: messageType, Data: data},
	}

	select {
	case h.deliver <- om:
	default:
		metrics.WSMessagesDropped.Inc()
		logging.Warn().
			Str("message_type", messageType).
			Str("uid", uid).
			Msg("delivery queue full, dropping message")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CountForOwner returns the number of connections held by one owner.
func (h *Hub) CountForOwner(uid string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byOwner[uid])
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllClients closes every connection, in id order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.byOwner = make(map[string]map[*Client]bool)
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
