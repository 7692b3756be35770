// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

// Package capture bridges the change-event stream to the websocket hub.
//
// One pump goroutine runs per record kind. Each pump forwards every decoded
// change to the owner named in the event; an event for one owner never
// reaches another owner's connections. A pump whose feed ends logs the fact
// and terminates without restart: live updates for that kind stop until the
// process restarts, while the HTTP API keeps serving. Clients are expected
// to refetch on reconnect.
package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/pulsetrack/pulsetrack/internal/logging"
	"github.com/pulsetrack/pulsetrack/internal/records"
)

// ChangeFeed is the source of decoded change events, one subscription per
// record kind. Satisfied by events.Subscriber.
type ChangeFeed interface {
	SubscribeKind(ctx context.Context, kind records.Kind) (<-chan records.ChangeEvent, error)
}

// Deliverer routes a typed message to a single owner's connections.
// Satisfied by websocket.Hub.
type Deliverer interface {
	DeliverToOwner(uid, messageType string, data any)
}

// UpdatePayload is the data half of a "{kind}Update" websocket message.
// For creates and updates Data is the full record; for deletes it only
// carries the record id.
type UpdatePayload struct {
	Action records.Action `json:"action"`
	Data   any            `json:"data"`
}

// Bridge subscribes to every record kind and fans changes out to the hub.
type Bridge struct {
	feed    ChangeFeed
	hub     Deliverer
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewBridge creates a change-to-websocket bridge.
func NewBridge(feed ChangeFeed, hub Deliverer) *Bridge {
	return &Bridge{
		feed:   feed,
		hub:    hub,
		stopCh: make(chan struct{}),
	}
}

// Start subscribes to all record kinds and begins forwarding. It fails fast
// if any subscription cannot be established; a feed that dies later does not
// surface here.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = true
	b.mu.Unlock()

	for _, kind := range records.Kinds {
		events, err := b.feed.SubscribeKind(ctx, kind)
		if err != nil {
			return fmt.Errorf("subscribe %s feed: %w", kind, err)
		}
		b.wg.Add(1)
		go b.pump(ctx, kind, events)
	}

	logging.Info().Int("kinds", len(records.Kinds)).Msg("change capture bridge started")
	return nil
}

// Stop stops the bridge and waits for all pumps to drain.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.mu.Unlock()

	close(b.stopCh)
	b.wg.Wait()
	logging.Info().Msg("change capture bridge stopped")
}

// pump forwards one kind's change events until the feed closes or the bridge
// stops. A closed feed terminates the pump permanently.
func (b *Bridge) pump(ctx context.Context, kind records.Kind, events <-chan records.ChangeEvent) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				logging.Warn().
					Str("kind", string(kind)).
					Msg("change feed ended, live updates for this kind stopped")
				return
			}
			b.forward(ev)
		}
	}
}

// forward translates a change event into its "{kind}Update" message.
func (b *Bridge) forward(ev records.ChangeEvent) {
	b.hub.DeliverToOwner(ev.UID, ev.EventName(), UpdatePayload{
		Action: ev.Action,
		Data:   ev.Data,
	})
}
