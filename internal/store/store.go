// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

// Package store persists wellness records in Badger and publishes one change
// event per committed mutation.
//
// Key layout:
//
//	rec:{kind}:{uid}:{id}        -> record JSON
//	uniq:{kind}:{uid}:{dayKey}   -> record id   (sleep, mood)
//	uniq:{kind}:{uid}:{dayKey}:{type} -> record id   (workout)
//
// The uniq entry is written in the same transaction as the record, so
// Badger's conflict detection is the linearization point for concurrent
// identical creates: the pre-check inside the transaction is a fast path,
// and a racer that passes it still loses at commit with the same ErrConflict.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/pulsetrack/pulsetrack/internal/logging"
	"github.com/pulsetrack/pulsetrack/internal/metrics"
	"github.com/pulsetrack/pulsetrack/internal/records"
)

// ChangePublisher receives one event per committed mutation. The store never
// fails a mutation because publishing failed; the error is logged and the
// write stands.
type ChangePublisher interface {
	PublishChange(ctx context.Context, ev records.ChangeEvent) error
}

// NopPublisher discards change events. Used when fanout is disabled and in
// tests that only exercise persistence.
type NopPublisher struct{}

// PublishChange implements ChangePublisher.
func (NopPublisher) PublishChange(context.Context, records.ChangeEvent) error { return nil }

// Config holds store settings.
type Config struct {
	// Dir is the Badger data directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps all data in memory. For tests.
	InMemory bool

	// GCInterval is how often the value log garbage collector runs.
	// Zero disables collection.
	GCInterval time.Duration
}

// DefaultConfig returns store defaults.
func DefaultConfig() Config {
	return Config{
		Dir:        "./data/records",
		GCInterval: 10 * time.Minute,
	}
}

// RecordStore is the uniqueness-enforcing persistence layer for all three
// record kinds.
type RecordStore struct {
	db        *badger.DB
	publisher ChangePublisher
	logger    zerolog.Logger
	stopGC    chan struct{}
}

// Open opens the Badger database and starts the value log GC loop. The
// publisher must not be nil; pass NopPublisher to disable fanout.
func Open(cfg Config, publisher ChangePublisher) (*RecordStore, error) {
	if publisher == nil {
		return nil, fmt.Errorf("change publisher required")
	}

	opts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", cfg.Dir, err)
	}

	s := &RecordStore{
		db:        db,
		publisher: publisher,
		logger:    logging.With().Str("component", "store").Logger(),
		stopGC:    make(chan struct{}),
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.runValueLogGC(cfg.GCInterval)
	}
	return s, nil
}

// Close stops background work and closes the database.
func (s *RecordStore) Close() error {
	close(s.stopGC)
	return s.db.Close()
}

func (s *RecordStore) runValueLogGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// Repeat while a GC cycle actually rewrites a file.
			for s.db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}

func recordKey(kind records.Kind, uid, id string) []byte {
	return []byte("rec:" + kind.String() + ":" + uid + ":" + id)
}

func recordPrefix(kind records.Kind, uid string) []byte {
	return []byte("rec:" + kind.String() + ":" + uid + ":")
}

func uniqueKey(rec records.Record) []byte {
	m := rec.Meta()
	return []byte("uniq:" + rec.Kind().String() + ":" + m.UID + ":" + rec.UniqueKey())
}

// Create inserts a new record, enforcing the per-owner uniqueness key. The
// in-transaction existence check is advisory; the transaction commit is the
// authoritative guard, and both paths report ErrConflict.
func (s *RecordStore) Create(ctx context.Context, rec records.Record) error {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("create", time.Since(start)) }()

	if err := rec.Validate(); err != nil {
		return err
	}
	data, err := records.Encode(rec)
	if err != nil {
		return err
	}

	meta := rec.Meta()
	ukey := uniqueKey(rec)

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(ukey)
		if err == nil {
			return ErrConflict
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check unique key: %w", err)
		}
		if err := txn.Set(ukey, []byte(meta.ID)); err != nil {
			return fmt.Errorf("set unique key: %w", err)
		}
		if err := txn.Set(recordKey(rec.Kind(), meta.UID, meta.ID), data); err != nil {
			return fmt.Errorf("set record: %w", err)
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		// Lost the commit race against an identical create.
		err = ErrConflict
	}
	if err != nil {
		metrics.RecordStoreMutation(rec.Kind().String(), "create", mutationResult(err))
		return err
	}

	metrics.RecordStoreMutation(rec.Kind().String(), "create", "ok")
	s.publish(ctx, records.ChangeEvent{
		Kind:   rec.Kind(),
		Action: records.ActionCreate,
		UID:    meta.UID,
		Data:   rec,
	})
	return nil
}

// Get loads a single record scoped by id and owner.
func (s *RecordStore) Get(ctx context.Context, kind records.Kind, uid, id string) (records.Record, error) {
	var rec records.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(kind, uid, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}
		return item.Value(func(val []byte) error {
			rec, err = records.Decode(kind, val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns the owner's records of one kind, newest date first, with
// optional date range filtering and pagination.
func (s *RecordStore) List(ctx context.Context, kind records.Kind, uid string, opts records.ListOptions) ([]records.Record, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("list", time.Since(start)) }()

	opts = opts.Normalize()

	var recs []records.Record
	err := s.forEachOwned(kind, uid, func(rec records.Record) error {
		date := rec.Meta().Date.Time
		if !opts.StartDate.IsZero() && date.Before(opts.StartDate) {
			return nil
		}
		if !opts.EndDate.IsZero() && date.After(opts.EndDate) {
			return nil
		}
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(recs, func(i, j int) bool {
		di, dj := recs[i].Meta().Date.Time, recs[j].Meta().Date.Time
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return recs[i].Meta().ID < recs[j].Meta().ID
	})

	low := (opts.Page - 1) * opts.Limit
	if low >= len(recs) {
		return []records.Record{}, nil
	}
	high := low + opts.Limit
	if high > len(recs) {
		high = len(recs)
	}
	return recs[low:high], nil
}

// Update applies a partial field replace to an owned record. A missing id or
// a foreign owner both yield ErrNotFound. When the patch moves the record to
// a different uniqueness key, the new key must be free.
func (s *RecordStore) Update(ctx context.Context, kind records.Kind, uid, id string, patch map[string]any, now time.Time) (records.Record, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("update", time.Since(start)) }()

	var updated records.Record
	err := s.db.Update(func(txn *badger.Txn) error {
		key := recordKey(kind, uid, id)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}

		var rec records.Record
		if err := item.Value(func(val []byte) error {
			rec, err = records.Decode(kind, val)
			return err
		}); err != nil {
			return err
		}

		oldUnique := uniqueKey(rec)
		if err := records.Patch(rec, patch, now); err != nil {
			return err
		}
		newUnique := uniqueKey(rec)

		if string(oldUnique) != string(newUnique) {
			if _, err := txn.Get(newUnique); err == nil {
				return ErrConflict
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("check unique key: %w", err)
			}
			if err := txn.Delete(oldUnique); err != nil {
				return fmt.Errorf("delete unique key: %w", err)
			}
			if err := txn.Set(newUnique, []byte(id)); err != nil {
				return fmt.Errorf("set unique key: %w", err)
			}
		}

		data, err := records.Encode(rec)
		if err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set record: %w", err)
		}
		updated = rec
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		err = ErrConflict
	}
	if err != nil {
		metrics.RecordStoreMutation(kind.String(), "update", mutationResult(err))
		return nil, err
	}

	metrics.RecordStoreMutation(kind.String(), "update", "ok")
	s.publish(ctx, records.ChangeEvent{
		Kind:   kind,
		Action: records.ActionUpdate,
		UID:    uid,
		Data:   updated,
	})
	return updated, nil
}

// Delete removes an owned record. A missing id or a foreign owner both yield
// ErrNotFound.
func (s *RecordStore) Delete(ctx context.Context, kind records.Kind, uid, id string) error {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("delete", time.Since(start)) }()

	err := s.db.Update(func(txn *badger.Txn) error {
		key := recordKey(kind, uid, id)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}

		var rec records.Record
		if err := item.Value(func(val []byte) error {
			rec, err = records.Decode(kind, val)
			return err
		}); err != nil {
			return err
		}

		if err := txn.Delete(uniqueKey(rec)); err != nil {
			return fmt.Errorf("delete unique key: %w", err)
		}
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.RecordStoreMutation(kind.String(), "delete", mutationResult(err))
		return err
	}

	metrics.RecordStoreMutation(kind.String(), "delete", "ok")
	s.publish(ctx, records.ChangeEvent{
		Kind:   kind,
		Action: records.ActionDelete,
		UID:    uid,
		Data:   records.DeleteData{ID: id},
	})
	return nil
}

// publish sends the change event for a committed mutation. Failures are
// logged, never propagated: the write already stands.
func (s *RecordStore) publish(ctx context.Context, ev records.ChangeEvent) {
	if err := s.publisher.PublishChange(ctx, ev); err != nil {
		s.logger.Error().
			Err(err).
			Str("kind", ev.Kind.String()).
			Str("action", string(ev.Action)).
			Str("uid", ev.UID).
			Msg("change event publish failed")
	}
}

func mutationResult(err error) string {
	switch {
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func round(v float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(v*shift) / shift
}
