// PulseTrack - Personal Wellness Tracking and Real-Time Sync
// Copyright 2026 PulseTrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsetrack/pulsetrack

package store

import (
	"context"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/pulsetrack/pulsetrack/internal/metrics"
	"github.com/pulsetrack/pulsetrack/internal/records"
)

// Aggregate buckets the owner's records of one kind into calendar days over
// a trailing period and reports per-day count and mean of the kind's metric
// (hours, level, duration), trend ascending by day.
//
// The reported average is the mean of the per-day bucket means, not a pooled
// mean over raw entries: a day with one record weighs the same as a day with
// five. Count is the total number of raw entries in the window.
func (s *RecordStore) Aggregate(ctx context.Context, kind records.Kind, uid string, period records.Period, now time.Time) (records.Stats, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("aggregate", time.Since(start)) }()

	since := period.Since(now)

	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[string]*bucket)
	total := 0

	err := s.forEachOwned(kind, uid, func(rec records.Record) error {
		if rec.Meta().Date.Before(since) {
			return nil
		}
		day := rec.Meta().Date.DayKey()
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
		}
		b.sum += rec.MetricValue()
		b.count++
		total++
		return nil
	})
	if err != nil {
		return records.Stats{}, err
	}

	trend := make([]records.TrendPoint, 0, len(buckets))
	for day, b := range buckets {
		trend = append(trend, records.TrendPoint{
			Date:    day,
			Average: b.sum / float64(b.count),
			Count:   b.count,
		})
	}
	sort.Slice(trend, func(i, j int) bool { return trend[i].Date < trend[j].Date })

	stats := records.Stats{Count: total, Trend: trend}
	if len(trend) > 0 {
		sum := 0.0
		for _, p := range trend {
			sum += p.Average
		}
		stats.Average = round(sum/float64(len(trend)), 2)
	}
	return stats, nil
}

// WorkoutSummary groups the owner's workouts by type over a trailing period,
// reporting session count, total duration, and average duration per type,
// ordered by type name.
func (s *RecordStore) WorkoutSummary(ctx context.Context, uid string, period records.Period, now time.Time) ([]records.TypeSummary, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOperation("aggregate", time.Since(start)) }()

	since := period.Since(now)

	type group struct {
		total    float64
		sessions int
	}
	groups := make(map[string]*group)

	err := s.forEachOwned(records.KindWorkout, uid, func(rec records.Record) error {
		if rec.Meta().Date.Before(since) {
			return nil
		}
		w := rec.(*records.Workout)
		g, ok := groups[w.Type]
		if !ok {
			g = &group{}
			groups[w.Type] = g
		}
		g.total += w.Duration
		g.sessions++
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary := make([]records.TypeSummary, 0, len(groups))
	for typ, g := range groups {
		summary = append(summary, records.TypeSummary{
			Type:          typ,
			TotalDuration: g.total,
			Sessions:      g.sessions,
			AvgDuration:   round(g.total/float64(g.sessions), 1),
		})
	}
	sort.Slice(summary, func(i, j int) bool { return summary[i].Type < summary[j].Type })
	return summary, nil
}

// forEachOwned streams the owner's records of one kind through fn.
func (s *RecordStore) forEachOwned(kind records.Kind, uid string, fn func(records.Record) error) error {
	prefix := recordPrefix(kind, uid)
	return s.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = prefix
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec, err := records.Decode(kind, val)
				if err != nil {
					return err
				}
				return fn(rec)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
