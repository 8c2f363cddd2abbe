// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package eventlog provides the process-wide append-only event log.
//
// # Description
//
// The log is an ordered sequence of tagged events (anomalies, actuations,
// generic messages). Insertion order equals append order; entries are never
// reordered, truncated, or mutated after append. The log is owned explicitly
// by the process and handed to every component that needs it, rather than
// living as package-level global state.
//
// # Thread Safety
//
// Append and Snapshot are safe under concurrent use. Appends from the
// updater and from actuation handlers are already serialized by the sensor
// node's lock; the log's own mutex additionally makes each append atomic, so
// a concurrent Snapshot observes any given event either fully or not at all.
package eventlog

import (
	"sync"

	"github.com/google/uuid"
	"github.com/qbionet/photosynthos/services/sensor/datatypes"
)

// Record is one appended event plus the identity the log assigned to it.
type Record struct {
	// ID is a stable UUID assigned at append time.
	ID string

	// Seq is the 1-based append-order sequence number.
	Seq uint64

	// Event is the concrete appended event.
	Event datatypes.Event
}

// Envelope converts the record into its boundary serialization shape.
func (r Record) Envelope() (datatypes.EventEnvelope, error) {
	return datatypes.NewEnvelope(r.ID, r.Seq, r.Event)
}

// Log is an append-only, in-memory event sequence with snapshot reads and
// optional live subscriptions. It lives for the process lifetime.
type Log struct {
	mu      sync.RWMutex
	records []Record
	nextSeq uint64
	subs    map[int]chan Record
	nextSub int
}

// New returns an empty log ready for concurrent use.
func New() *Log {
	return &Log{
		subs: make(map[int]chan Record),
	}
}

// Append adds one event to the end of the sequence and returns the record
// created for it. The append is atomic: readers see the event fully or not
// at all. Live subscribers are notified without blocking; a subscriber whose
// buffer is full misses the record rather than stalling the writer.
func (l *Log) Append(event datatypes.Event) Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSeq++
	rec := Record{
		ID:    uuid.NewString(),
		Seq:   l.nextSeq,
		Event: event,
	}
	l.records = append(l.records, rec)

	for _, ch := range l.subs {
		select {
		case ch <- rec:
		default:
			// Slow subscriber; drop rather than block the writer path.
		}
	}
	return rec
}

// Snapshot returns a copy of all records at call time, in append order.
// The returned slice is owned by the caller.
func (l *Log) Snapshot() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of appended records.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// =============================================================================
// Live Subscriptions
// =============================================================================

// Subscription delivers records appended after Subscribe was called.
// Close the subscription when done; the channel is closed by Close.
type Subscription struct {
	// C receives records as they are appended.
	C <-chan Record

	id  int
	log *Log
	ch  chan Record
}

// Subscribe registers a live listener with the given channel buffer size.
// Records appended while the buffer is full are dropped for that listener;
// the full history remains available via Snapshot.
func (l *Log) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Record, buffer)

	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch

	return &Subscription{C: ch, id: id, log: l, ch: ch}
}

// Close unregisters the subscription and closes its channel.
// Safe to call once; callers must not close the channel themselves.
func (s *Subscription) Close() {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()

	if _, ok := s.log.subs[s.id]; ok {
		delete(s.log.subs, s.id)
		close(s.ch)
	}
}
