// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package persistence contains the sinks the updater hands node snapshots
// to after each tick. Sinks operate on consistent snapshots taken under the
// node lock and run outside it, so slow I/O never blocks the simulation.
// Sink failures are reported to the caller, logged, and swallowed; the next
// tick simply tries again.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qbionet/photosynthos/services/sensor/datatypes"
)

// Sink receives the node's full state once per updater tick.
//
// # Thread Safety
//
// The updater calls Persist from a single goroutine, but implementations
// should not assume exclusivity: manual ticks (RunNow) may overlap a
// scheduled one during shutdown races.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Persist writes one snapshot. Errors are non-fatal to the caller.
	Persist(ctx context.Context, snap datatypes.NodeSnapshot) error
}

// FileSink writes one JSON document per day per node:
// {dir}/{node_id}_{YYYYMMDD}.json. Each tick overwrites the day's document
// with the current full state, so the newest file always holds the latest
// reading and the complete anomaly history.
type FileSink struct {
	dir string
}

// NewFileSink creates the log directory if needed and returns the sink.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create biosensor log directory %s: %w", dir, err)
	}
	return &FileSink{dir: dir}, nil
}

// Name implements Sink.
func (s *FileSink) Name() string { return "file" }

// Persist implements Sink.
//
// The document is written to a temp file first and renamed into place, so a
// reader never observes a partially written day file.
func (s *FileSink) Persist(ctx context.Context, snap datatypes.NodeSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal node snapshot: %w", err)
	}

	name := fmt.Sprintf("%s_%s.json", snap.NodeID, snap.Timestamp.Format("20060102"))
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to publish snapshot file: %w", err)
	}
	return nil
}

// Path returns the day-file path that would hold the given snapshot.
// Useful for tests and operational tooling.
func (s *FileSink) Path(snap datatypes.NodeSnapshot) string {
	name := fmt.Sprintf("%s_%s.json", snap.NodeID, snap.Timestamp.Format("20060102"))
	return filepath.Join(s.dir, name)
}
