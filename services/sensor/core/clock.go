// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package core

import (
	"math/rand"
	"sync"
	"time"
)

// =============================================================================
// Clock
// =============================================================================

// Clock supplies timestamps to the sensor node. Injecting it keeps every
// time-dependent code path deterministic under test.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time
}

// systemClock reads the real system time.
type systemClock struct{}

// NewSystemClock returns a Clock backed by time.Now.
func NewSystemClock() Clock {
	return systemClock{}
}

// Now implements Clock.
func (systemClock) Now() time.Time { return time.Now() }

// FixedClock is a manually advanced Clock for tests.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock returns a FixedClock pinned at the given instant.
func NewFixedClock(at time.Time) *FixedClock {
	return &FixedClock{now: at}
}

// Now implements Clock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// =============================================================================
// Random Source
// =============================================================================

// RandSource supplies the uniform draws used when a node's modes are
// constructed. It is never consulted after construction; evolution is
// fully deterministic given current state.
type RandSource interface {
	// UniformFloat returns a value drawn uniformly from [low, high).
	UniformFloat(low, high float64) float64
}

// seededRand is a lockable math/rand source. Seeded construction makes a
// node's initial mode parameters reproducible.
type seededRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededRand returns a RandSource with a fixed seed.
func NewSeededRand(seed int64) RandSource {
	return &seededRand{r: rand.New(rand.NewSource(seed))}
}

// NewRand returns a RandSource seeded from the current time.
func NewRand() RandSource {
	return &seededRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// UniformFloat implements RandSource.
func (s *seededRand) UniformFloat(low, high float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return low + s.r.Float64()*(high-low)
}
