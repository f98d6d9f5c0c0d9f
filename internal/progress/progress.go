// Package progress provides throughput tracking and a background
// ticker for long-running passes over a streaming OSM input of
// unknown object count.
package progress

import (
	"context"
	"fmt"
	"time"
)

// Tracker computes elapsed time and throughput for one pass over the
// input. There is no total to measure against — a PBF or XML extract
// doesn't declare its object count up front — so unlike a
// fixed-size-transfer progress bar this reports rate, not percentage
// or ETA.
type Tracker struct {
	startTime   time.Time
	description string
}

// NewTracker starts a tracker for a pass identified by description
// (e.g. "pass one", "pass two").
func NewTracker(description string) *Tracker {
	return &Tracker{startTime: time.Now(), description: description}
}

// Snapshot holds a point-in-time object-count measurement for one
// pass, split the way softcut's Sink methods are: nodes, ways, and
// relations are seen in that order and never interleaved.
type Snapshot struct {
	Nodes       int64
	Ways        int64
	Relations   int64
	Elapsed     time.Duration
	Throughput  float64 // objects per second, across all three kinds
	Description string
}

// Calculate returns a snapshot given the current per-kind object
// counts.
func (t *Tracker) Calculate(nodes, ways, relations int64) Snapshot {
	elapsed := time.Since(t.startTime)

	var throughput float64
	if elapsed.Seconds() > 0 {
		throughput = float64(nodes+ways+relations) / elapsed.Seconds()
	}

	return Snapshot{
		Nodes:       nodes,
		Ways:        ways,
		Relations:   relations,
		Elapsed:     elapsed.Round(time.Second),
		Throughput:  throughput,
		Description: t.description,
	}
}

// Ticker calls a callback on a fixed interval until ctx is cancelled.
type Ticker struct {
	ctx      context.Context
	callback func()
	interval time.Duration
}

// NewTicker creates a ticker that invokes callback every interval.
func NewTicker(ctx context.Context, interval time.Duration, callback func()) *Ticker {
	return &Ticker{ctx: ctx, callback: callback, interval: interval}
}

// Run blocks, invoking the callback on each tick, until the context is done.
func (p *Ticker) Run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.callback()
		}
	}
}

// FormatThroughput formats a per-second rate.
func FormatThroughput(itemsPerSec float64) string {
	if itemsPerSec >= 1_000_000 {
		return fmt.Sprintf("%.1fM/s", itemsPerSec/1_000_000)
	}
	if itemsPerSec >= 1_000 {
		return fmt.Sprintf("%.1fK/s", itemsPerSec/1_000)
	}
	return fmt.Sprintf("%.0f/s", itemsPerSec)
}
