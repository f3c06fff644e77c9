package unitofwork

import (
	"sync/atomic"
	"time"
)

// Metrics tracks session performance statistics
type Metrics struct {
	// Flush counters
	flushes       atomic.Uint64
	flushFailures atomic.Uint64

	// Statement counters
	inserts atomic.Uint64
	updates atomic.Uint64
	deletes atomic.Uint64

	// Change detection counters
	changeSetsComputed atomic.Uint64
	dirtyEntities      atomic.Uint64

	// Identity map counters
	identityHits   atomic.Uint64
	identityMisses atomic.Uint64

	// Timing (in nanoseconds)
	totalFlushLatency atomic.Uint64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordFlush records a completed flush with its latency
func (m *Metrics) RecordFlush(duration time.Duration) {
	m.flushes.Add(1)
	m.totalFlushLatency.Add(uint64(duration.Nanoseconds()))
}

// RecordFlushFailure increments the failed flush counter
func (m *Metrics) RecordFlushFailure() {
	m.flushFailures.Add(1)
}

// RecordInsert increments the insert statement counter
func (m *Metrics) RecordInsert() {
	m.inserts.Add(1)
}

// RecordUpdate increments the update statement counter
func (m *Metrics) RecordUpdate() {
	m.updates.Add(1)
}

// RecordDelete increments the delete statement counter
func (m *Metrics) RecordDelete() {
	m.deletes.Add(1)
}

// RecordChangeSet records one change-set computation, dirty or clean
func (m *Metrics) RecordChangeSet(dirty bool) {
	m.changeSetsComputed.Add(1)
	if dirty {
		m.dirtyEntities.Add(1)
	}
}

// RecordIdentityHit increments the identity-map hit counter
func (m *Metrics) RecordIdentityHit() {
	m.identityHits.Add(1)
}

// RecordIdentityMiss increments the identity-map miss counter
func (m *Metrics) RecordIdentityMiss() {
	m.identityMisses.Add(1)
}

// GetSnapshot returns a point-in-time snapshot of the counters
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	flushes := m.flushes.Load()

	var avgFlushLatency time.Duration
	if flushes > 0 {
		avgFlushLatency = time.Duration(m.totalFlushLatency.Load() / flushes)
	}

	return MetricsSnapshot{
		Flushes:            flushes,
		FlushFailures:      m.flushFailures.Load(),
		Inserts:            m.inserts.Load(),
		Updates:            m.updates.Load(),
		Deletes:            m.deletes.Load(),
		ChangeSetsComputed: m.changeSetsComputed.Load(),
		DirtyEntities:      m.dirtyEntities.Load(),
		IdentityHits:       m.identityHits.Load(),
		IdentityMisses:     m.identityMisses.Load(),
		AvgFlushLatency:    avgFlushLatency,
	}
}

// Reset resets all counters
func (m *Metrics) Reset() {
	m.flushes.Store(0)
	m.flushFailures.Store(0)
	m.inserts.Store(0)
	m.updates.Store(0)
	m.deletes.Store(0)
	m.changeSetsComputed.Store(0)
	m.dirtyEntities.Store(0)
	m.identityHits.Store(0)
	m.identityMisses.Store(0)
	m.totalFlushLatency.Store(0)
}

// MetricsSnapshot represents a point-in-time snapshot of session metrics
type MetricsSnapshot struct {
	Flushes            uint64
	FlushFailures      uint64
	Inserts            uint64
	Updates            uint64
	Deletes            uint64
	ChangeSetsComputed uint64
	DirtyEntities      uint64
	IdentityHits       uint64
	IdentityMisses     uint64
	AvgFlushLatency    time.Duration
}
