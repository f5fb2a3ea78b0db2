package buffer

import (
	"sync"
	"time"

	"Mansoor88-6/session-replay/internal/models"

	"go.uber.org/zap"
)

const (
	DefaultRetentionWindow  = 60 * time.Second
	DefaultEvictionInterval = time.Second
)

// Buffer keeps captured events for a rolling retention window.
// Records are kept in arrival order; eviction runs on a ticker.
type Buffer struct {
	records          []models.EventRecord
	nextSeq          uint64
	retentionWindow  time.Duration
	evictionInterval time.Duration
	now              func() time.Time
	logger           *zap.Logger
	mu               sync.Mutex

	loopMu   sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Buffer
type Option func(*Buffer)

// WithClock replaces time.Now for eviction cutoffs
func WithClock(now func() time.Time) Option {
	return func(b *Buffer) {
		b.now = now
	}
}

// New creates an empty buffer. Non-positive durations fall back to the defaults.
func New(retentionWindow, evictionInterval time.Duration, logger *zap.Logger, opts ...Option) *Buffer {
	if retentionWindow <= 0 {
		retentionWindow = DefaultRetentionWindow
	}
	if evictionInterval <= 0 {
		evictionInterval = DefaultEvictionInterval
	}
	b := &Buffer{
		retentionWindow:  retentionWindow,
		evictionInterval: evictionInterval,
		now:              time.Now,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Append adds a record to the end of the buffer and returns it with its
// sequence number set.
func (b *Buffer) Append(rec models.EventRecord) models.EventRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	rec.Seq = b.nextSeq
	b.records = append(b.records, rec)
	return rec
}

// EvictOlderThan removes all records with timestamp < cutoffMs
func (b *Buffer) EvictOlderThan(cutoffMs int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.records[:0]
	for _, rec := range b.records {
		if rec.Timestamp >= cutoffMs {
			kept = append(kept, rec)
		}
	}
	removed := len(b.records) - len(kept)
	clearTail(b.records, len(kept))
	b.records = kept
	return removed
}

// EvictExpired removes everything older than now - retention window
func (b *Buffer) EvictExpired() int {
	cutoff := b.now().Add(-b.retentionWindow).UnixMilli()
	removed := b.EvictOlderThan(cutoff)
	if removed > 0 {
		b.logger.Debug("Evicted expired events",
			zap.Int("count", removed),
			zap.Int64("cutoff", cutoff),
		)
	}
	return removed
}

// Snapshot returns a copy of the current records
func (b *Buffer) Snapshot() []models.EventRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.EventRecord, len(b.records))
	copy(out, b.records)
	return out
}

type identity struct {
	timestamp int64
	seq       uint64
}

// RemoveByIdentity removes exactly the given records. Records appended
// after the given ones were snapshotted are kept.
func (b *Buffer) RemoveByIdentity(records []models.EventRecord) int {
	if len(records) == 0 {
		return 0
	}
	ids := make(map[identity]struct{}, len(records))
	for _, rec := range records {
		ids[identity{rec.Timestamp, rec.Seq}] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.records[:0]
	for _, rec := range b.records {
		if _, ok := ids[identity{rec.Timestamp, rec.Seq}]; !ok {
			kept = append(kept, rec)
		}
	}
	removed := len(b.records) - len(kept)
	clearTail(b.records, len(kept))
	b.records = kept
	return removed
}

// Reset discards all records
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = nil
}

// Len returns the number of buffered records
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// Bounds returns the record count and the smallest and largest
// timestamps held. Arrival order is not trusted. oldest and newest are nil
// when the buffer is empty.
func (b *Buffer) Bounds() (count int, oldest, newest *int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	count = len(b.records)
	if count == 0 {
		return 0, nil, nil
	}
	lo, hi := b.records[0].Timestamp, b.records[0].Timestamp
	for _, rec := range b.records[1:] {
		lo = min(lo, rec.Timestamp)
		hi = max(hi, rec.Timestamp)
	}
	return count, &lo, &hi
}

// StartEviction starts the background eviction loop. Calling it while the
// loop is running is a no-op.
func (b *Buffer) StartEviction() {
	b.loopMu.Lock()
	defer b.loopMu.Unlock()

	if b.stopChan != nil {
		return
	}
	b.stopChan = make(chan struct{})

	b.wg.Add(1)
	go b.evictionLoop(b.stopChan)

	b.logger.Debug("Buffer eviction started",
		zap.Duration("retention_window", b.retentionWindow),
		zap.Duration("eviction_interval", b.evictionInterval),
	)
}

// StopEviction cancels the eviction loop and waits for it to exit
func (b *Buffer) StopEviction() {
	b.loopMu.Lock()
	stopChan := b.stopChan
	b.stopChan = nil
	b.loopMu.Unlock()

	if stopChan == nil {
		return
	}
	close(stopChan)
	b.wg.Wait()

	b.logger.Debug("Buffer eviction stopped")
}

func (b *Buffer) evictionLoop(stopChan <-chan struct{}) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.EvictExpired()
		case <-stopChan:
			return
		}
	}
}

// clearTail zeroes the dropped tail so payloads can be collected
func clearTail(records []models.EventRecord, from int) {
	for i := from; i < len(records); i++ {
		records[i] = models.EventRecord{}
	}
}
