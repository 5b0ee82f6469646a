package transfer

import (
	"sync"
	"time"
)

const (
	// SampleInterval is the minimum time between speed samples.
	SampleInterval = 500 * time.Millisecond

	// SpeedWindow is how many samples the rolling average spans.
	SpeedWindow = 5
)

// Progress is a point-in-time view of a transfer.
type Progress struct {
	Bytes   int64
	Total   int64
	Percent float64
	Speed   float64 // bytes per second, rolling average
	ETA     time.Duration
	Elapsed time.Duration
}

// Tracker turns byte counts into percentage, speed and ETA. It is safe for
// one writer and any number of readers.
type Tracker struct {
	total int64
	now   func() time.Time

	mu        sync.Mutex
	start     time.Time
	lastAt    time.Time
	lastBytes int64
	bytes     int64
	samples   []float64
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker starts tracking a transfer of total bytes.
func NewTracker(total int64, opts ...TrackerOption) *Tracker {
	t := &Tracker{total: total, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.now()
	t.lastAt = t.start
	return t
}

// Update records the cumulative byte count. A speed sample is taken when
// at least SampleInterval has passed since the previous one.
func (t *Tracker) Update(bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.bytes = bytes
	now := t.now()
	elapsed := now.Sub(t.lastAt)
	if elapsed < SampleInterval {
		return
	}

	speed := float64(bytes-t.lastBytes) / elapsed.Seconds()
	t.samples = append(t.samples, speed)
	if len(t.samples) > SpeedWindow {
		t.samples = t.samples[len(t.samples)-SpeedWindow:]
	}
	t.lastAt = now
	t.lastBytes = bytes
}

// Snapshot returns the current progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := Progress{
		Bytes:   t.bytes,
		Total:   t.total,
		Elapsed: t.now().Sub(t.start),
	}
	if t.total > 0 {
		p.Percent = float64(t.bytes) * 100 / float64(t.total)
		if p.Percent > 100 {
			p.Percent = 100
		}
	}

	if len(t.samples) > 0 {
		var sum float64
		for _, s := range t.samples {
			sum += s
		}
		p.Speed = sum / float64(len(t.samples))
	}

	if remaining := t.total - t.bytes; p.Speed > 0 && remaining > 0 {
		p.ETA = time.Duration(float64(remaining) / p.Speed * float64(time.Second))
	}
	return p
}
