// Package overlay provides the debug overlay recorded after the composite pass.
package overlay

import (
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/newengine/internal/gpu"
	"github.com/Faultbox/newengine/internal/metrics"
)

// Stats periodically logs frame rate, frame timings and heap usage.
type Stats struct {
	log      *zap.Logger
	rec      *metrics.Recorder
	category string
	interval time.Duration
	now      func() time.Time

	Enabled bool

	// Frame timing
	frameAccum int
	since      time.Time
	fps        float64

	// Snapshot taken in Record when a report is due
	fields   []zap.Field
	memStats runtime.MemStats
}

// NewStats returns an overlay reporting category from rec every interval.
func NewStats(rec *metrics.Recorder, category string, interval time.Duration, log *zap.Logger) *Stats {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Stats{
		log:      log,
		rec:      rec,
		category: category,
		interval: interval,
		now:      time.Now,
		Enabled:  true,
	}
}

// BeginFrame starts the first interval. Frames are counted in EndFrame, so a
// frame that never completes does not count.
func (s *Stats) BeginFrame() {
	if s.since.IsZero() {
		s.since = s.now()
	}
}

// Record snapshots the stats when a report is due.
func (s *Stats) Record(_ gpu.CommandBuffer, extent gpu.Extent) {
	if !s.Enabled || !s.due() {
		return
	}
	runtime.ReadMemStats(&s.memStats)

	s.fields = s.fields[:0]
	s.fields = append(s.fields, zap.Stringer("extent", extent))
	for _, stat := range []struct {
		key  string
		read func(string) (float64, error)
	}{
		{"min_ms", s.rec.GetMin},
		{"avg_ms", s.rec.GetAvg},
		{"max_ms", s.rec.GetMax},
	} {
		if v, err := stat.read(s.category); err == nil {
			s.fields = append(s.fields, zap.Float64(stat.key, v))
		}
	}
	s.fields = append(s.fields,
		zap.Uint64("heap_alloc_kb", s.memStats.HeapAlloc/1024),
		zap.Uint32("gc_cycles", s.memStats.NumGC))
}

// EndFrame logs the snapshot once per interval.
func (s *Stats) EndFrame() {
	s.frameAccum++
	if !s.due() {
		return
	}
	elapsed := s.now().Sub(s.since)
	s.fps = float64(s.frameAccum) / elapsed.Seconds()
	s.frameAccum = 0
	s.since = s.now()

	if !s.Enabled {
		return
	}
	s.log.Info("frame stats", append([]zap.Field{zap.Float64("fps", s.fps)}, s.fields...)...)
}

// FPS returns the frame rate measured over the last full interval.
func (s *Stats) FPS() float64 {
	return s.fps
}

func (s *Stats) due() bool {
	return !s.since.IsZero() && s.now().Sub(s.since) >= s.interval
}
