// Package metrics records per-category timing statistics.
//
// Each category keeps the last, minimum, maximum and mean sample. The first
// WarmupSamples publishes to a category are discarded so cold-start outliers
// (shader compilation, first uploads) do not skew the statistics.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultWarmupSamples is the number of leading samples ignored per category.
const DefaultWarmupSamples = 10

var (
	// ErrUnknownCategory is returned when reading a category that was never published.
	ErrUnknownCategory = errors.New("unknown metric category")
	// ErrNoSamples is returned when every sample of a category fell in the warm-up window.
	ErrNoSamples = errors.New("metric category has no samples")
)

// Category holds timing statistics in seconds.
type Category struct {
	LastTime float64
	MinTime  float64
	MaxTime  float64
	AvgTime  float64
	SumTime  float64

	NumPublishes int // samples included in the statistics
	NumIgnored   int // samples discarded by the warm-up window
}

func newCategory() *Category {
	return &Category{MinTime: math.Inf(1)}
}

// Recorder maps category names to timing statistics.
// It is not safe for concurrent use; the render loop owns it.
type Recorder struct {
	warmup     int
	categories map[string]*Category
	order      []string
}

// NewRecorder creates a recorder that ignores the first warmup samples of each category.
func NewRecorder(warmup int) *Recorder {
	if warmup < 0 {
		warmup = 0
	}
	return &Recorder{
		warmup:     warmup,
		categories: make(map[string]*Category),
	}
}

// Warmup returns the configured number of ignored leading samples.
func (r *Recorder) Warmup() int {
	return r.warmup
}

// PublishTime adds a sample in seconds to the named category, creating it on first use.
func (r *Recorder) PublishTime(name string, seconds float64) {
	c, ok := r.categories[name]
	if !ok {
		c = newCategory()
		r.categories[name] = c
		r.order = append(r.order, name)
	}

	if c.NumIgnored < r.warmup {
		c.NumIgnored++
		return
	}

	c.LastTime = seconds
	if seconds < c.MinTime {
		c.MinTime = seconds
	}
	if seconds > c.MaxTime {
		c.MaxTime = seconds
	}
	c.SumTime += seconds
	c.NumPublishes++
	c.AvgTime = c.SumTime / float64(c.NumPublishes)
}

// PublishDuration adds a sample expressed as a duration.
func (r *Recorder) PublishDuration(name string, d time.Duration) {
	r.PublishTime(name, d.Seconds())
}

// Time starts a timer and returns a function that publishes the elapsed time.
//
//	defer rec.Time("Frame")()
func (r *Recorder) Time(name string) func() {
	start := time.Now()
	return func() {
		r.PublishDuration(name, time.Since(start))
	}
}

// Category returns a copy of the named category's statistics.
func (r *Recorder) Category(name string) (Category, bool) {
	c, ok := r.categories[name]
	if !ok {
		return Category{}, false
	}
	return *c, true
}

// Names returns the category names in first-publish order.
func (r *Recorder) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// GetLast returns the most recent sample in milliseconds.
func (r *Recorder) GetLast(name string) (float64, error) {
	return r.read(name, func(c *Category) float64 { return c.LastTime })
}

// GetAvg returns the mean sample in milliseconds.
func (r *Recorder) GetAvg(name string) (float64, error) {
	return r.read(name, func(c *Category) float64 { return c.AvgTime })
}

// GetMin returns the smallest sample in milliseconds.
func (r *Recorder) GetMin(name string) (float64, error) {
	return r.read(name, func(c *Category) float64 { return c.MinTime })
}

// GetMax returns the largest sample in milliseconds.
func (r *Recorder) GetMax(name string) (float64, error) {
	return r.read(name, func(c *Category) float64 { return c.MaxTime })
}

func (r *Recorder) read(name string, field func(*Category) float64) (float64, error) {
	c, ok := r.categories[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	if c.NumPublishes == 0 {
		return 0, fmt.Errorf("%w: %q (%d ignored)", ErrNoSamples, name, c.NumIgnored)
	}
	return field(c) * 1000, nil
}
