package transition

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
	"time"
)

var (
	// ErrUnknownTransition is returned when a key has no recorded samples.
	ErrUnknownTransition = errors.New("unknown transition")
	// ErrInvalidPercentile is returned for a percentile outside [0, 100].
	ErrInvalidPercentile = errors.New("percentile out of range")
)

// Statistics keeps every handoff duration ever added, grouped by Key in
// arrival order. Nothing is evicted; memory grows with the number of samples.
//
// Aggregates are computed on demand from a copy taken under the read lock.
type Statistics struct {
	mu    sync.RWMutex
	times map[Key][]time.Duration
}

// NewStatistics returns an empty table.
func NewStatistics() *Statistics {
	return &Statistics{times: make(map[Key][]time.Duration)}
}

// Add appends r's duration under r's key.
func (s *Statistics) Add(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(r)
}

// AddAll appends every record under a single lock acquisition.
func (s *Statistics) AddAll(records []Record) {
	if len(records) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.addLocked(r)
	}
}

func (s *Statistics) addLocked(r Record) {
	k := r.Key()
	s.times[k] = append(s.times[k], r.Duration)
}

// Transitions returns every key with at least one sample, sorted by From then To.
func (s *Statistics) Transitions() []Key {
	s.mu.RLock()
	keys := make([]Key, 0, len(s.times))
	for k := range s.times {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].From != keys[j].From {
			return keys[i].From < keys[j].From
		}
		return keys[i].To < keys[j].To
	})
	return keys
}

// Samples returns a copy of the durations recorded under k, in arrival order.
func (s *Statistics) Samples(k Key) ([]time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	times, ok := s.times[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransition, k)
	}
	return slices.Clone(times), nil
}

func (s *Statistics) nanos(k Key) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	times, ok := s.times[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransition, k)
	}
	out := make([]float64, len(times))
	for i, d := range times {
		out[i] = float64(d)
	}
	return out, nil
}

// Count returns the number of samples under k.
func (s *Statistics) Count(k Key) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	times, ok := s.times[k]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTransition, k)
	}
	return len(times), nil
}

// Mean returns the arithmetic mean of the samples under k, in nanoseconds.
func (s *Statistics) Mean(k Key) (float64, error) {
	values, err := s.nanos(k)
	if err != nil {
		return 0, err
	}
	return mean(values), nil
}

// StdDeviation returns the sample standard deviation (n-1 denominator) under k,
// in nanoseconds. A single sample has deviation 0.
func (s *Statistics) StdDeviation(k Key) (float64, error) {
	values, err := s.nanos(k)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(variance(values, mean(values))), nil
}

// Percentile returns the p-th percentile (0..100) of the samples under k, in
// nanoseconds. Between ranks the value is interpolated linearly; positions
// below the first rank or above the last clamp to the minimum and maximum.
func (s *Statistics) Percentile(k Key, p float64) (float64, error) {
	if math.IsNaN(p) || p < 0 || p > 100 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPercentile, p)
	}
	values, err := s.nanos(k)
	if err != nil {
		return 0, err
	}
	sort.Float64s(values)
	return percentile(values, p), nil
}

// Summary is a one-shot view of a key's samples. Values are nanoseconds.
type Summary struct {
	Key          Key
	Count        int
	Mean         float64
	StdDeviation float64
	Min          float64
	Max          float64
	P50          float64
	P90          float64
	P99          float64
}

// Summary computes every aggregate for k from a single snapshot.
func (s *Statistics) Summary(k Key) (Summary, error) {
	values, err := s.nanos(k)
	if err != nil {
		return Summary{}, err
	}
	sort.Float64s(values)
	m := mean(values)
	return Summary{
		Key:          k,
		Count:        len(values),
		Mean:         m,
		StdDeviation: math.Sqrt(variance(values, m)),
		Min:          values[0],
		Max:          values[len(values)-1],
		P50:          percentile(values, 50),
		P90:          percentile(values, 90),
		P99:          percentile(values, 99),
	}, nil
}

// Summaries returns a Summary for every known key, ordered like Transitions.
func (s *Statistics) Summaries() []Summary {
	keys := s.Transitions()
	out := make([]Summary, 0, len(keys))
	for _, k := range keys {
		sum, err := s.Summary(k)
		if err != nil {
			continue
		}
		out = append(out, sum)
	}
	return out
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64, m float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var sq, comp float64
	for _, v := range values {
		d := v - m
		sq += d * d
		comp += d
	}
	// Two-pass corrected sum keeps rounding error in the mean out of the result
	return (sq - comp*comp/float64(n)) / float64(n-1)
}

// percentile expects sorted, non-empty values.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n+1) / 100
	if pos < 1 {
		return sorted[0]
	}
	if pos >= float64(n) {
		return sorted[n-1]
	}
	fpos := math.Floor(pos)
	lower := sorted[int(fpos)-1]
	upper := sorted[int(fpos)]
	return lower + (pos-fpos)*(upper-lower)
}
