package scheduler

import (
	"math"
	"time"
)

// Latency keeps running fetch-duration statistics using Welford's algorithm.
type Latency struct {
	count int
	mean  float64
	m2    float64
	max   float64
}

// Add folds one observed duration into the running statistics.
func (l *Latency) Add(d time.Duration) {
	x := d.Seconds()
	l.count++
	delta := x - l.mean
	l.mean += delta / float64(l.count)
	delta2 := x - l.mean
	l.m2 += delta * delta2
	if x > l.max {
		l.max = x
	}
}

// LatencyStats is a point-in-time view of Latency.
type LatencyStats struct {
	Count  int           `json:"count"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stddev"`
	Max    time.Duration `json:"max"`
}

// Stats returns the current statistics; the deviation is zero until two samples exist.
func (l *Latency) Stats() LatencyStats {
	s := LatencyStats{
		Count: l.count,
		Mean:  seconds(l.mean),
		Max:   seconds(l.max),
	}
	if l.count >= 2 {
		s.StdDev = seconds(math.Sqrt(l.m2 / float64(l.count-1)))
	}
	return s
}

func seconds(x float64) time.Duration {
	return time.Duration(x * float64(time.Second))
}
