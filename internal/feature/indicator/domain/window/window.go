// Package window implements the windowing contract shared by every indicator
// kind: one aggregate per valid window end position over an ordered series.
package window

import (
	"fmt"

	"indicator_backend/internal/feature/indicator/domain"
	"indicator_backend/internal/feature/indicator/domain/entity"
)

// Aggregate reduces one full window to a single value. Implementations must
// not retain or modify the slice and must accumulate left to right so equal
// inputs produce bit-identical outputs.
type Aggregate func(window []float64) float64

// Mean is the arithmetic mean of the window.
func Mean(window []float64) float64 {
	var sum float64
	for _, v := range window {
		sum += v
	}
	return sum / float64(len(window))
}

// ComputeSeries aggregates every window of size points ending at index
// size-1 .. len(points)-1. Each output carries the timestamp of its window's
// last element, so the result has len(points)-size+1 entries.
//
// points must be ordered by timestamp ascending.
func ComputeSeries(points []entity.Point, size int, agg Aggregate) ([]entity.Point, error) {
	if size <= 0 {
		return nil, domain.NewInvalidParameter(domain.ReasonNotPositive, "window size must be positive, got %d", size)
	}
	if len(points) < size {
		return nil, &domain.InsufficientDataError{Required: size, Available: len(points)}
	}
	if agg == nil {
		agg = Mean
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	out := make([]entity.Point, 0, len(points)-size+1)
	for end := size - 1; end < len(points); end++ {
		// each window is reduced from scratch; a running sum would drift
		// away from ComputeSingle over long series
		out = append(out, entity.Point{
			Timestamp: points[end].Timestamp,
			Value:     agg(values[end-size+1 : end+1]),
		})
	}
	return out, nil
}

// ComputeSingle aggregates exactly one window. It is the real-time path where
// only the most recent value is needed.
func ComputeSingle(window []float64, size int, agg Aggregate) (float64, error) {
	if size <= 0 {
		return 0, domain.NewInvalidParameter(domain.ReasonNotPositive, "window size must be positive, got %d", size)
	}
	if len(window) != size {
		return 0, fmt.Errorf("%w: expected %d values, got %d", domain.ErrParameterMismatch, size, len(window))
	}
	if agg == nil {
		agg = Mean
	}
	return agg(window), nil
}
