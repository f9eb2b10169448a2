// Package kind is the registry of indicator kinds. Every kind plugs its own
// parameter ceiling and aggregate into the shared windowing contract and is
// selected by its tag (the persisted indicator_type column).
package kind

import (
	"math"
	"sort"
	"strings"

	"indicator_backend/internal/feature/indicator/domain"
	"indicator_backend/internal/feature/indicator/domain/entity"
	"indicator_backend/internal/feature/indicator/domain/params"
	"indicator_backend/internal/feature/indicator/domain/window"
)

// Tags of the built-in kinds.
const (
	SMA    = "SMA"
	SUM    = "SUM"
	MAX    = "MAX"
	MIN    = "MIN"
	STDDEV = "STDDEV"
	WMA    = "WMA"
)

// Kind describes one windowed indicator.
type Kind struct {
	Name      string
	MaxPeriod int
	Aggregate window.Aggregate
}

// ValidateParams checks p against the kind's parameter schema.
func (k Kind) ValidateParams(p params.Params) error {
	return params.ValidateWithin(p, k.MaxPeriod)
}

// Identity validates p and returns its canonical identity string.
func (k Kind) Identity(p params.Params) (string, error) {
	if err := k.ValidateParams(p); err != nil {
		return "", err
	}
	return params.Canonicalize(p)
}

// ComputeSeries runs the kind's aggregate over every window of prices.
func (k Kind) ComputeSeries(prices []entity.Point, p params.Params) ([]entity.Point, error) {
	return window.ComputeSeries(prices, p.Period, k.Aggregate)
}

// ComputeSingle runs the kind's aggregate over exactly one window.
func (k Kind) ComputeSingle(values []float64, p params.Params) (float64, error) {
	return window.ComputeSingle(values, p.Period, k.Aggregate)
}

var registry = map[string]Kind{
	SMA:    {Name: SMA, MaxPeriod: params.MaxPeriod, Aggregate: window.Mean},
	SUM:    {Name: SUM, MaxPeriod: params.MaxPeriod, Aggregate: Sum},
	MAX:    {Name: MAX, MaxPeriod: params.MaxPeriod, Aggregate: Max},
	MIN:    {Name: MIN, MaxPeriod: params.MaxPeriod, Aggregate: Min},
	STDDEV: {Name: STDDEV, MaxPeriod: params.MaxPeriod, Aggregate: StdDev},
	WMA:    {Name: WMA, MaxPeriod: params.MaxPeriod, Aggregate: WeightedMean},
}

// Lookup resolves a kind tag case-insensitively.
func Lookup(name string) (Kind, error) {
	k, ok := registry[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Kind{}, domain.NewInvalidParameter(domain.ReasonUnknownKind, "unknown indicator kind %q", name)
	}
	return k, nil
}

// Names returns the registered tags in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Sum is the plain sum of the window.
func Sum(w []float64) float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}

// Max is the highest value of the window.
func Max(w []float64) float64 {
	m := w[0]
	for _, v := range w[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Min is the lowest value of the window.
func Min(w []float64) float64 {
	m := w[0]
	for _, v := range w[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// StdDev is the population standard deviation, computed in two passes.
func StdDev(w []float64) float64 {
	mean := window.Mean(w)
	var ss float64
	for _, v := range w {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(w)))
}

// WeightedMean weights the i-th oldest value by i+1, so the newest value
// carries weight len(w).
func WeightedMean(w []float64) float64 {
	var sum float64
	for i, v := range w {
		sum += v * float64(i+1)
	}
	n := float64(len(w))
	return sum / (n * (n + 1) / 2)
}
