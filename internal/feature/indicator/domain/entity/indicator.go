// Package entity defines the domain models for the indicator feature.
package entity

import "time"

// Point is one timestamped value, either an input price or a computed indicator value.
type Point struct {
	Timestamp time.Time
	Value     float64
}

// SeriesKey identifies one computed indicator stream.
type SeriesKey struct {
	Symbol    string // e.g. "BTCUSDT", "7203.T"
	Timeframe string // candle bucket width, e.g. "1m", "1day"
	Kind      string // indicator kind tag, e.g. "SMA"
	ParamsID  string // canonical parameter identity, e.g. `{"period":20}`
}

// IndicatorRecord is a persisted indicator value. Its natural key is
// (Symbol, Timeframe, Timestamp, Kind, ParamsID).
type IndicatorRecord struct {
	Symbol    string
	Timeframe string
	Timestamp time.Time
	Kind      string
	ParamsID  string
	Value     float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the series key the record belongs to.
func (r IndicatorRecord) Key() SeriesKey {
	return SeriesKey{Symbol: r.Symbol, Timeframe: r.Timeframe, Kind: r.Kind, ParamsID: r.ParamsID}
}

// Point returns the timestamp/value pair of the record.
func (r IndicatorRecord) Point() Point {
	return Point{Timestamp: r.Timestamp, Value: r.Value}
}
