// Package entity defines the domain models for the candles feature.
package entity

import "time"

// Candle represents OHLCV (Open, High, Low, Close, Volume) candlestick data
// for a symbol over one timeframe bucket.
type Candle struct {
	Symbol    string    // Ticker symbol (e.g., "BTCUSDT", "7203.T")
	Timeframe string    // Bucket width (e.g., "1m", "5m", "1day")
	Time      time.Time // Timestamp for the start of this candle period
	Open      float64   // Opening price
	High      float64   // Highest price during this period
	Low       float64   // Lowest price during this period
	Close     float64   // Closing price
	Volume    float64   // Traded volume
}

// CandleQuery bounds a candle fetch. Start and End are inclusive and optional.
// Limit keeps the most recent candles inside the bounds; results are always
// returned oldest first.
type CandleQuery struct {
	Symbol    string
	Timeframe string
	Start     *time.Time
	End       *time.Time
	Limit     int
}
