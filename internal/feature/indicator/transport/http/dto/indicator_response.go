// Package dto defines the JSON shapes of the indicator HTTP surface.
package dto

// PointResponse は指標値1件のレスポンスDTOです。
type PointResponse struct {
	Time  string  `json:"time"`  // RFC3339 (UTC)
	Value float64 `json:"value"` // 指標値
}

// SeriesResponse is returned by the series and range endpoints.
type SeriesResponse struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Kind      string          `json:"kind"`
	Params    string          `json:"params"`
	Count     int             `json:"count"`
	Data      []PointResponse `json:"data"`
}

// RecomputeResponse は再計算結果のレスポンスDTOです。
type RecomputeResponse struct {
	Success bool            `json:"success"`
	Count   int             `json:"count"`
	Data    []PointResponse `json:"data"`
}

// LatestResponse carries the on-demand value. Both fields are null while
// fewer candles than the period exist.
type LatestResponse struct {
	Time  *string  `json:"time"`
	Value *float64 `json:"value"`
}

// PurgeResponse reports how many stored values were removed.
type PurgeResponse struct {
	Deleted int64 `json:"deleted"`
}

// ErrorResponse はエラーレスポンスDTOです。
type ErrorResponse struct {
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
	Required  *int   `json:"required,omitempty"`
	Available *int   `json:"available,omitempty"`
}
