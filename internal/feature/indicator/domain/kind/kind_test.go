package kind

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indicator_backend/internal/feature/indicator/domain"
	"indicator_backend/internal/feature/indicator/domain/entity"
	"indicator_backend/internal/feature/indicator/domain/params"
)

func TestLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "SMA", want: SMA},
		{input: "sma", want: SMA},
		{input: " StdDev ", want: STDDEV},
		{input: "wma", want: WMA},
		{input: "EMA", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			k, err := Lookup(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrInvalidParameter))
				assert.Equal(t, domain.ReasonUnknownKind, domain.ReasonOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, k.Name)
			assert.NotNil(t, k.Aggregate)
		})
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{MAX, MIN, SMA, STDDEV, SUM, WMA}, Names())
}

func TestAggregates(t *testing.T) {
	t.Parallel()

	w := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	assert.Equal(t, 40.0, Sum(w))
	assert.Equal(t, 9.0, Max(w))
	assert.Equal(t, 2.0, Min(w))
	assert.Equal(t, 2.0, StdDev(w))
	assert.InDelta(t, 14.0/6.0, WeightedMean([]float64{1, 2, 3}), 1e-12)
	assert.Equal(t, 0.0, StdDev([]float64{3, 3, 3}))
}

func TestKind_ComputeSeries(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	prices := []entity.Point{
		{Timestamp: base, Value: 10},
		{Timestamp: base.Add(time.Minute), Value: 14},
		{Timestamp: base.Add(2 * time.Minute), Value: 12},
		{Timestamp: base.Add(3 * time.Minute), Value: 8},
	}

	tests := []struct {
		kind string
		want []float64
	}{
		{kind: SMA, want: []float64{12, 13, 10}},
		{kind: SUM, want: []float64{24, 26, 20}},
		{kind: MAX, want: []float64{14, 14, 12}},
		{kind: MIN, want: []float64{10, 12, 8}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.kind, func(t *testing.T) {
			t.Parallel()

			k, err := Lookup(tt.kind)
			require.NoError(t, err)

			out, err := k.ComputeSeries(prices, params.Params{Period: 2})
			require.NoError(t, err)
			require.Len(t, out, len(tt.want))
			for i, p := range out {
				assert.Equal(t, tt.want[i], p.Value, "index %d", i)
				assert.Equal(t, prices[i+1].Timestamp, p.Timestamp)
			}
		})
	}
}

func TestKind_Identity(t *testing.T) {
	t.Parallel()

	k, err := Lookup(SMA)
	require.NoError(t, err)

	id, err := k.Identity(params.Params{Period: 20})
	require.NoError(t, err)
	assert.Equal(t, `{"period":20}`, id)

	_, err = k.Identity(params.Params{Period: 0})
	assert.Equal(t, domain.ReasonNotPositive, domain.ReasonOf(err))

	narrow := Kind{Name: "TEST", MaxPeriod: 10, Aggregate: Sum}
	_, err = narrow.Identity(params.Params{Period: 11})
	assert.Equal(t, domain.ReasonTooLarge, domain.ReasonOf(err))
}

func TestKind_ComputeSingle(t *testing.T) {
	t.Parallel()

	k, err := Lookup(MAX)
	require.NoError(t, err)

	v, err := k.ComputeSingle([]float64{3, 9, 1}, params.Params{Period: 3})
	require.NoError(t, err)
	assert.Equal(t, 9.0, v)

	_, err = k.ComputeSingle([]float64{3, 9}, params.Params{Period: 3})
	assert.True(t, errors.Is(err, domain.ErrParameterMismatch))
}
