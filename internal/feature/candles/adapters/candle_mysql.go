package adapters

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"indicator_backend/internal/feature/candles/domain/entity"
	indicatorusecase "indicator_backend/internal/feature/indicator/usecase"
)

type candleMySQL struct {
	db *gorm.DB
}

var _ indicatorusecase.MarketDataProvider = (*candleMySQL)(nil)

// NewCandleRepository reads candles written by the ingestion side.
func NewCandleRepository(db *gorm.DB) *candleMySQL {
	return &candleMySQL{db: db}
}

type CandleModel struct {
	ID        uint      `gorm:"primaryKey"`
	Symbol    string    `gorm:"size:32;not null;uniqueIndex:idx_candle_sym_time_tf,priority:1"`
	Timestamp time.Time `gorm:"column:timestamp;not null;uniqueIndex:idx_candle_sym_time_tf,priority:2"`
	Timeframe string    `gorm:"size:16;not null;uniqueIndex:idx_candle_sym_time_tf,priority:3"`

	Open   float64 `gorm:"not null"`
	High   float64 `gorm:"not null"`
	Low    float64 `gorm:"not null"`
	Close  float64 `gorm:"not null"`
	Volume float64 `gorm:"not null;default:0"`
}

func (CandleModel) TableName() string {
	return "market_candles"
}

func toEntity(m CandleModel) entity.Candle {
	return entity.Candle{
		Symbol:    m.Symbol,
		Timeframe: m.Timeframe,
		Time:      m.Timestamp.UTC(),
		Open:      m.Open,
		High:      m.High,
		Low:       m.Low,
		Close:     m.Close,
		Volume:    m.Volume,
	}
}

// Fetch returns the most recent q.Limit candles within the inclusive bounds,
// oldest first. A non-positive limit returns every candle in the bounds.
func (r *candleMySQL) Fetch(ctx context.Context, q entity.CandleQuery) ([]entity.Candle, error) {
	var rows []CandleModel
	tx := r.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: "symbol"}, Value: q.Symbol}).
		Where(clause.Eq{Column: clause.Column{Name: "timeframe"}, Value: q.Timeframe}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true})
	if q.Start != nil {
		tx = tx.Where(clause.Gte{Column: clause.Column{Name: "timestamp"}, Value: q.Start.UTC()})
	}
	if q.End != nil {
		tx = tx.Where(clause.Lte{Column: clause.Column{Name: "timestamp"}, Value: q.End.UTC()})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]entity.Candle, len(rows))
	for i, m := range rows {
		out[len(rows)-1-i] = toEntity(m)
	}
	return out, nil
}
