package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"indicator_backend/internal/feature/indicator/domain"
	"indicator_backend/internal/feature/indicator/domain/entity"
	"indicator_backend/internal/feature/indicator/usecase"
)

const (
	defaultChunkSize   = 1000
	defaultRangeLimit  = 1000
	defaultLatestCount = 100
	// value column is decimal(20,8)
	valueScale = 8
)

// StoreObserver receives the duration and outcome of every store round-trip.
type StoreObserver interface {
	ObserveStore(op string, d time.Duration, err error)
}

type indicatorGorm struct {
	db        *gorm.DB
	chunkSize int
	timeout   time.Duration
	observer  StoreObserver
}

var _ usecase.IndicatorRepository = (*indicatorGorm)(nil)

// Option configures the repository.
type Option func(*indicatorGorm)

// WithChunkSize sets how many records go into one upsert statement.
func WithChunkSize(n int) Option {
	return func(r *indicatorGorm) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// WithQueryTimeout bounds every store round-trip. Zero disables the bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(r *indicatorGorm) { r.timeout = d }
}

// WithObserver reports store timings, e.g. to prometheus.
func WithObserver(o StoreObserver) Option {
	return func(r *indicatorGorm) { r.observer = o }
}

func NewIndicatorRepository(db *gorm.DB, opts ...Option) *indicatorGorm {
	r := &indicatorGorm{db: db, chunkSize: defaultChunkSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IndicatorModel is the persisted form of entity.IndicatorRecord.
type IndicatorModel struct {
	ID        uint            `gorm:"primaryKey"`
	Symbol    string          `gorm:"size:32;not null;uniqueIndex:idx_indicator_natural_key,priority:1"`
	Timeframe string          `gorm:"size:16;not null;uniqueIndex:idx_indicator_natural_key,priority:2"`
	Timestamp time.Time       `gorm:"column:timestamp;not null;uniqueIndex:idx_indicator_natural_key,priority:3;index:idx_indicator_timestamp"`
	Kind      string          `gorm:"column:indicator_type;size:32;not null;uniqueIndex:idx_indicator_natural_key,priority:4"`
	ParamsID  string          `gorm:"column:parameters;size:191;not null;uniqueIndex:idx_indicator_natural_key,priority:5"`
	Value     decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (IndicatorModel) TableName() string {
	return "indicators"
}

var naturalKey = []clause.Column{
	{Name: "symbol"},
	{Name: "timeframe"},
	{Name: "timestamp"},
	{Name: "indicator_type"},
	{Name: "parameters"},
}

func toModel(e entity.IndicatorRecord) IndicatorModel {
	return IndicatorModel{
		Symbol:    e.Symbol,
		Timeframe: e.Timeframe,
		Timestamp: e.Timestamp.UTC(),
		Kind:      e.Kind,
		ParamsID:  e.ParamsID,
		Value:     decimal.NewFromFloat(e.Value).Round(valueScale),
	}
}

func toEntity(m IndicatorModel) entity.IndicatorRecord {
	return entity.IndicatorRecord{
		Symbol:    m.Symbol,
		Timeframe: m.Timeframe,
		Timestamp: m.Timestamp.UTC(),
		Kind:      m.Kind,
		ParamsID:  m.ParamsID,
		Value:     m.Value.InexactFloat64(),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// Upsert writes records in sequential chunks, one INSERT ... ON CONFLICT per chunk.
// Existing keys only get value and updated_at overwritten. A failing chunk stops
// the write; earlier chunks stay committed.
func (r *indicatorGorm) Upsert(ctx context.Context, records []entity.IndicatorRecord) error {
	if len(records) == 0 {
		return nil
	}
	ms := dedupe(records)

	for start := 0; start < len(ms); start += r.chunkSize {
		end := min(start+r.chunkSize, len(ms))
		chunk := ms[start:end]
		err := r.run(ctx, "upsert", func(db *gorm.DB) error {
			return db.Clauses(clause.OnConflict{
				Columns:   naturalKey,
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&chunk).Error
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// dedupe keeps one model per natural key, the last one given, in first-seen order.
// Postgres rejects a statement that touches the same conflict target twice.
func dedupe(records []entity.IndicatorRecord) []IndicatorModel {
	type nk struct {
		key entity.SeriesKey
		ts  int64
	}
	pos := make(map[nk]int, len(records))
	out := make([]IndicatorModel, 0, len(records))
	for _, rec := range records {
		m := toModel(rec)
		k := nk{key: rec.Key(), ts: m.Timestamp.UnixNano()}
		if i, ok := pos[k]; ok {
			out[i] = m
			continue
		}
		pos[k] = len(out)
		out = append(out, m)
	}
	return out
}

// QueryRange returns records with start <= timestamp <= end, newest first.
func (r *indicatorGorm) QueryRange(ctx context.Context, key entity.SeriesKey, start, end time.Time, limit int) ([]entity.IndicatorRecord, error) {
	if limit <= 0 {
		limit = defaultRangeLimit
	}
	var rows []IndicatorModel
	err := r.run(ctx, "query range", func(db *gorm.DB) error {
		return db.Scopes(series(key)).
			Where(clause.Gte{Column: clause.Column{Name: "timestamp"}, Value: start.UTC()}).
			Where(clause.Lte{Column: clause.Column{Name: "timestamp"}, Value: end.UTC()}).
			Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
			Limit(limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]entity.IndicatorRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, toEntity(m))
	}
	return out, nil
}

// QueryLatest returns the most recent count records in chronological order.
func (r *indicatorGorm) QueryLatest(ctx context.Context, key entity.SeriesKey, count int) ([]entity.IndicatorRecord, error) {
	if count <= 0 {
		count = defaultLatestCount
	}
	var rows []IndicatorModel
	err := r.run(ctx, "query latest", func(db *gorm.DB) error {
		return db.Scopes(series(key)).
			Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
			Limit(count).
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	// 降順で取得したものを昇順に並べ替える
	out := make([]entity.IndicatorRecord, len(rows))
	for i, m := range rows {
		out[len(rows)-1-i] = toEntity(m)
	}
	return out, nil
}

// Find returns the record stored at ts, or domain.ErrRecordNotFound.
func (r *indicatorGorm) Find(ctx context.Context, key entity.SeriesKey, ts time.Time) (*entity.IndicatorRecord, error) {
	var m IndicatorModel
	err := r.run(ctx, "find", func(db *gorm.DB) error {
		err := db.Scopes(series(key)).
			Where(clause.Eq{Column: clause.Column{Name: "timestamp"}, Value: ts.UTC()}).
			Take(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errNotFound
		}
		return err
	})
	if errors.Is(err, errNotFound) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	rec := toEntity(m)
	return &rec, nil
}

// PurgeSeries deletes every timestamp of the series.
func (r *indicatorGorm) PurgeSeries(ctx context.Context, key entity.SeriesKey) (int64, error) {
	var n int64
	err := r.run(ctx, "purge", func(db *gorm.DB) error {
		res := db.Scopes(series(key)).Delete(&IndicatorModel{})
		n = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// errNotFound lets a missing row pass through run without being reported as an outage.
var errNotFound = errors.New("not found")

// run executes one round-trip under the per-op timeout and maps every backend
// failure to StoreUnavailable.
func (r *indicatorGorm) run(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	if r.db == nil {
		return &domain.StoreUnavailableError{Op: op, Err: errors.New("no database handle")}
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(r.db.WithContext(ctx))
	if r.observer != nil {
		observed := err
		if errors.Is(err, errNotFound) {
			observed = nil
		}
		r.observer.ObserveStore(op, time.Since(start), observed)
	}
	if err == nil || errors.Is(err, errNotFound) {
		return err
	}
	return &domain.StoreUnavailableError{Op: op, Err: err}
}

func series(key entity.SeriesKey) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{Column: clause.Column{Name: "symbol"}, Value: key.Symbol}).
			Where(clause.Eq{Column: clause.Column{Name: "timeframe"}, Value: key.Timeframe}).
			Where(clause.Eq{Column: clause.Column{Name: "indicator_type"}, Value: key.Kind}).
			Where(clause.Eq{Column: clause.Column{Name: "parameters"}, Value: key.ParamsID})
	}
}
