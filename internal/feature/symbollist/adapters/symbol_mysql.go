// Package adapters はsymbollistフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	indicatorusecase "indicator_backend/internal/feature/indicator/usecase"
	"indicator_backend/internal/feature/symbollist/domain/entity"
)

// symbolMySQL lists the symbols whose indicators are kept up to date.
type symbolMySQL struct {
	db     *gorm.DB
	market string
}

var _ indicatorusecase.SymbolLister = (*symbolMySQL)(nil)

// NewSymbolRepository は銘柄リポジトリを生成します。market が空でなければその市場の銘柄に絞り込みます。
func NewSymbolRepository(db *gorm.DB, market string) *symbolMySQL {
	return &symbolMySQL{db: db, market: market}
}

// ListActiveCodes はsort_key順にアクティブな銘柄のコードのみを返します。
func (r *symbolMySQL) ListActiveCodes(ctx context.Context) ([]string, error) {
	var codes []string
	q := r.db.WithContext(ctx).
		Model(&entity.Symbol{}).
		Where(clause.Eq{Column: clause.Column{Name: "is_active"}, Value: true})
	if r.market != "" {
		q = q.Where(clause.Eq{Column: clause.Column{Name: "market"}, Value: r.market})
	}
	if err := q.Order("sort_key ASC, code ASC").Pluck("code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}
