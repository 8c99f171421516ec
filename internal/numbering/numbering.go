// Package numbering allocates per-year document numbers (DEV-2026-0001,
// FAC-2026-0001) from a sequence row. Allocation happens inside the caller's
// transaction: the counter UPDATE takes the row lock, so two concurrent
// creations can never draw the same number.
package numbering

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"gorm.io/gorm"

	pkgdb "github.com/batipilot/batipilot/pkg/db"
)

// DocumentSequence is one (prefix, year) counter row.
type DocumentSequence struct {
	Prefix  string `gorm:"primaryKey;size:10"`
	Year    int    `gorm:"primaryKey"`
	Counter int64  `gorm:"not null;default:0"`
}

type Allocator struct{}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// Next increments the (prefix, year) counter and returns the formatted
// document number. Must be called with the transaction that creates the
// document, so a rolled-back creation also rolls the number back.
func (a *Allocator) Next(ctx context.Context, tx *gorm.DB, prefix string, year int) (string, error) {
	counter, err := a.bump(ctx, tx, prefix, year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%04d", prefix, year, counter), nil
}

func (a *Allocator) bump(ctx context.Context, tx *gorm.DB, prefix string, year int) (int64, error) {
	res := tx.WithContext(ctx).
		Model(&DocumentSequence{}).
		Where("prefix = ? AND year = ?", prefix, year).
		Update("counter", gorm.Expr("counter + 1"))
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected == 0 {
		seq := DocumentSequence{Prefix: prefix, Year: year, Counter: 1}
		if err := tx.WithContext(ctx).Create(&seq).Error; err != nil {
			if !pkgdb.IsDuplicateKeyErr(err) {
				return 0, err
			}
			// Another transaction created the row first; bump it instead.
			res = tx.WithContext(ctx).
				Model(&DocumentSequence{}).
				Where("prefix = ? AND year = ?", prefix, year).
				Update("counter", gorm.Expr("counter + 1"))
			if res.Error != nil {
				return 0, res.Error
			}
		} else {
			return 1, nil
		}
	}

	var seq DocumentSequence
	if err := tx.WithContext(ctx).
		Where("prefix = ? AND year = ?", prefix, year).
		First(&seq).Error; err != nil {
		return 0, err
	}
	return seq.Counter, nil
}

var Module = fx.Module("numbering",
	fx.Provide(NewAllocator),
)
