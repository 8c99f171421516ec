// Package repository provides a generic gorm-backed store used by the domain
// services for uniform filtering, paging and batch writes.
package repository

import (
	"context"

	"github.com/batipilot/batipilot/pkg/db/option"
	"gorm.io/gorm"
)

type Repository[T any] interface {
	// WithTrx returns a store bound to the given transaction handle.
	WithTrx(tx *gorm.DB) Repository[T]

	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)

	Create(ctx context.Context, resource *T) error
	Save(ctx context.Context, resource *T) error
	Update(ctx context.Context, resourceID any, values any) error
	Delete(ctx context.Context, resourceID any) error
	DeleteWhere(ctx context.Context, query *T) error

	BatchCreate(ctx context.Context, resources []*T) error
}
