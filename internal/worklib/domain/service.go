package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/batipilot/batipilot/pkg/db/pagination"
)

type CreateWorkRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
	CategoryID  string `json:"category_id"`
}

type UpdateWorkRequest struct {
	ID          string  `json:"-"`
	Name        *string `json:"name"`
	Code        *string `json:"code"`
	Unit        *string `json:"unit"`
	Description *string `json:"description"`
	CategoryID  *string `json:"category_id"`
}

type ListWorksRequest struct {
	pagination.Pagination
	Search     string `form:"search"`
	CategoryID string `form:"category_id"`
}

type ListWorksResponse struct {
	pagination.PageInfo
	Works []Work `json:"works"`
}

type AddIngredientRequest struct {
	WorkID   string          `json:"-"`
	Kind     IngredientKind  `json:"kind"`
	ItemID   string          `json:"item_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

type UpdateIngredientRequest struct {
	WorkID       string          `json:"-"`
	IngredientID string          `json:"-"`
	Quantity     decimal.Decimal `json:"quantity"`
}

type CostRequest struct {
	WorkID string
	// MarginPercent overrides the configured default when non-nil.
	MarginPercent *decimal.Decimal
}

type Service interface {
	CreateWork(context.Context, CreateWorkRequest) (Work, error)
	GetWork(ctx context.Context, id string) (Work, error)
	UpdateWork(context.Context, UpdateWorkRequest) (Work, error)
	DeleteWork(ctx context.Context, id string) error
	ListWorks(context.Context, ListWorksRequest) (ListWorksResponse, error)

	AddIngredient(context.Context, AddIngredientRequest) (Ingredient, error)
	UpdateIngredient(context.Context, UpdateIngredientRequest) (Ingredient, error)
	RemoveIngredient(ctx context.Context, workID, ingredientID string) error
	ListIngredients(ctx context.Context, workID string) ([]Ingredient, error)

	// Cost resolves every ingredient against current catalog prices and
	// rolls them up. A missing catalog item yields a dangling-reference
	// error, never a silent zero.
	Cost(context.Context, CostRequest) (WorkCost, error)
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidUnit         = errors.New("invalid_unit")
	ErrInvalidKind         = errors.New("invalid_kind")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidMargin       = errors.New("invalid_margin")
	ErrNotFound            = errors.New("not_found")
	ErrItemNotFound        = errors.New("item_not_found")
	ErrDuplicateIngredient = errors.New("duplicate_ingredient")
	ErrDanglingReference   = errors.New("dangling_reference")
)
