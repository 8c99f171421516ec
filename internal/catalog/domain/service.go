package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/batipilot/batipilot/pkg/db/pagination"
)

type CreateCategoryRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

type UpdateCategoryRequest struct {
	ID       string  `json:"-"`
	Name     *string `json:"name"`
	ParentID *string `json:"parent_id"`
}

type CreateMaterialRequest struct {
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Reference     string          `json:"reference"`
	Description   string          `json:"description"`
	CategoryID    string          `json:"category_id"`
}

type UpdateMaterialRequest struct {
	ID            string           `json:"-"`
	Name          *string          `json:"name"`
	Unit          *string          `json:"unit"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	Reference     *string          `json:"reference"`
	Description   *string          `json:"description"`
	CategoryID    *string          `json:"category_id"`
}

type CreateLaborRequest struct {
	Name        string          `json:"name"`
	HourlyCost  decimal.Decimal `json:"hourly_cost"`
	Description string          `json:"description"`
	CategoryID  string          `json:"category_id"`
}

type UpdateLaborRequest struct {
	ID          string           `json:"-"`
	Name        *string          `json:"name"`
	HourlyCost  *decimal.Decimal `json:"hourly_cost"`
	Description *string          `json:"description"`
	CategoryID  *string          `json:"category_id"`
}

type ListMaterialsRequest struct {
	pagination.Pagination
	Search     string `form:"search"`
	CategoryID string `form:"category_id"`
}

type ListMaterialsResponse struct {
	pagination.PageInfo
	Materials []Material `json:"materials"`
}

type ListLaborRequest struct {
	pagination.Pagination
	Search     string `form:"search"`
	CategoryID string `form:"category_id"`
}

type ListLaborResponse struct {
	pagination.PageInfo
	Labor []Labor `json:"labor"`
}

type Service interface {
	CreateCategory(context.Context, CreateCategoryRequest) (Category, error)
	UpdateCategory(context.Context, UpdateCategoryRequest) (Category, error)
	DeleteCategory(ctx context.Context, id string) error
	CategoryTree(ctx context.Context) ([]*CategoryNode, error)

	CreateMaterial(context.Context, CreateMaterialRequest) (Material, error)
	GetMaterial(ctx context.Context, id string) (Material, error)
	UpdateMaterial(context.Context, UpdateMaterialRequest) (Material, error)
	DeleteMaterial(ctx context.Context, id string) error
	ListMaterials(context.Context, ListMaterialsRequest) (ListMaterialsResponse, error)

	CreateLabor(context.Context, CreateLaborRequest) (Labor, error)
	GetLabor(ctx context.Context, id string) (Labor, error)
	UpdateLabor(context.Context, UpdateLaborRequest) (Labor, error)
	DeleteLabor(ctx context.Context, id string) error
	ListLabor(context.Context, ListLaborRequest) (ListLaborResponse, error)
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidUnit     = errors.New("invalid_unit")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidParent   = errors.New("invalid_parent")
	ErrCategoryCycle   = errors.New("category_cycle")
	ErrCategoryInUse   = errors.New("category_in_use")
	ErrNotFound        = errors.New("not_found")
	ErrInvalidCategory = errors.New("invalid_category")
)
