package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Work is a composite deliverable (ouvrage) assembled from catalog
// ingredients. Its raw cost is never stored; it is recomputed from current
// catalog prices on every read.
type Work struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name        string        `gorm:"not null" json:"name"`
	Code        string        `gorm:"index" json:"code,omitempty"`
	Unit        string        `gorm:"not null" json:"unit"`
	Description string        `json:"description,omitempty"`
	CategoryID  *snowflake.ID `gorm:"index" json:"category_id,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// IngredientKind tags which catalog table an ingredient points into.
type IngredientKind string

const (
	KindMaterial IngredientKind = "material"
	KindLabor    IngredientKind = "labor"
)

func (k IngredientKind) Valid() bool {
	return k == KindMaterial || k == KindLabor
}

// Ingredient ties a work to exactly one catalog item. A work cannot hold the
// same catalog item twice.
type Ingredient struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	WorkID    snowflake.ID    `gorm:"not null;uniqueIndex:ux_work_ingredient" json:"work_id"`
	Kind      IngredientKind  `gorm:"not null;uniqueIndex:ux_work_ingredient" json:"kind"`
	ItemID    snowflake.ID    `gorm:"not null;uniqueIndex:ux_work_ingredient" json:"item_id"`
	Quantity  decimal.Decimal `gorm:"type:decimal(10,3);not null" json:"quantity"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// IngredientCost is one resolved line of a work's cost breakdown.
type IngredientCost struct {
	Ingredient
	ItemName  string          `json:"item_name"`
	ItemUnit  string          `json:"item_unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// WorkCost is the live-priced breakdown of a work.
type WorkCost struct {
	WorkID         snowflake.ID     `json:"work_id"`
	RawCost        decimal.Decimal  `json:"raw_cost"`
	MarginPercent  decimal.Decimal  `json:"margin_percent"`
	SuggestedPrice decimal.Decimal  `json:"suggested_price"`
	Ingredients    []IngredientCost `json:"ingredients"`
}

// DanglingReferenceError reports an ingredient whose catalog item no longer
// exists. The roll-up never treats a missing item as zero cost.
type DanglingReferenceError struct {
	Kind   IngredientKind
	ItemID snowflake.ID
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("dangling ingredient reference: %s %s", e.Kind, e.ItemID)
}

func (e *DanglingReferenceError) Is(target error) bool {
	return target == ErrDanglingReference
}
