package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Category is a node of the price-library tree. A nil ParentID marks a root.
type Category struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name      string        `gorm:"not null" json:"name"`
	ParentID  *snowflake.ID `gorm:"index" json:"parent_id,omitempty"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Material is a purchasable supply priced per unit of measure.
type Material struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"not null" json:"name"`
	Unit          string          `gorm:"not null" json:"unit"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"purchase_price"`
	Reference     string          `json:"reference,omitempty"`
	Description   string          `json:"description,omitempty"`
	CategoryID    *snowflake.ID   `gorm:"index" json:"category_id,omitempty"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Labor is a workforce type priced per hour.
type Labor struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"not null" json:"name"`
	HourlyCost  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"hourly_cost"`
	Description string          `json:"description,omitempty"`
	CategoryID  *snowflake.ID   `gorm:"index" json:"category_id,omitempty"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Labor) TableName() string { return "labor" }

// CategoryNode is a category with its resolved children, used by the tree view.
type CategoryNode struct {
	Category
	Path     string          `json:"path"`
	Children []*CategoryNode `json:"children"`
}
