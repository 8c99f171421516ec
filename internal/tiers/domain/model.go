package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type TiersKind string

const (
	KindCompany    TiersKind = "company"
	KindIndividual TiersKind = "individual"
)

func (k TiersKind) Valid() bool {
	return k == KindCompany || k == KindIndividual
}

// Relation flags a tiers can carry. A record may hold several at once,
// e.g. a client that is also a supplier.
const (
	FlagProspect      = "prospect"
	FlagClient        = "client"
	FlagSupplier      = "supplier"
	FlagSubcontractor = "subcontractor"
)

func ValidFlag(flag string) bool {
	switch flag {
	case FlagProspect, FlagClient, FlagSupplier, FlagSubcontractor:
		return true
	}
	return false
}

// Tiers is a business relation record. Deletion is soft: archived records
// keep their history and can be restored.
type Tiers struct {
	ID             snowflake.ID                `gorm:"primaryKey" json:"id"`
	Kind           TiersKind                   `gorm:"not null;index;default:company" json:"kind"`
	Name           string                      `gorm:"not null" json:"name"`
	SIRET          string                      `json:"siret,omitempty"`
	VATNumber      string                      `json:"vat_number,omitempty"`
	Flags          datatypes.JSONSlice[string] `json:"flags"`
	AssignedUserID *snowflake.ID               `gorm:"index" json:"assigned_user_id,omitempty"`
	Archived       bool                        `gorm:"not null;index;default:false" json:"archived"`
	ArchivedAt     *time.Time                  `json:"archived_at,omitempty"`
	CreatedAt      time.Time                   `gorm:"not null;index;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Tiers) TableName() string { return "tiers" }

// Address of a tiers. At most one address per tiers carries Billing.
type Address struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	TiersID    snowflake.ID `gorm:"not null;index" json:"tiers_id"`
	Label      string       `json:"label,omitempty"`
	Street     string       `json:"street,omitempty"`
	City       string       `json:"city,omitempty"`
	PostalCode string       `json:"postal_code,omitempty"`
	Country    string       `gorm:"default:France" json:"country"`
	Billing    bool         `gorm:"not null;default:false" json:"billing"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Contact of a tiers. PrimaryQuote and PrimaryInvoice are each unique per
// tiers.
type Contact struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	TiersID        snowflake.ID `gorm:"not null;index" json:"tiers_id"`
	LastName       string       `json:"last_name,omitempty"`
	FirstName      string       `json:"first_name,omitempty"`
	Role           string       `json:"role,omitempty"`
	Email          string       `json:"email,omitempty"`
	Phone          string       `json:"phone,omitempty"`
	PrimaryQuote   bool         `gorm:"not null;default:false" json:"primary_quote"`
	PrimaryInvoice bool         `gorm:"not null;default:false" json:"primary_invoice"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

type ActivityKind string

const (
	ActivityCreation     ActivityKind = "creation"
	ActivityModification ActivityKind = "modification"
	ActivityCall         ActivityKind = "call"
	ActivityEmail        ActivityKind = "email"
	ActivityMeeting      ActivityKind = "meeting"
	ActivityQuote        ActivityKind = "quote"
	ActivityInvoice      ActivityKind = "invoice"
	ActivityOther        ActivityKind = "other"
)

func (k ActivityKind) Valid() bool {
	switch k {
	case ActivityCreation, ActivityModification, ActivityCall, ActivityEmail,
		ActivityMeeting, ActivityQuote, ActivityInvoice, ActivityOther:
		return true
	}
	return false
}

// Activity is one entry of a tiers' journal.
type Activity struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	TiersID   snowflake.ID  `gorm:"not null;index:idx_activity_tiers_date" json:"tiers_id"`
	Kind      ActivityKind  `gorm:"not null;index" json:"kind"`
	UserID    *snowflake.ID `gorm:"index" json:"user_id,omitempty"`
	Content   string        `gorm:"not null" json:"content"`
	CreatedAt time.Time     `gorm:"not null;index:idx_activity_tiers_date;default:CURRENT_TIMESTAMP" json:"created_at"`
}
