// Package domain contains the equipment fleet models: tracked machines and
// tools, their movements between sites and forward reservations.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Category struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"not null;uniqueIndex" json:"name"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Category) TableName() string { return "equipment_categories" }

type Equipment struct {
	ID            snowflake.ID     `gorm:"primaryKey" json:"id"`
	Name          string           `gorm:"not null;index" json:"name"`
	SerialNumber  string           `gorm:"not null;uniqueIndex" json:"serial_number"`
	CategoryID    *snowflake.ID    `gorm:"index" json:"category_id,omitempty"`
	PurchaseDate  *time.Time       `json:"purchase_date,omitempty"`
	PurchasePrice *decimal.Decimal `gorm:"type:decimal(10,2)" json:"purchase_price,omitempty"`
	Location      string           `json:"location,omitempty"`
	Available     bool             `gorm:"not null;default:true" json:"available"`
	Notes         string           `json:"notes,omitempty"`
	CreatedAt     time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Equipment) TableName() string { return "equipment" }

// Movement is one relocation of a piece of equipment. The equipment's
// current location always reflects its latest movement.
type Movement struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	EquipmentID   snowflake.ID  `gorm:"not null;index" json:"equipment_id"`
	FromLocation  string        `json:"from_location,omitempty"`
	ToLocation    string        `gorm:"not null" json:"to_location"`
	MovedAt       time.Time     `gorm:"not null;index" json:"moved_at"`
	EndDate       *time.Time    `json:"end_date,omitempty"`
	ReservationID *snowflake.ID `gorm:"index" json:"reservation_id,omitempty"`
	Note          string        `json:"note,omitempty"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Movement) TableName() string { return "equipment_movements" }

// ReservationStatus is the reservation lifecycle. Expired is reached by the
// background sweep when the window passes without fulfillment.
type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "reserved"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationExpired   ReservationStatus = "expired"
	ReservationFulfilled ReservationStatus = "fulfilled"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationReserved, ReservationCancelled, ReservationExpired, ReservationFulfilled:
		return true
	}
	return false
}

// Active reports whether the reservation still blocks the window.
func (s ReservationStatus) Active() bool {
	return s == ReservationReserved
}

type Reservation struct {
	ID                  snowflake.ID      `gorm:"primaryKey" json:"id"`
	EquipmentID         snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_reservation_window" json:"equipment_id"`
	Site                string            `gorm:"not null" json:"site"`
	StartDate           time.Time         `gorm:"not null;uniqueIndex:ux_reservation_window" json:"start_date"`
	EndDate             time.Time         `gorm:"not null;uniqueIndex:ux_reservation_window" json:"end_date"`
	Status              ReservationStatus `gorm:"not null;index;default:reserved" json:"status"`
	FulfilledMovementID *snowflake.ID     `gorm:"index" json:"fulfilled_movement_id,omitempty"`
	Note                string            `json:"note,omitempty"`
	CreatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Reservation) TableName() string { return "equipment_reservations" }

// Overlaps reports whether two date windows intersect.
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.StartDate.Before(end) && start.Before(r.EndDate)
}
