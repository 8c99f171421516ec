package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/batipilot/batipilot/pkg/db/pagination"
)

type UpsertCategoryRequest struct {
	ID          string `json:"-"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CreateEquipmentRequest struct {
	Name          string           `json:"name"`
	SerialNumber  string           `json:"serial_number"`
	CategoryID    string           `json:"category_id"`
	PurchaseDate  *time.Time       `json:"purchase_date"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	Location      string           `json:"location"`
	Notes         string           `json:"notes"`
}

type UpdateEquipmentRequest struct {
	ID            string           `json:"-"`
	Name          *string          `json:"name"`
	CategoryID    *string          `json:"category_id"`
	PurchaseDate  *time.Time       `json:"purchase_date"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	Available     *bool            `json:"available"`
	Notes         *string          `json:"notes"`
}

type ListEquipmentRequest struct {
	pagination.Pagination
	Search     string `form:"search"`
	CategoryID string `form:"category_id"`
	Available  *bool  `form:"available"`
}

type ListEquipmentResponse struct {
	pagination.PageInfo
	Equipment []Equipment `json:"equipment"`
}

// RecordMovementRequest relocates a piece of equipment. When ReservationID
// is set the movement fulfills that reservation.
type RecordMovementRequest struct {
	EquipmentID   string     `json:"-"`
	ToLocation    string     `json:"to_location"`
	MovedAt       *time.Time `json:"moved_at"`
	EndDate       *time.Time `json:"end_date"`
	ReservationID string     `json:"reservation_id"`
	Note          string     `json:"note"`
}

type CreateReservationRequest struct {
	EquipmentID string    `json:"-"`
	Site        string    `json:"site"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Note        string    `json:"note"`
}

type ListReservationsRequest struct {
	EquipmentID string `json:"-"`
	Status      string `form:"status"`
}

type Service interface {
	CreateCategory(context.Context, UpsertCategoryRequest) (Category, error)
	UpdateCategory(context.Context, UpsertCategoryRequest) (Category, error)
	DeleteCategory(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]Category, error)

	Create(context.Context, CreateEquipmentRequest) (Equipment, error)
	Get(ctx context.Context, id string) (Equipment, error)
	Update(context.Context, UpdateEquipmentRequest) (Equipment, error)
	Delete(ctx context.Context, id string) error
	List(context.Context, ListEquipmentRequest) (ListEquipmentResponse, error)

	RecordMovement(context.Context, RecordMovementRequest) (Movement, error)
	ListMovements(ctx context.Context, equipmentID string) ([]Movement, error)

	Reserve(context.Context, CreateReservationRequest) (Reservation, error)
	CancelReservation(ctx context.Context, equipmentID, reservationID string) error
	ListReservations(context.Context, ListReservationsRequest) ([]Reservation, error)

	// ExpireReservations moves every reserved window whose end date has
	// passed to expired. Used by the background sweep.
	ExpireReservations(ctx context.Context) (int, error)
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidSerial       = errors.New("invalid_serial_number")
	ErrInvalidCategory     = errors.New("invalid_category")
	ErrInvalidLocation     = errors.New("invalid_location")
	ErrInvalidWindow       = errors.New("invalid_reservation_window")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrNotFound            = errors.New("not_found")
	ErrReservationNotFound = errors.New("reservation_not_found")
	ErrSerialTaken         = errors.New("serial_number_taken")
	ErrNameTaken           = errors.New("name_taken")
	ErrCategoryInUse       = errors.New("category_in_use")
	ErrOverlapping         = errors.New("overlapping_reservation")
	ErrNotReserved         = errors.New("reservation_not_active")
)
