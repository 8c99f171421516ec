package domain

import (
	"context"
	"errors"

	"github.com/batipilot/batipilot/pkg/db/pagination"
)

type CreateTiersRequest struct {
	Kind      TiersKind `json:"kind"`
	Name      string    `json:"name"`
	SIRET     string    `json:"siret"`
	VATNumber string    `json:"vat_number"`
	Flags     []string  `json:"flags"`
}

type UpdateTiersRequest struct {
	ID        string     `json:"-"`
	Kind      *TiersKind `json:"kind"`
	Name      *string    `json:"name"`
	SIRET     *string    `json:"siret"`
	VATNumber *string    `json:"vat_number"`
	Flags     *[]string  `json:"flags"`
}

type ListTiersRequest struct {
	pagination.Pagination
	Search          string `form:"search"`
	Kind            string `form:"kind"`
	Flag            string `form:"flag"`
	IncludeArchived bool   `form:"include_archived"`
}

type ListTiersResponse struct {
	pagination.PageInfo
	Tiers []Tiers `json:"tiers"`
}

type UpsertAddressRequest struct {
	TiersID    string `json:"-"`
	AddressID  string `json:"-"`
	Label      string `json:"label"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Billing    bool   `json:"billing"`
}

type UpsertContactRequest struct {
	TiersID        string `json:"-"`
	ContactID      string `json:"-"`
	LastName       string `json:"last_name"`
	FirstName      string `json:"first_name"`
	Role           string `json:"role"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	PrimaryQuote   bool   `json:"primary_quote"`
	PrimaryInvoice bool   `json:"primary_invoice"`
}

type AddActivityRequest struct {
	TiersID string       `json:"-"`
	Kind    ActivityKind `json:"kind"`
	Content string       `json:"content"`
}

type Service interface {
	Create(context.Context, CreateTiersRequest) (Tiers, error)
	Get(ctx context.Context, id string) (Tiers, error)
	Update(context.Context, UpdateTiersRequest) (Tiers, error)
	List(context.Context, ListTiersRequest) (ListTiersResponse, error)
	Archive(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error

	AddAddress(context.Context, UpsertAddressRequest) (Address, error)
	UpdateAddress(context.Context, UpsertAddressRequest) (Address, error)
	DeleteAddress(ctx context.Context, tiersID, addressID string) error
	ListAddresses(ctx context.Context, tiersID string) ([]Address, error)

	AddContact(context.Context, UpsertContactRequest) (Contact, error)
	UpdateContact(context.Context, UpsertContactRequest) (Contact, error)
	DeleteContact(ctx context.Context, tiersID, contactID string) error
	ListContacts(ctx context.Context, tiersID string) ([]Contact, error)

	AddActivity(context.Context, AddActivityRequest) (Activity, error)
	ListActivities(ctx context.Context, tiersID string) ([]Activity, error)
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidKind     = errors.New("invalid_kind")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidFlag     = errors.New("invalid_flag")
	ErrInvalidActivity = errors.New("invalid_activity")
	ErrNotFound        = errors.New("not_found")
	ErrArchived        = errors.New("tiers_archived")
	ErrNotArchived     = errors.New("tiers_not_archived")
)
