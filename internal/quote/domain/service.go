package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/batipilot/batipilot/pkg/db/pagination"
)

type CreateQuoteRequest struct {
	TiersID      string           `json:"tiers_id"`
	Subject      string           `json:"subject"`
	ValidUntil   *time.Time       `json:"valid_until"`
	Comment      string           `json:"comment"`
	PaymentTerms string           `json:"payment_terms"`
	GlobalMargin *decimal.Decimal `json:"global_margin"`
}

type UpdateQuoteRequest struct {
	ID           string           `json:"-"`
	Subject      *string          `json:"subject"`
	ValidUntil   *time.Time       `json:"valid_until"`
	Comment      *string          `json:"comment"`
	PaymentTerms *string          `json:"payment_terms"`
	GlobalMargin *decimal.Decimal `json:"global_margin"`
}

type ListQuotesRequest struct {
	pagination.Pagination
	Search  string `form:"search"`
	Status  string `form:"status"`
	TiersID string `form:"tiers_id"`
}

type ListQuotesResponse struct {
	pagination.PageInfo
	Quotes []Quote `json:"quotes"`
}

// QuoteDetail is a quote with its ordered items.
type QuoteDetail struct {
	Quote
	Items []QuoteItem `json:"items"`
}

// ItemInput describes one line for add or replace-all. For work lines with a
// zero unit price, the description, unit and a suggested price are pulled
// from the referenced composite work.
type ItemInput struct {
	Kind            ItemKind         `json:"kind"`
	ParentID        string           `json:"parent_id"`
	Description     string           `json:"description"`
	Unit            string           `json:"unit"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
	VATRate         decimal.Decimal  `json:"vat_rate"`
	MarginPercent   *decimal.Decimal `json:"margin_percent"`
	WorkID          string           `json:"work_id"`
}

type AddItemRequest struct {
	QuoteID string `json:"-"`
	ItemInput
}

type UpdateItemRequest struct {
	QuoteID         string           `json:"-"`
	ItemID          string           `json:"-"`
	Description     *string          `json:"description"`
	Unit            *string          `json:"unit"`
	Quantity        *decimal.Decimal `json:"quantity"`
	UnitPrice       *decimal.Decimal `json:"unit_price"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
	VATRate         *decimal.Decimal `json:"vat_rate"`
	MarginPercent   *decimal.Decimal `json:"margin_percent"`
}

type ReplaceItemsRequest struct {
	QuoteID string      `json:"-"`
	Items   []ItemInput `json:"items"`
}

type ReorderItemsRequest struct {
	QuoteID string   `json:"-"`
	ItemIDs []string `json:"item_ids"`
}

type GenerateFromOpportunityRequest struct {
	OpportunityID string     `json:"-"`
	Subject       string     `json:"subject"`
	ValidUntil    *time.Time `json:"valid_until"`
}

type Stats struct {
	CountByStatus  map[Status]int  `json:"count_by_status"`
	TotalDraft     decimal.Decimal `json:"total_draft"`
	TotalSent      decimal.Decimal `json:"total_sent"`
	TotalAccepted  decimal.Decimal `json:"total_accepted"`
	AcceptanceRate decimal.Decimal `json:"acceptance_rate"`
}

type Service interface {
	Create(context.Context, CreateQuoteRequest) (Quote, error)
	Get(ctx context.Context, id string) (QuoteDetail, error)
	Update(context.Context, UpdateQuoteRequest) (Quote, error)
	Delete(ctx context.Context, id string) error
	List(context.Context, ListQuotesRequest) (ListQuotesResponse, error)

	Send(ctx context.Context, id string) (Quote, error)
	Accept(ctx context.Context, id string) (Quote, error)
	Reject(ctx context.Context, id string) (Quote, error)
	Cancel(ctx context.Context, id string) (Quote, error)

	Duplicate(ctx context.Context, id string) (Quote, error)
	GenerateFromOpportunity(context.Context, GenerateFromOpportunityRequest) (Quote, error)

	AddItem(context.Context, AddItemRequest) (QuoteItem, error)
	UpdateItem(context.Context, UpdateItemRequest) (QuoteItem, error)
	DeleteItem(ctx context.Context, quoteID, itemID string) error
	ListItems(ctx context.Context, quoteID string) ([]QuoteItem, error)
	ReplaceItems(context.Context, ReplaceItemsRequest) (QuoteDetail, error)
	ReorderItems(context.Context, ReorderItemsRequest) ([]QuoteItem, error)

	Stats(ctx context.Context) (Stats, error)

	// ExpireOverdue moves every sent quote whose validity date has passed
	// to expired. Used by the background sweep.
	ExpireOverdue(ctx context.Context) (int, error)
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidSubject    = errors.New("invalid_subject")
	ErrInvalidItem       = errors.New("invalid_item")
	ErrInvalidTiers      = errors.New("invalid_tiers")
	ErrInvalidKind       = errors.New("invalid_kind")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidUnitPrice  = errors.New("invalid_unit_price")
	ErrInvalidDiscount   = errors.New("invalid_discount")
	ErrInvalidVATRate    = errors.New("invalid_vat_rate")
	ErrInvalidParentItem = errors.New("invalid_parent_item")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidWork       = errors.New("invalid_work")
	ErrNotFound          = errors.New("not_found")
	ErrItemNotFound      = errors.New("item_not_found")
	ErrNotEditable       = errors.New("quote_not_editable")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrOpportunityClosed = errors.New("opportunity_closed")
)
