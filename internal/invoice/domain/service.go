package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/batipilot/batipilot/pkg/db/pagination"
)

// CreateFromQuoteRequest builds a draft invoice out of an accepted quote,
// copying its lines and totals.
type CreateFromQuoteRequest struct {
	QuoteID      string `json:"quote_id"`
	Subject      string `json:"subject"`
	PaymentTerms string `json:"payment_terms"`
}

type UpdateInvoiceRequest struct {
	ID           string     `json:"-"`
	Subject      *string    `json:"subject"`
	DueDate      *time.Time `json:"due_date"`
	PaymentTerms *string    `json:"payment_terms"`
}

type ListInvoicesRequest struct {
	pagination.Pagination
	Search  string `form:"search"`
	Status  string `form:"status"`
	Kind    string `form:"kind"`
	TiersID string `form:"tiers_id"`
}

type ListInvoicesResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

// InvoiceDetail is an invoice with its ordered lines.
type InvoiceDetail struct {
	Invoice
	Lines []InvoiceLine `json:"lines"`
}

type LineInput struct {
	Kind            LineKind        `json:"kind"`
	Description     string          `json:"description"`
	Unit            string          `json:"unit"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	VATRate         decimal.Decimal `json:"vat_rate"`
}

type AddLineRequest struct {
	InvoiceID string `json:"-"`
	LineInput
}

type UpdateLineRequest struct {
	InvoiceID       string           `json:"-"`
	LineID          string           `json:"-"`
	Description     *string          `json:"description"`
	Unit            *string          `json:"unit"`
	Quantity        *decimal.Decimal `json:"quantity"`
	UnitPrice       *decimal.Decimal `json:"unit_price"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
	VATRate         *decimal.Decimal `json:"vat_rate"`
}

type RecordPaymentRequest struct {
	InvoiceID string          `json:"-"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    *time.Time      `json:"paid_at"`
	Method    PaymentMethod   `json:"method"`
	Reference string          `json:"reference"`
	Note      string          `json:"note"`
}

type CreateCreditNoteRequest struct {
	InvoiceID string `json:"-"`
	Reason    string `json:"reason"`
}

type Service interface {
	CreateFromQuote(context.Context, CreateFromQuoteRequest) (Invoice, error)
	Get(ctx context.Context, id string) (InvoiceDetail, error)
	Update(context.Context, UpdateInvoiceRequest) (Invoice, error)
	Delete(ctx context.Context, id string) error
	List(context.Context, ListInvoicesRequest) (ListInvoicesResponse, error)

	// Issue moves a draft invoice to issued, stamping the issue date and
	// the due date and freezing its lines.
	Issue(ctx context.Context, id string) (Invoice, error)

	AddLine(context.Context, AddLineRequest) (InvoiceLine, error)
	UpdateLine(context.Context, UpdateLineRequest) (InvoiceLine, error)
	DeleteLine(ctx context.Context, invoiceID, lineID string) error
	ListLines(ctx context.Context, invoiceID string) ([]InvoiceLine, error)

	RecordPayment(context.Context, RecordPaymentRequest) (Payment, error)
	DeletePayment(ctx context.Context, invoiceID, paymentID string) error
	ListPayments(ctx context.Context, invoiceID string) ([]Payment, error)

	CreateCreditNote(context.Context, CreateCreditNoteRequest) (Invoice, error)
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidSubject    = errors.New("invalid_subject")
	ErrInvalidLine       = errors.New("invalid_line")
	ErrInvalidKind       = errors.New("invalid_kind")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidUnitPrice  = errors.New("invalid_unit_price")
	ErrInvalidDiscount   = errors.New("invalid_discount")
	ErrInvalidVATRate    = errors.New("invalid_vat_rate")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidMethod     = errors.New("invalid_method")
	ErrNotFound          = errors.New("not_found")
	ErrLineNotFound      = errors.New("line_not_found")
	ErrPaymentNotFound   = errors.New("payment_not_found")
	ErrQuoteNotAccepted  = errors.New("quote_not_accepted")
	ErrNotEditable       = errors.New("invoice_not_editable")
	ErrNotPayable        = errors.New("invoice_not_payable")
	ErrEmptyInvoice      = errors.New("invoice_has_no_lines")
	ErrPaymentExceedsDue = errors.New("payment_exceeds_balance")
	ErrNotCreditable     = errors.New("invoice_not_creditable")
	ErrAlreadyIssued     = errors.New("invoice_already_issued")
)
