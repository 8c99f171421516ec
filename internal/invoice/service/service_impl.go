package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/batipilot/batipilot/internal/clock"
	"github.com/batipilot/batipilot/internal/config"
	"github.com/batipilot/batipilot/internal/invoice/domain"
	"github.com/batipilot/batipilot/internal/numbering"
	"github.com/batipilot/batipilot/internal/observability/metrics"
	quotedomain "github.com/batipilot/batipilot/internal/quote/domain"
	"github.com/batipilot/batipilot/pkg/db/option"
	"github.com/batipilot/batipilot/pkg/db/pagination"
	"github.com/batipilot/batipilot/pkg/repository"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  config.Config
	Numbers *numbering.Allocator
	Metrics *metrics.DocumentMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	cfg     config.Config
	numbers *numbering.Allocator
	metrics *metrics.DocumentMetrics

	invoiceRepo repository.Repository[domain.Invoice]
	lineRepo    repository.Repository[domain.InvoiceLine]
	paymentRepo repository.Repository[domain.Payment]
	quoteRepo   repository.Repository[quotedomain.Quote]
	itemRepo    repository.Repository[quotedomain.QuoteItem]
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("invoice.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		cfg:     p.Config,
		numbers: p.Numbers,
		metrics: p.Metrics,

		invoiceRepo: repository.ProvideStore[domain.Invoice](p.DB),
		lineRepo:    repository.ProvideStore[domain.InvoiceLine](p.DB),
		paymentRepo: repository.ProvideStore[domain.Payment](p.DB),
		quoteRepo:   repository.ProvideStore[quotedomain.Quote](p.DB),
		itemRepo:    repository.ProvideStore[quotedomain.QuoteItem](p.DB),
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func (s *Service) find(ctx context.Context, rawID string) (*domain.Invoice, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	invoice, err := s.invoiceRepo.FindOne(ctx, &domain.Invoice{ID: id})
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrNotFound
	}
	return invoice, nil
}

func (s *Service) findDraft(ctx context.Context, rawID string) (*domain.Invoice, error) {
	invoice, err := s.find(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if invoice.Status != domain.StatusDraft {
		return nil, domain.ErrNotEditable
	}
	return invoice, nil
}

func (s *Service) loadLines(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) ([]domain.InvoiceLine, error) {
	rows, err := s.lineRepo.WithTrx(tx).Find(ctx, &domain.InvoiceLine{InvoiceID: invoiceID},
		option.WithOrder("position ASC, id ASC"))
	if err != nil {
		return nil, err
	}
	lines := make([]domain.InvoiceLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, *row)
	}
	return lines, nil
}

// CreateFromQuote copies an accepted quote into a draft invoice, lines and
// totals included. The invoice number is allocated on the spot.
func (s *Service) CreateFromQuote(ctx context.Context, req domain.CreateFromQuoteRequest) (domain.Invoice, error) {
	quoteID, err := parseID(req.QuoteID)
	if err != nil {
		return domain.Invoice{}, err
	}
	quote, err := s.quoteRepo.FindOne(ctx, &quotedomain.Quote{ID: quoteID})
	if err != nil {
		return domain.Invoice{}, err
	}
	if quote == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}
	if quote.Status != quotedomain.StatusAccepted {
		return domain.Invoice{}, domain.ErrQuoteNotAccepted
	}

	items, err := s.itemRepo.Find(ctx, &quotedomain.QuoteItem{QuoteID: quote.ID},
		option.WithOrder("position ASC, id ASC"))
	if err != nil {
		return domain.Invoice{}, err
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = quote.Subject
	}
	paymentTerms := strings.TrimSpace(req.PaymentTerms)
	if paymentTerms == "" {
		paymentTerms = quote.PaymentTerms
	}

	now := s.clock.Now()
	invoice := domain.Invoice{
		ID:           s.genID.Generate(),
		Kind:         domain.KindInvoice,
		TiersID:      quote.TiersID,
		QuoteID:      &quote.ID,
		Subject:      subject,
		Status:       domain.StatusDraft,
		PaymentTerms: paymentTerms,
		TotalHT:      decimal.Zero,
		TotalVAT:     decimal.Zero,
		TotalTTC:     decimal.Zero,
		PaidAmount:   decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.numbers.Next(ctx, tx, s.cfg.InvoiceNumberPrefix, now.Year())
		if err != nil {
			return err
		}
		invoice.Number = number
		if err := s.invoiceRepo.WithTrx(tx).Create(ctx, &invoice); err != nil {
			return err
		}

		idMap := make(map[snowflake.ID]snowflake.ID, len(items))
		lines := make([]*domain.InvoiceLine, 0, len(items))
		for _, item := range items {
			line := &domain.InvoiceLine{
				ID:              s.genID.Generate(),
				InvoiceID:       invoice.ID,
				Kind:            domain.LineKind(item.Kind),
				Position:        item.Position,
				Description:     item.Description,
				Unit:            item.Unit,
				Quantity:        item.Quantity,
				UnitPrice:       item.UnitPrice,
				DiscountPercent: item.DiscountPercent,
				VATRate:         item.VATRate,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			line.ComputeTotals()
			idMap[item.ID] = line.ID
			lines = append(lines, line)
		}
		for i, item := range items {
			if item.ParentID != nil {
				if mapped, ok := idMap[*item.ParentID]; ok {
					lines[i].ParentID = &mapped
				}
			}
		}
		if len(lines) > 0 {
			if err := s.lineRepo.WithTrx(tx).BatchCreate(ctx, lines); err != nil {
				return err
			}
		}
		return s.recomputeTotals(ctx, tx, &invoice)
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.log.Info("invoice created from quote",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("number", invoice.Number),
		zap.String("quote_number", quote.Number))

	return invoice, nil
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.InvoiceDetail, error) {
	invoice, err := s.find(ctx, rawID)
	if err != nil {
		return domain.InvoiceDetail{}, err
	}
	lines, err := s.loadLines(ctx, s.db, invoice.ID)
	if err != nil {
		return domain.InvoiceDetail{}, err
	}
	return domain.InvoiceDetail{Invoice: *invoice, Lines: lines}, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateInvoiceRequest) (domain.Invoice, error) {
	invoice, err := s.findDraft(ctx, req.ID)
	if err != nil {
		return domain.Invoice{}, err
	}

	if req.Subject != nil {
		subject := strings.TrimSpace(*req.Subject)
		if subject == "" {
			return domain.Invoice{}, domain.ErrInvalidSubject
		}
		invoice.Subject = subject
	}
	if req.DueDate != nil && !req.DueDate.IsZero() {
		invoice.DueDate = req.DueDate
	}
	if req.PaymentTerms != nil {
		invoice.PaymentTerms = strings.TrimSpace(*req.PaymentTerms)
	}

	invoice.UpdatedAt = s.clock.Now()
	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		return domain.Invoice{}, err
	}
	return *invoice, nil
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	invoice, err := s.findDraft(ctx, rawID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lineRepo.WithTrx(tx).DeleteWhere(ctx, &domain.InvoiceLine{InvoiceID: invoice.ID}); err != nil {
			return err
		}
		return s.invoiceRepo.WithTrx(tx).Delete(ctx, invoice.ID)
	})
}

func (s *Service) List(ctx context.Context, req domain.ListInvoicesRequest) (domain.ListInvoicesResponse, error) {
	opts := []option.QueryOption{
		option.WithOrder("created_at DESC, id DESC"),
		option.ApplyPagination(req.Pagination),
	}
	if req.Search != "" {
		opts = append(opts, option.WithSearch(req.Search, "number", "subject"))
	}
	filter := &domain.Invoice{}
	if status := strings.TrimSpace(req.Status); status != "" {
		if !domain.Status(status).Valid() {
			return domain.ListInvoicesResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = domain.Status(status)
	}
	if kind := strings.TrimSpace(req.Kind); kind != "" {
		filter.Kind = domain.Kind(kind)
	}
	if raw := strings.TrimSpace(req.TiersID); raw != "" {
		tiersID, err := parseID(raw)
		if err != nil {
			return domain.ListInvoicesResponse{}, err
		}
		filter.TiersID = tiersID
	}

	rows, err := s.invoiceRepo.Find(ctx, filter, opts...)
	if err != nil {
		return domain.ListInvoicesResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	pageInfo := pagination.BuildCursorPageInfo(rows, pageSize, func(i *domain.Invoice) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        i.ID.String(),
			CreatedAt: i.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(rows) > pageSize {
		rows = rows[:pageSize]
	}

	invoices := make([]domain.Invoice, 0, len(rows))
	for _, row := range rows {
		invoices = append(invoices, *row)
	}

	resp := domain.ListInvoicesResponse{Invoices: invoices}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Issue(ctx context.Context, rawID string) (domain.Invoice, error) {
	invoice, err := s.find(ctx, rawID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice.Status != domain.StatusDraft {
		return domain.Invoice{}, domain.ErrAlreadyIssued
	}

	lines, err := s.loadLines(ctx, s.db, invoice.ID)
	if err != nil {
		return domain.Invoice{}, err
	}
	priced := 0
	for _, line := range lines {
		if !line.Kind.Grouping() {
			priced++
		}
	}
	if priced == 0 {
		return domain.Invoice{}, domain.ErrEmptyInvoice
	}

	now := s.clock.Now()
	invoice.Status = domain.StatusIssued
	invoice.IssueDate = &now
	if invoice.DueDate == nil {
		due := now.AddDate(0, 0, s.cfg.InvoiceDueDays)
		invoice.DueDate = &due
	}
	invoice.UpdatedAt = now

	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		return domain.Invoice{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordTransition("invoice", string(domain.StatusIssued))
	}
	s.log.Info("invoice issued",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("number", invoice.Number))

	return *invoice, nil
}

func (s *Service) recomputeTotals(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) error {
	lines, err := s.loadLines(ctx, tx, invoice.ID)
	if err != nil {
		return err
	}
	totalHT, totalVAT, totalTTC := domain.SumLines(lines)
	invoice.TotalHT = totalHT
	invoice.TotalVAT = totalVAT
	invoice.TotalTTC = totalTTC
	invoice.UpdatedAt = s.clock.Now()
	return s.invoiceRepo.WithTrx(tx).Update(ctx, invoice.ID, map[string]any{
		"total_ht":   totalHT,
		"total_vat":  totalVAT,
		"total_ttc":  totalTTC,
		"updated_at": invoice.UpdatedAt,
	})
}

func validateLine(line *domain.InvoiceLine) error {
	if line.Description == "" {
		return domain.ErrInvalidLine
	}
	if line.Kind.Grouping() {
		return nil
	}
	if !line.Quantity.IsPositive() {
		return domain.ErrInvalidQuantity
	}
	if line.UnitPrice.IsNegative() && line.Kind != domain.LineDiscount {
		return domain.ErrInvalidUnitPrice
	}
	if line.DiscountPercent.IsNegative() || line.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return domain.ErrInvalidDiscount
	}
	if !quotedomain.ValidVATRate(line.VATRate) {
		return domain.ErrInvalidVATRate
	}
	return nil
}

func (s *Service) AddLine(ctx context.Context, req domain.AddLineRequest) (domain.InvoiceLine, error) {
	invoice, err := s.findDraft(ctx, req.InvoiceID)
	if err != nil {
		return domain.InvoiceLine{}, err
	}
	if !req.Kind.Valid() {
		return domain.InvoiceLine{}, domain.ErrInvalidKind
	}

	var created domain.InvoiceLine
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := s.lineRepo.WithTrx(tx).Count(ctx, &domain.InvoiceLine{InvoiceID: invoice.ID})
		if err != nil {
			return err
		}

		now := s.clock.Now()
		line := &domain.InvoiceLine{
			ID:              s.genID.Generate(),
			InvoiceID:       invoice.ID,
			Kind:            req.Kind,
			Position:        int(count),
			Description:     strings.TrimSpace(req.Description),
			Unit:            strings.TrimSpace(req.Unit),
			Quantity:        req.Quantity,
			UnitPrice:       req.UnitPrice,
			DiscountPercent: req.DiscountPercent,
			VATRate:         req.VATRate,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := validateLine(line); err != nil {
			return err
		}
		line.ComputeTotals()

		if err := s.lineRepo.WithTrx(tx).Create(ctx, line); err != nil {
			return err
		}
		created = *line
		return s.recomputeTotals(ctx, tx, invoice)
	})
	if err != nil {
		return domain.InvoiceLine{}, err
	}
	return created, nil
}

func (s *Service) UpdateLine(ctx context.Context, req domain.UpdateLineRequest) (domain.InvoiceLine, error) {
	invoice, err := s.findDraft(ctx, req.InvoiceID)
	if err != nil {
		return domain.InvoiceLine{}, err
	}
	lineID, err := parseID(req.LineID)
	if err != nil {
		return domain.InvoiceLine{}, err
	}

	var updated domain.InvoiceLine
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		line, err := s.lineRepo.WithTrx(tx).FindOne(ctx, &domain.InvoiceLine{ID: lineID, InvoiceID: invoice.ID})
		if err != nil {
			return err
		}
		if line == nil {
			return domain.ErrLineNotFound
		}

		if req.Description != nil {
			line.Description = strings.TrimSpace(*req.Description)
		}
		if req.Unit != nil {
			line.Unit = strings.TrimSpace(*req.Unit)
		}
		if !line.Kind.Grouping() {
			if req.Quantity != nil {
				line.Quantity = *req.Quantity
			}
			if req.UnitPrice != nil {
				line.UnitPrice = *req.UnitPrice
			}
			if req.DiscountPercent != nil {
				line.DiscountPercent = *req.DiscountPercent
			}
			if req.VATRate != nil {
				line.VATRate = *req.VATRate
			}
		}
		if err := validateLine(line); err != nil {
			return err
		}

		line.ComputeTotals()
		line.UpdatedAt = s.clock.Now()
		if err := s.lineRepo.WithTrx(tx).Save(ctx, line); err != nil {
			return err
		}
		updated = *line
		return s.recomputeTotals(ctx, tx, invoice)
	})
	if err != nil {
		return domain.InvoiceLine{}, err
	}
	return updated, nil
}

func (s *Service) DeleteLine(ctx context.Context, invoiceID, lineID string) error {
	invoice, err := s.findDraft(ctx, invoiceID)
	if err != nil {
		return err
	}
	id, err := parseID(lineID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		line, err := s.lineRepo.WithTrx(tx).FindOne(ctx, &domain.InvoiceLine{ID: id, InvoiceID: invoice.ID})
		if err != nil {
			return err
		}
		if line == nil {
			return domain.ErrLineNotFound
		}
		if line.Kind.Grouping() {
			if err := tx.WithContext(ctx).
				Model(&domain.InvoiceLine{}).
				Where("invoice_id = ? AND parent_id = ?", invoice.ID, line.ID).
				Update("parent_id", line.ParentID).Error; err != nil {
				return err
			}
		}
		if err := s.lineRepo.WithTrx(tx).Delete(ctx, id); err != nil {
			return err
		}
		return s.recomputeTotals(ctx, tx, invoice)
	})
}

func (s *Service) ListLines(ctx context.Context, invoiceID string) ([]domain.InvoiceLine, error) {
	invoice, err := s.find(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.loadLines(ctx, s.db, invoice.ID)
}

// RecordPayment registers a settlement and moves the invoice along
// issued -> partially_paid -> paid inside one transaction. Overpayment is
// rejected rather than carried as credit.
func (s *Service) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (domain.Payment, error) {
	invoiceID, err := parseID(req.InvoiceID)
	if err != nil {
		return domain.Payment{}, err
	}
	if !req.Amount.IsPositive() {
		return domain.Payment{}, domain.ErrInvalidAmount
	}
	if !req.Method.Valid() {
		return domain.Payment{}, domain.ErrInvalidMethod
	}

	var payment domain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.invoiceRepo.WithTrx(tx).FindOne(ctx, &domain.Invoice{ID: invoiceID})
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		if invoice.Kind != domain.KindInvoice || !invoice.Status.Payable() {
			return domain.ErrNotPayable
		}
		if req.Amount.GreaterThan(invoice.RemainingAmount()) {
			return domain.ErrPaymentExceedsDue
		}

		now := s.clock.Now()
		paidAt := now
		if req.PaidAt != nil && !req.PaidAt.IsZero() {
			paidAt = *req.PaidAt
		}
		reference := strings.TrimSpace(req.Reference)
		if reference == "" {
			reference = uuid.NewString()
		}

		payment = domain.Payment{
			ID:        s.genID.Generate(),
			InvoiceID: invoice.ID,
			Amount:    req.Amount,
			PaidAt:    paidAt,
			Method:    req.Method,
			Reference: reference,
			Note:      strings.TrimSpace(req.Note),
			CreatedAt: now,
		}
		if err := s.paymentRepo.WithTrx(tx).Create(ctx, &payment); err != nil {
			return err
		}

		invoice.PaidAmount = invoice.PaidAmount.Add(req.Amount)
		status := domain.StatusPartiallyPaid
		if invoice.RemainingAmount().IsZero() {
			status = domain.StatusPaid
		}
		if err := s.invoiceRepo.WithTrx(tx).Update(ctx, invoice.ID, map[string]any{
			"paid_amount": invoice.PaidAmount,
			"status":      status,
			"updated_at":  now,
		}); err != nil {
			return err
		}

		if s.metrics != nil {
			s.metrics.RecordTransition("invoice", string(status))
		}
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.log.Info("payment recorded",
		zap.String("invoice_id", req.InvoiceID),
		zap.String("amount", payment.Amount.String()),
		zap.String("method", string(payment.Method)))

	return payment, nil
}

// DeletePayment reverses a mistyped settlement and rolls the paid amount and
// status back in the same transaction.
func (s *Service) DeletePayment(ctx context.Context, invoiceID, paymentID string) error {
	invID, err := parseID(invoiceID)
	if err != nil {
		return err
	}
	payID, err := parseID(paymentID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.invoiceRepo.WithTrx(tx).FindOne(ctx, &domain.Invoice{ID: invID})
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		payment, err := s.paymentRepo.WithTrx(tx).FindOne(ctx, &domain.Payment{ID: payID, InvoiceID: invID})
		if err != nil {
			return err
		}
		if payment == nil {
			return domain.ErrPaymentNotFound
		}
		if err := s.paymentRepo.WithTrx(tx).Delete(ctx, payID); err != nil {
			return err
		}

		invoice.PaidAmount = invoice.PaidAmount.Sub(payment.Amount)
		status := domain.StatusIssued
		if invoice.PaidAmount.IsPositive() {
			status = domain.StatusPartiallyPaid
		}
		return s.invoiceRepo.WithTrx(tx).Update(ctx, invoice.ID, map[string]any{
			"paid_amount": invoice.PaidAmount,
			"status":      status,
			"updated_at":  s.clock.Now(),
		})
	})
}

func (s *Service) ListPayments(ctx context.Context, invoiceID string) ([]domain.Payment, error) {
	invoice, err := s.find(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	rows, err := s.paymentRepo.Find(ctx, &domain.Payment{InvoiceID: invoice.ID},
		option.WithOrder("paid_at ASC, id ASC"))
	if err != nil {
		return nil, err
	}
	payments := make([]domain.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, *row)
	}
	return payments, nil
}

// CreateCreditNote issues the mirror image of an invoice: same lines with
// negated prices, linked to the original. Credit notes go out issued, there
// is no draft stage for them.
func (s *Service) CreateCreditNote(ctx context.Context, req domain.CreateCreditNoteRequest) (domain.Invoice, error) {
	original, err := s.find(ctx, req.InvoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if original.Kind != domain.KindInvoice || original.Status == domain.StatusDraft {
		return domain.Invoice{}, domain.ErrNotCreditable
	}

	lines, err := s.loadLines(ctx, s.db, original.ID)
	if err != nil {
		return domain.Invoice{}, err
	}

	now := s.clock.Now()
	subject := strings.TrimSpace(req.Reason)
	if subject == "" {
		subject = "avoir sur facture " + original.Number
	}

	creditNote := domain.Invoice{
		ID:         s.genID.Generate(),
		Kind:       domain.KindCreditNote,
		TiersID:    original.TiersID,
		QuoteID:    original.QuoteID,
		OriginalID: &original.ID,
		Subject:    subject,
		Status:     domain.StatusIssued,
		IssueDate:  &now,
		TotalHT:    decimal.Zero,
		TotalVAT:   decimal.Zero,
		TotalTTC:   decimal.Zero,
		PaidAmount: decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.numbers.Next(ctx, tx, s.cfg.CreditNotePrefix, now.Year())
		if err != nil {
			return err
		}
		creditNote.Number = number
		if err := s.invoiceRepo.WithTrx(tx).Create(ctx, &creditNote); err != nil {
			return err
		}

		idMap := make(map[snowflake.ID]snowflake.ID, len(lines))
		negated := make([]*domain.InvoiceLine, 0, len(lines))
		for _, line := range lines {
			copyLine := line
			copyLine.ID = s.genID.Generate()
			copyLine.InvoiceID = creditNote.ID
			if !copyLine.Kind.Grouping() {
				copyLine.UnitPrice = copyLine.UnitPrice.Neg()
			}
			copyLine.CreatedAt = now
			copyLine.UpdatedAt = now
			copyLine.ComputeTotals()
			idMap[line.ID] = copyLine.ID
			negated = append(negated, &copyLine)
		}
		for _, copyLine := range negated {
			if copyLine.ParentID != nil {
				if mapped, ok := idMap[*copyLine.ParentID]; ok {
					copyLine.ParentID = &mapped
				} else {
					copyLine.ParentID = nil
				}
			}
		}
		if len(negated) > 0 {
			if err := s.lineRepo.WithTrx(tx).BatchCreate(ctx, negated); err != nil {
				return err
			}
		}
		return s.recomputeTotals(ctx, tx, &creditNote)
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.log.Info("credit note created",
		zap.String("credit_note_id", creditNote.ID.String()),
		zap.String("number", creditNote.Number),
		zap.String("original_number", original.Number))

	return creditNote, nil
}
