package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/batipilot/batipilot/internal/clock"
	"github.com/batipilot/batipilot/internal/config"
	"github.com/batipilot/batipilot/internal/numbering"
	"github.com/batipilot/batipilot/internal/observability/metrics"
	oppdomain "github.com/batipilot/batipilot/internal/opportunity/domain"
	"github.com/batipilot/batipilot/internal/quote/domain"
	tiersdomain "github.com/batipilot/batipilot/internal/tiers/domain"
	worklibdomain "github.com/batipilot/batipilot/internal/worklib/domain"
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
	Works   worklibdomain.Service
	Metrics *metrics.DocumentMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	cfg     config.Config
	numbers *numbering.Allocator
	works   worklibdomain.Service
	metrics *metrics.DocumentMetrics

	quoteRepo repository.Repository[domain.Quote]
	itemRepo  repository.Repository[domain.QuoteItem]
	tiersRepo repository.Repository[tiersdomain.Tiers]
	oppRepo   repository.Repository[oppdomain.Opportunity]
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("quote.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		cfg:     p.Config,
		numbers: p.Numbers,
		works:   p.Works,
		metrics: p.Metrics,

		quoteRepo: repository.ProvideStore[domain.Quote](p.DB),
		itemRepo:  repository.ProvideStore[domain.QuoteItem](p.DB),
		tiersRepo: repository.ProvideStore[tiersdomain.Tiers](p.DB),
		oppRepo:   repository.ProvideStore[oppdomain.Opportunity](p.DB),
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func (s *Service) find(ctx context.Context, rawID string) (*domain.Quote, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	quote, err := s.quoteRepo.FindOne(ctx, &domain.Quote{ID: id})
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, domain.ErrNotFound
	}
	return quote, nil
}

// findEditable loads a quote and rejects anything past draft. Items and
// header fields freeze the moment a quote is sent.
func (s *Service) findEditable(ctx context.Context, rawID string) (*domain.Quote, error) {
	quote, err := s.find(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if quote.Status != domain.StatusDraft {
		return nil, domain.ErrNotEditable
	}
	return quote, nil
}

func (s *Service) defaultValidUntil() time.Time {
	return s.clock.Now().AddDate(0, 0, s.cfg.QuoteValidityDays)
}

func (s *Service) Create(ctx context.Context, req domain.CreateQuoteRequest) (domain.Quote, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return domain.Quote{}, domain.ErrInvalidSubject
	}

	tiersID, err := parseID(req.TiersID)
	if err != nil {
		return domain.Quote{}, err
	}
	tiers, err := s.tiersRepo.FindOne(ctx, &tiersdomain.Tiers{ID: tiersID})
	if err != nil {
		return domain.Quote{}, err
	}
	if tiers == nil || tiers.Archived {
		return domain.Quote{}, domain.ErrInvalidTiers
	}

	now := s.clock.Now()
	validUntil := s.defaultValidUntil()
	if req.ValidUntil != nil && !req.ValidUntil.IsZero() {
		validUntil = *req.ValidUntil
	}

	quote := domain.Quote{
		ID:           s.genID.Generate(),
		TiersID:      tiersID,
		Subject:      subject,
		Status:       domain.StatusDraft,
		ValidUntil:   validUntil,
		Comment:      strings.TrimSpace(req.Comment),
		PaymentTerms: strings.TrimSpace(req.PaymentTerms),
		GlobalMargin: req.GlobalMargin,
		TotalHT:      decimal.Zero,
		TotalVAT:     decimal.Zero,
		TotalTTC:     decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.numbers.Next(ctx, tx, s.cfg.QuoteNumberPrefix, now.Year())
		if err != nil {
			return err
		}
		quote.Number = number
		return s.quoteRepo.WithTrx(tx).Create(ctx, &quote)
	})
	if err != nil {
		return domain.Quote{}, err
	}

	s.log.Info("quote created",
		zap.String("quote_id", quote.ID.String()),
		zap.String("number", quote.Number))

	return quote, nil
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.QuoteDetail, error) {
	quote, err := s.find(ctx, rawID)
	if err != nil {
		return domain.QuoteDetail{}, err
	}
	items, err := s.loadItems(ctx, s.db, quote.ID)
	if err != nil {
		return domain.QuoteDetail{}, err
	}
	return domain.QuoteDetail{Quote: *quote, Items: items}, nil
}

func (s *Service) loadItems(ctx context.Context, tx *gorm.DB, quoteID snowflake.ID) ([]domain.QuoteItem, error) {
	rows, err := s.itemRepo.WithTrx(tx).Find(ctx, &domain.QuoteItem{QuoteID: quoteID},
		option.WithOrder("position ASC, id ASC"))
	if err != nil {
		return nil, err
	}
	items := make([]domain.QuoteItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, *row)
	}
	return items, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateQuoteRequest) (domain.Quote, error) {
	quote, err := s.findEditable(ctx, req.ID)
	if err != nil {
		return domain.Quote{}, err
	}

	if req.Subject != nil {
		subject := strings.TrimSpace(*req.Subject)
		if subject == "" {
			return domain.Quote{}, domain.ErrInvalidSubject
		}
		quote.Subject = subject
	}
	if req.ValidUntil != nil && !req.ValidUntil.IsZero() {
		quote.ValidUntil = *req.ValidUntil
	}
	if req.Comment != nil {
		quote.Comment = strings.TrimSpace(*req.Comment)
	}
	if req.PaymentTerms != nil {
		quote.PaymentTerms = strings.TrimSpace(*req.PaymentTerms)
	}
	if req.GlobalMargin != nil {
		quote.GlobalMargin = req.GlobalMargin
	}

	quote.UpdatedAt = s.clock.Now()
	if err := s.quoteRepo.Save(ctx, quote); err != nil {
		return domain.Quote{}, err
	}
	return *quote, nil
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	quote, err := s.findEditable(ctx, rawID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.itemRepo.WithTrx(tx).DeleteWhere(ctx, &domain.QuoteItem{QuoteID: quote.ID}); err != nil {
			return err
		}
		return s.quoteRepo.WithTrx(tx).Delete(ctx, quote.ID)
	})
}

func (s *Service) List(ctx context.Context, req domain.ListQuotesRequest) (domain.ListQuotesResponse, error) {
	opts := []option.QueryOption{
		option.WithOrder("created_at DESC, id DESC"),
		option.ApplyPagination(req.Pagination),
	}
	if req.Search != "" {
		opts = append(opts, option.WithSearch(req.Search, "number", "subject"))
	}
	filter := &domain.Quote{}
	if status := strings.TrimSpace(req.Status); status != "" {
		if !domain.Status(status).Valid() {
			return domain.ListQuotesResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = domain.Status(status)
	}
	if raw := strings.TrimSpace(req.TiersID); raw != "" {
		tiersID, err := parseID(raw)
		if err != nil {
			return domain.ListQuotesResponse{}, err
		}
		filter.TiersID = tiersID
	}

	items, err := s.quoteRepo.Find(ctx, filter, opts...)
	if err != nil {
		return domain.ListQuotesResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(q *domain.Quote) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        q.ID.String(),
			CreatedAt: q.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	quotes := make([]domain.Quote, 0, len(items))
	for _, item := range items {
		quotes = append(quotes, *item)
	}

	resp := domain.ListQuotesResponse{Quotes: quotes}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

// transition applies the status machine and persists the result. The
// opportunity cascade on accept/reject is best effort: a missing or already
// closed opportunity never fails the quote transition.
func (s *Service) transition(ctx context.Context, rawID string, to domain.Status) (domain.Quote, error) {
	quote, err := s.find(ctx, rawID)
	if err != nil {
		return domain.Quote{}, err
	}
	if err := domain.Transition(quote.Status, to); err != nil {
		return domain.Quote{}, err
	}

	from := quote.Status
	now := s.clock.Now()
	quote.Status = to
	quote.UpdatedAt = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.quoteRepo.WithTrx(tx).Save(ctx, quote); err != nil {
			return err
		}
		switch to {
		case domain.StatusAccepted:
			return s.cascadeOpportunity(ctx, tx, quote, oppdomain.StageWon, now)
		case domain.StatusRejected:
			return s.cascadeOpportunity(ctx, tx, quote, oppdomain.StageLost, now)
		}
		return nil
	})
	if err != nil {
		return domain.Quote{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordTransition("quote", string(to))
	}
	s.log.Info("quote status changed",
		zap.String("quote_id", quote.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	return *quote, nil
}

func (s *Service) cascadeOpportunity(ctx context.Context, tx *gorm.DB, quote *domain.Quote, stage oppdomain.Stage, now time.Time) error {
	if quote.OpportunityID == nil {
		return nil
	}
	opp, err := s.oppRepo.WithTrx(tx).FindOne(ctx, &oppdomain.Opportunity{ID: *quote.OpportunityID})
	if err != nil {
		return err
	}
	if opp == nil || opp.Stage.Closed() {
		return nil
	}
	if stage == oppdomain.StageLost {
		reason := oppdomain.LossOther
		opp.LossReason = &reason
		opp.LossDescription = "devis " + quote.Number + " refuse"
	}
	oppdomain.ApplyStage(opp, stage, now)
	return s.oppRepo.WithTrx(tx).Save(ctx, opp)
}

func (s *Service) Send(ctx context.Context, id string) (domain.Quote, error) {
	return s.transition(ctx, id, domain.StatusSent)
}

func (s *Service) Accept(ctx context.Context, id string) (domain.Quote, error) {
	return s.transition(ctx, id, domain.StatusAccepted)
}

func (s *Service) Reject(ctx context.Context, id string) (domain.Quote, error) {
	return s.transition(ctx, id, domain.StatusRejected)
}

func (s *Service) Cancel(ctx context.Context, id string) (domain.Quote, error) {
	return s.transition(ctx, id, domain.StatusCancelled)
}

// Duplicate copies a quote of any status into a fresh draft with a new
// number and today's validity window.
func (s *Service) Duplicate(ctx context.Context, rawID string) (domain.Quote, error) {
	source, err := s.find(ctx, rawID)
	if err != nil {
		return domain.Quote{}, err
	}
	items, err := s.loadItems(ctx, s.db, source.ID)
	if err != nil {
		return domain.Quote{}, err
	}

	now := s.clock.Now()
	copyQuote := *source
	copyQuote.ID = s.genID.Generate()
	copyQuote.Status = domain.StatusDraft
	copyQuote.OpportunityID = nil
	copyQuote.ValidUntil = s.defaultValidUntil()
	copyQuote.CreatedAt = now
	copyQuote.UpdatedAt = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.numbers.Next(ctx, tx, s.cfg.QuoteNumberPrefix, now.Year())
		if err != nil {
			return err
		}
		copyQuote.Number = number
		if err := s.quoteRepo.WithTrx(tx).Create(ctx, &copyQuote); err != nil {
			return err
		}

		idMap := make(map[snowflake.ID]snowflake.ID, len(items))
		copies := make([]*domain.QuoteItem, 0, len(items))
		for _, item := range items {
			copyItem := item
			copyItem.ID = s.genID.Generate()
			copyItem.QuoteID = copyQuote.ID
			copyItem.CreatedAt = now
			copyItem.UpdatedAt = now
			idMap[item.ID] = copyItem.ID
			copies = append(copies, &copyItem)
		}
		for _, copyItem := range copies {
			if copyItem.ParentID != nil {
				if mapped, ok := idMap[*copyItem.ParentID]; ok {
					copyItem.ParentID = &mapped
				} else {
					copyItem.ParentID = nil
				}
			}
		}
		if len(copies) > 0 {
			if err := s.itemRepo.WithTrx(tx).BatchCreate(ctx, copies); err != nil {
				return err
			}
		}
		return s.recomputeTotals(ctx, tx, &copyQuote)
	})
	if err != nil {
		return domain.Quote{}, err
	}
	return copyQuote, nil
}

func (s *Service) GenerateFromOpportunity(ctx context.Context, req domain.GenerateFromOpportunityRequest) (domain.Quote, error) {
	oppID, err := parseID(req.OpportunityID)
	if err != nil {
		return domain.Quote{}, err
	}
	opp, err := s.oppRepo.FindOne(ctx, &oppdomain.Opportunity{ID: oppID})
	if err != nil {
		return domain.Quote{}, err
	}
	if opp == nil {
		return domain.Quote{}, domain.ErrNotFound
	}
	if opp.Stage.Closed() {
		return domain.Quote{}, domain.ErrOpportunityClosed
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = opp.Name
	}

	now := s.clock.Now()
	validUntil := s.defaultValidUntil()
	if req.ValidUntil != nil && !req.ValidUntil.IsZero() {
		validUntil = *req.ValidUntil
	}

	quote := domain.Quote{
		ID:            s.genID.Generate(),
		TiersID:       opp.TiersID,
		OpportunityID: &opp.ID,
		Subject:       subject,
		Status:        domain.StatusDraft,
		ValidUntil:    validUntil,
		TotalHT:       decimal.Zero,
		TotalVAT:      decimal.Zero,
		TotalTTC:      decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.numbers.Next(ctx, tx, s.cfg.QuoteNumberPrefix, now.Year())
		if err != nil {
			return err
		}
		quote.Number = number
		return s.quoteRepo.WithTrx(tx).Create(ctx, &quote)
	})
	if err != nil {
		return domain.Quote{}, err
	}
	return quote, nil
}

// recomputeTotals rewrites the quote's denormalized totals from its current
// items. Always called inside the transaction that mutated the items.
func (s *Service) recomputeTotals(ctx context.Context, tx *gorm.DB, quote *domain.Quote) error {
	items, err := s.loadItems(ctx, tx, quote.ID)
	if err != nil {
		return err
	}
	totalHT, totalVAT, totalTTC := domain.SumItems(items)
	quote.TotalHT = totalHT
	quote.TotalVAT = totalVAT
	quote.TotalTTC = totalTTC
	quote.UpdatedAt = s.clock.Now()
	return s.quoteRepo.WithTrx(tx).Update(ctx, quote.ID, map[string]any{
		"total_ht":   totalHT,
		"total_vat":  totalVAT,
		"total_ttc":  totalTTC,
		"updated_at": quote.UpdatedAt,
	})
}

// buildItem validates one line input and resolves work references. For a
// work line with a zero unit price the description, unit and the suggested
// sale price are pulled from the composite work at current catalog prices.
func (s *Service) buildItem(ctx context.Context, quote *domain.Quote, input domain.ItemInput, position int, now time.Time) (*domain.QuoteItem, error) {
	if !input.Kind.Valid() {
		return nil, domain.ErrInvalidKind
	}

	item := &domain.QuoteItem{
		ID:          s.genID.Generate(),
		QuoteID:     quote.ID,
		Kind:        input.Kind,
		Position:    position,
		Description: strings.TrimSpace(input.Description),
		Unit:        strings.TrimSpace(input.Unit),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if input.Kind.Grouping() {
		if item.Description == "" {
			return nil, domain.ErrInvalidItem
		}
		item.Quantity = decimal.Zero
		item.UnitPrice = decimal.Zero
		item.DiscountPercent = decimal.Zero
		item.VATRate = decimal.Zero
		item.ComputeTotals()
		return item, nil
	}

	item.Quantity = input.Quantity
	item.UnitPrice = input.UnitPrice
	item.DiscountPercent = input.DiscountPercent
	item.VATRate = input.VATRate
	item.MarginPercent = input.MarginPercent

	if input.Kind == domain.KindWork {
		if strings.TrimSpace(input.WorkID) == "" {
			return nil, domain.ErrInvalidWork
		}
		workID, err := parseID(input.WorkID)
		if err != nil {
			return nil, domain.ErrInvalidWork
		}
		work, err := s.works.GetWork(ctx, input.WorkID)
		if err != nil {
			return nil, domain.ErrInvalidWork
		}
		item.WorkID = &workID
		if item.Description == "" {
			item.Description = work.Name
		}
		if item.Unit == "" {
			item.Unit = work.Unit
		}
		if item.UnitPrice.IsZero() {
			margin := input.MarginPercent
			if margin == nil {
				margin = quote.GlobalMargin
			}
			cost, err := s.works.Cost(ctx, worklibdomain.CostRequest{
				WorkID:        input.WorkID,
				MarginPercent: margin,
			})
			if err != nil {
				return nil, err
			}
			item.UnitPrice = cost.SuggestedPrice
		}
	}

	if item.Description == "" {
		return nil, domain.ErrInvalidItem
	}
	if !item.Quantity.IsPositive() {
		return nil, domain.ErrInvalidQuantity
	}
	if item.UnitPrice.IsNegative() && input.Kind != domain.KindDiscount {
		return nil, domain.ErrInvalidUnitPrice
	}
	if item.DiscountPercent.IsNegative() || item.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, domain.ErrInvalidDiscount
	}
	if !domain.ValidVATRate(item.VATRate) {
		return nil, domain.ErrInvalidVATRate
	}

	item.ComputeTotals()
	return item, nil
}

// assignParents derives the tree from document order: a chapter is a root, a
// section hangs off the last chapter, and priced lines hang off the nearest
// grouping line above them.
func assignParents(items []*domain.QuoteItem) {
	var lastChapter, lastSection *snowflake.ID
	for _, item := range items {
		switch item.Kind {
		case domain.KindChapter:
			item.ParentID = nil
			id := item.ID
			lastChapter = &id
			lastSection = nil
		case domain.KindSection:
			item.ParentID = lastChapter
			id := item.ID
			lastSection = &id
		default:
			if lastSection != nil {
				item.ParentID = lastSection
			} else {
				item.ParentID = lastChapter
			}
		}
	}
}

func (s *Service) AddItem(ctx context.Context, req domain.AddItemRequest) (domain.QuoteItem, error) {
	quote, err := s.findEditable(ctx, req.QuoteID)
	if err != nil {
		return domain.QuoteItem{}, err
	}

	var created domain.QuoteItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.loadItems(ctx, tx, quote.ID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		item, err := s.buildItem(ctx, quote, req.ItemInput, len(existing), now)
		if err != nil {
			return err
		}

		if raw := strings.TrimSpace(req.ParentID); raw != "" {
			parentID, err := parseID(raw)
			if err != nil {
				return domain.ErrInvalidParentItem
			}
			var parent *domain.QuoteItem
			for i := range existing {
				if existing[i].ID == parentID {
					parent = &existing[i]
					break
				}
			}
			if parent == nil || !parent.Kind.Grouping() {
				return domain.ErrInvalidParentItem
			}
			item.ParentID = &parentID
		}

		if err := s.itemRepo.WithTrx(tx).Create(ctx, item); err != nil {
			return err
		}
		created = *item
		return s.recomputeTotals(ctx, tx, quote)
	})
	if err != nil {
		return domain.QuoteItem{}, err
	}
	return created, nil
}

func (s *Service) UpdateItem(ctx context.Context, req domain.UpdateItemRequest) (domain.QuoteItem, error) {
	quote, err := s.findEditable(ctx, req.QuoteID)
	if err != nil {
		return domain.QuoteItem{}, err
	}
	itemID, err := parseID(req.ItemID)
	if err != nil {
		return domain.QuoteItem{}, err
	}

	var updated domain.QuoteItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.itemRepo.WithTrx(tx).FindOne(ctx, &domain.QuoteItem{ID: itemID, QuoteID: quote.ID})
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrItemNotFound
		}

		if req.Description != nil {
			description := strings.TrimSpace(*req.Description)
			if description == "" {
				return domain.ErrInvalidItem
			}
			item.Description = description
		}
		if req.Unit != nil {
			item.Unit = strings.TrimSpace(*req.Unit)
		}
		if !item.Kind.Grouping() {
			if req.Quantity != nil {
				if !req.Quantity.IsPositive() {
					return domain.ErrInvalidQuantity
				}
				item.Quantity = *req.Quantity
			}
			if req.UnitPrice != nil {
				if req.UnitPrice.IsNegative() && item.Kind != domain.KindDiscount {
					return domain.ErrInvalidUnitPrice
				}
				item.UnitPrice = *req.UnitPrice
			}
			if req.DiscountPercent != nil {
				if req.DiscountPercent.IsNegative() || req.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
					return domain.ErrInvalidDiscount
				}
				item.DiscountPercent = *req.DiscountPercent
			}
			if req.VATRate != nil {
				if !domain.ValidVATRate(*req.VATRate) {
					return domain.ErrInvalidVATRate
				}
				item.VATRate = *req.VATRate
			}
			if req.MarginPercent != nil {
				item.MarginPercent = req.MarginPercent
			}
		}

		item.ComputeTotals()
		item.UpdatedAt = s.clock.Now()
		if err := s.itemRepo.WithTrx(tx).Save(ctx, item); err != nil {
			return err
		}
		updated = *item
		return s.recomputeTotals(ctx, tx, quote)
	})
	if err != nil {
		return domain.QuoteItem{}, err
	}
	return updated, nil
}

func (s *Service) DeleteItem(ctx context.Context, quoteID, itemID string) error {
	quote, err := s.findEditable(ctx, quoteID)
	if err != nil {
		return err
	}
	id, err := parseID(itemID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.itemRepo.WithTrx(tx).FindOne(ctx, &domain.QuoteItem{ID: id, QuoteID: quote.ID})
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrItemNotFound
		}
		// Children of a removed grouping line move up to its parent.
		if item.Kind.Grouping() {
			if err := tx.WithContext(ctx).
				Model(&domain.QuoteItem{}).
				Where("quote_id = ? AND parent_id = ?", quote.ID, item.ID).
				Update("parent_id", item.ParentID).Error; err != nil {
				return err
			}
		}
		if err := s.itemRepo.WithTrx(tx).Delete(ctx, id); err != nil {
			return err
		}
		return s.recomputeTotals(ctx, tx, quote)
	})
}

func (s *Service) ListItems(ctx context.Context, quoteID string) ([]domain.QuoteItem, error) {
	quote, err := s.find(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	return s.loadItems(ctx, s.db, quote.ID)
}

// ReplaceItems swaps the whole line collection in one transaction. The tree
// is rebuilt from document order, so replaying the same payload always lands
// on the same totals.
func (s *Service) ReplaceItems(ctx context.Context, req domain.ReplaceItemsRequest) (domain.QuoteDetail, error) {
	quote, err := s.findEditable(ctx, req.QuoteID)
	if err != nil {
		return domain.QuoteDetail{}, err
	}

	var detail domain.QuoteDetail
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		items := make([]*domain.QuoteItem, 0, len(req.Items))
		for position, input := range req.Items {
			item, err := s.buildItem(ctx, quote, input, position, now)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		assignParents(items)

		if err := s.itemRepo.WithTrx(tx).DeleteWhere(ctx, &domain.QuoteItem{QuoteID: quote.ID}); err != nil {
			return err
		}
		if len(items) > 0 {
			if err := s.itemRepo.WithTrx(tx).BatchCreate(ctx, items); err != nil {
				return err
			}
		}
		if err := s.recomputeTotals(ctx, tx, quote); err != nil {
			return err
		}

		loaded, err := s.loadItems(ctx, tx, quote.ID)
		if err != nil {
			return err
		}
		detail = domain.QuoteDetail{Quote: *quote, Items: loaded}
		return nil
	})
	if err != nil {
		return domain.QuoteDetail{}, err
	}
	return detail, nil
}

// ReorderItems applies a full permutation of the quote's line IDs as the new
// document order and rebuilds the tree from it.
func (s *Service) ReorderItems(ctx context.Context, req domain.ReorderItemsRequest) ([]domain.QuoteItem, error) {
	quote, err := s.findEditable(ctx, req.QuoteID)
	if err != nil {
		return nil, err
	}

	var result []domain.QuoteItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.loadItems(ctx, tx, quote.ID)
		if err != nil {
			return err
		}
		if len(req.ItemIDs) != len(existing) {
			return domain.ErrItemNotFound
		}

		byID := make(map[snowflake.ID]*domain.QuoteItem, len(existing))
		for i := range existing {
			byID[existing[i].ID] = &existing[i]
		}

		now := s.clock.Now()
		ordered := make([]*domain.QuoteItem, 0, len(existing))
		seen := make(map[snowflake.ID]bool, len(existing))
		for position, raw := range req.ItemIDs {
			id, err := parseID(raw)
			if err != nil {
				return err
			}
			item, ok := byID[id]
			if !ok || seen[id] {
				return domain.ErrItemNotFound
			}
			seen[id] = true
			item.Position = position
			item.UpdatedAt = now
			ordered = append(ordered, item)
		}
		assignParents(ordered)

		for _, item := range ordered {
			if err := s.itemRepo.WithTrx(tx).Save(ctx, item); err != nil {
				return err
			}
		}
		if err := s.recomputeTotals(ctx, tx, quote); err != nil {
			return err
		}

		loaded, err := s.loadItems(ctx, tx, quote.ID)
		if err != nil {
			return err
		}
		result = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	quotes, err := s.quoteRepo.Find(ctx, &domain.Quote{})
	if err != nil {
		return domain.Stats{}, err
	}

	stats := domain.Stats{
		CountByStatus:  make(map[domain.Status]int),
		TotalDraft:     decimal.Zero,
		TotalSent:      decimal.Zero,
		TotalAccepted:  decimal.Zero,
		AcceptanceRate: decimal.Zero,
	}
	for _, quote := range quotes {
		stats.CountByStatus[quote.Status]++
		switch quote.Status {
		case domain.StatusDraft:
			stats.TotalDraft = stats.TotalDraft.Add(quote.TotalTTC)
		case domain.StatusSent:
			stats.TotalSent = stats.TotalSent.Add(quote.TotalTTC)
		case domain.StatusAccepted:
			stats.TotalAccepted = stats.TotalAccepted.Add(quote.TotalTTC)
		}
	}

	decided := stats.CountByStatus[domain.StatusAccepted] + stats.CountByStatus[domain.StatusRejected]
	if decided > 0 {
		stats.AcceptanceRate = decimal.NewFromInt(int64(stats.CountByStatus[domain.StatusAccepted])).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(decided))).
			Round(2)
	}

	return stats, nil
}

func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	res := s.db.WithContext(ctx).
		Model(&domain.Quote{}).
		Where("status = ? AND valid_until < ?", domain.StatusSent, now).
		Updates(map[string]any{
			"status":     domain.StatusExpired,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		if s.metrics != nil {
			s.metrics.RecordTransition("quote", string(domain.StatusExpired))
		}
		s.log.Info("quotes expired", zap.Int64("count", res.RowsAffected))
	}
	return int(res.RowsAffected), nil
}
