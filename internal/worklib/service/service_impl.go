package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	catalogdomain "github.com/batipilot/batipilot/internal/catalog/domain"
	"github.com/batipilot/batipilot/internal/clock"
	"github.com/batipilot/batipilot/internal/config"
	"github.com/batipilot/batipilot/internal/pricing"
	"github.com/batipilot/batipilot/internal/worklib/domain"
	pkgdb "github.com/batipilot/batipilot/pkg/db"
	"github.com/batipilot/batipilot/pkg/db/option"
	"github.com/batipilot/batipilot/pkg/db/pagination"
	"github.com/batipilot/batipilot/pkg/repository"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	defaultMargin decimal.Decimal

	workRepo       repository.Repository[domain.Work]
	ingredientRepo repository.Repository[domain.Ingredient]
	materialRepo   repository.Repository[catalogdomain.Material]
	laborRepo      repository.Repository[catalogdomain.Labor]
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("worklib.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		defaultMargin: decimal.NewFromInt(p.Config.DefaultMarginPercent),

		workRepo:       repository.ProvideStore[domain.Work](p.DB),
		ingredientRepo: repository.ProvideStore[domain.Ingredient](p.DB),
		materialRepo:   repository.ProvideStore[catalogdomain.Material](p.DB),
		laborRepo:      repository.ProvideStore[catalogdomain.Labor](p.DB),
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func (s *Service) CreateWork(ctx context.Context, req domain.CreateWorkRequest) (domain.Work, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Work{}, domain.ErrInvalidName
	}
	unit := strings.TrimSpace(req.Unit)
	if unit == "" {
		return domain.Work{}, domain.ErrInvalidUnit
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = slug.Make(name)
	}

	var categoryID *snowflake.ID
	if raw := strings.TrimSpace(req.CategoryID); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return domain.Work{}, err
		}
		categoryID = &id
	}

	now := s.clock.Now()
	work := domain.Work{
		ID:          s.genID.Generate(),
		Name:        name,
		Code:        code,
		Unit:        unit,
		Description: strings.TrimSpace(req.Description),
		CategoryID:  categoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.workRepo.Create(ctx, &work); err != nil {
		return domain.Work{}, err
	}
	return work, nil
}

func (s *Service) GetWork(ctx context.Context, rawID string) (domain.Work, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Work{}, err
	}
	work, err := s.workRepo.FindOne(ctx, &domain.Work{ID: id})
	if err != nil {
		return domain.Work{}, err
	}
	if work == nil {
		return domain.Work{}, domain.ErrNotFound
	}
	return *work, nil
}

func (s *Service) UpdateWork(ctx context.Context, req domain.UpdateWorkRequest) (domain.Work, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Work{}, err
	}

	work, err := s.workRepo.FindOne(ctx, &domain.Work{ID: id})
	if err != nil {
		return domain.Work{}, err
	}
	if work == nil {
		return domain.Work{}, domain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Work{}, domain.ErrInvalidName
		}
		work.Name = name
	}
	if req.Code != nil {
		work.Code = strings.TrimSpace(*req.Code)
	}
	if req.Unit != nil {
		unit := strings.TrimSpace(*req.Unit)
		if unit == "" {
			return domain.Work{}, domain.ErrInvalidUnit
		}
		work.Unit = unit
	}
	if req.Description != nil {
		work.Description = strings.TrimSpace(*req.Description)
	}
	if req.CategoryID != nil {
		if raw := strings.TrimSpace(*req.CategoryID); raw == "" {
			work.CategoryID = nil
		} else {
			categoryID, err := parseID(raw)
			if err != nil {
				return domain.Work{}, err
			}
			work.CategoryID = &categoryID
		}
	}

	work.UpdatedAt = s.clock.Now()
	if err := s.workRepo.Save(ctx, work); err != nil {
		return domain.Work{}, err
	}
	return *work, nil
}

// DeleteWork removes the work and its ingredient lines in one transaction.
func (s *Service) DeleteWork(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}

	work, err := s.workRepo.FindOne(ctx, &domain.Work{ID: id})
	if err != nil {
		return err
	}
	if work == nil {
		return domain.ErrNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ingredientRepo.WithTrx(tx).DeleteWhere(ctx, &domain.Ingredient{WorkID: id}); err != nil {
			return err
		}
		return s.workRepo.WithTrx(tx).Delete(ctx, id)
	})
}

func (s *Service) ListWorks(ctx context.Context, req domain.ListWorksRequest) (domain.ListWorksResponse, error) {
	opts := []option.QueryOption{
		option.WithOrder("created_at DESC, id DESC"),
		option.ApplyPagination(req.Pagination),
	}
	if req.Search != "" {
		opts = append(opts, option.WithSearch(req.Search, "name", "code"))
	}
	filter := &domain.Work{}
	if raw := strings.TrimSpace(req.CategoryID); raw != "" {
		categoryID, err := parseID(raw)
		if err != nil {
			return domain.ListWorksResponse{}, err
		}
		filter.CategoryID = &categoryID
	}

	items, err := s.workRepo.Find(ctx, filter, opts...)
	if err != nil {
		return domain.ListWorksResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(w *domain.Work) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        w.ID.String(),
			CreatedAt: w.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	works := make([]domain.Work, 0, len(items))
	for _, item := range items {
		works = append(works, *item)
	}

	resp := domain.ListWorksResponse{Works: works}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) AddIngredient(ctx context.Context, req domain.AddIngredientRequest) (domain.Ingredient, error) {
	workID, err := parseID(req.WorkID)
	if err != nil {
		return domain.Ingredient{}, err
	}
	if !req.Kind.Valid() {
		return domain.Ingredient{}, domain.ErrInvalidKind
	}
	itemID, err := parseID(req.ItemID)
	if err != nil {
		return domain.Ingredient{}, err
	}
	if !req.Quantity.IsPositive() {
		return domain.Ingredient{}, domain.ErrInvalidQuantity
	}

	work, err := s.workRepo.FindOne(ctx, &domain.Work{ID: workID})
	if err != nil {
		return domain.Ingredient{}, err
	}
	if work == nil {
		return domain.Ingredient{}, domain.ErrNotFound
	}

	// The referenced catalog item must exist when the line is added. It may
	// still disappear later, which the cost roll-up reports loudly.
	if _, err := s.resolveUnitPrice(ctx, req.Kind, itemID); err != nil {
		return domain.Ingredient{}, domain.ErrItemNotFound
	}

	now := s.clock.Now()
	ingredient := domain.Ingredient{
		ID:        s.genID.Generate(),
		WorkID:    workID,
		Kind:      req.Kind,
		ItemID:    itemID,
		Quantity:  req.Quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ingredientRepo.Create(ctx, &ingredient); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.Ingredient{}, domain.ErrDuplicateIngredient
		}
		return domain.Ingredient{}, err
	}
	return ingredient, nil
}

func (s *Service) UpdateIngredient(ctx context.Context, req domain.UpdateIngredientRequest) (domain.Ingredient, error) {
	workID, err := parseID(req.WorkID)
	if err != nil {
		return domain.Ingredient{}, err
	}
	ingredientID, err := parseID(req.IngredientID)
	if err != nil {
		return domain.Ingredient{}, err
	}
	if !req.Quantity.IsPositive() {
		return domain.Ingredient{}, domain.ErrInvalidQuantity
	}

	ingredient, err := s.ingredientRepo.FindOne(ctx, &domain.Ingredient{ID: ingredientID, WorkID: workID})
	if err != nil {
		return domain.Ingredient{}, err
	}
	if ingredient == nil {
		return domain.Ingredient{}, domain.ErrNotFound
	}

	ingredient.Quantity = req.Quantity
	ingredient.UpdatedAt = s.clock.Now()
	if err := s.ingredientRepo.Save(ctx, ingredient); err != nil {
		return domain.Ingredient{}, err
	}
	return *ingredient, nil
}

func (s *Service) RemoveIngredient(ctx context.Context, rawWorkID, rawIngredientID string) error {
	workID, err := parseID(rawWorkID)
	if err != nil {
		return err
	}
	ingredientID, err := parseID(rawIngredientID)
	if err != nil {
		return err
	}

	ingredient, err := s.ingredientRepo.FindOne(ctx, &domain.Ingredient{ID: ingredientID, WorkID: workID})
	if err != nil {
		return err
	}
	if ingredient == nil {
		return domain.ErrNotFound
	}
	return s.ingredientRepo.Delete(ctx, ingredientID)
}

func (s *Service) ListIngredients(ctx context.Context, rawWorkID string) ([]domain.Ingredient, error) {
	workID, err := parseID(rawWorkID)
	if err != nil {
		return nil, err
	}
	work, err := s.workRepo.FindOne(ctx, &domain.Work{ID: workID})
	if err != nil {
		return nil, err
	}
	if work == nil {
		return nil, domain.ErrNotFound
	}

	items, err := s.ingredientRepo.Find(ctx, &domain.Ingredient{WorkID: workID}, option.WithOrder("created_at ASC, id ASC"))
	if err != nil {
		return nil, err
	}
	ingredients := make([]domain.Ingredient, 0, len(items))
	for _, item := range items {
		ingredients = append(ingredients, *item)
	}
	return ingredients, nil
}

type resolvedItem struct {
	Name  string
	Unit  string
	Price decimal.Decimal
}

// resolveUnitPrice dispatches the tagged reference to the matching catalog
// table and returns the current price and item labels.
func (s *Service) resolveUnitPrice(ctx context.Context, kind domain.IngredientKind, itemID snowflake.ID) (resolvedItem, error) {
	switch kind {
	case domain.KindMaterial:
		material, err := s.materialRepo.FindOne(ctx, &catalogdomain.Material{ID: itemID})
		if err != nil {
			return resolvedItem{}, err
		}
		if material == nil {
			return resolvedItem{}, &domain.DanglingReferenceError{Kind: kind, ItemID: itemID}
		}
		return resolvedItem{Name: material.Name, Unit: material.Unit, Price: material.PurchasePrice}, nil
	case domain.KindLabor:
		labor, err := s.laborRepo.FindOne(ctx, &catalogdomain.Labor{ID: itemID})
		if err != nil {
			return resolvedItem{}, err
		}
		if labor == nil {
			return resolvedItem{}, &domain.DanglingReferenceError{Kind: kind, ItemID: itemID}
		}
		return resolvedItem{Name: labor.Name, Unit: "h", Price: labor.HourlyCost}, nil
	default:
		return resolvedItem{}, domain.ErrInvalidKind
	}
}

// Cost rolls up quantity x current unit price over every ingredient.
func (s *Service) Cost(ctx context.Context, req domain.CostRequest) (domain.WorkCost, error) {
	workID, err := parseID(req.WorkID)
	if err != nil {
		return domain.WorkCost{}, err
	}
	work, err := s.workRepo.FindOne(ctx, &domain.Work{ID: workID})
	if err != nil {
		return domain.WorkCost{}, err
	}
	if work == nil {
		return domain.WorkCost{}, domain.ErrNotFound
	}

	margin := s.defaultMargin
	if req.MarginPercent != nil {
		margin = *req.MarginPercent
		if margin.IsNegative() || margin.GreaterThan(decimal.NewFromInt(100)) {
			return domain.WorkCost{}, domain.ErrInvalidMargin
		}
	}

	items, err := s.ingredientRepo.Find(ctx, &domain.Ingredient{WorkID: workID}, option.WithOrder("created_at ASC, id ASC"))
	if err != nil {
		return domain.WorkCost{}, err
	}

	rawCost := decimal.Zero
	breakdown := make([]domain.IngredientCost, 0, len(items))
	for _, ingredient := range items {
		resolved, err := s.resolveUnitPrice(ctx, ingredient.Kind, ingredient.ItemID)
		if err != nil {
			return domain.WorkCost{}, err
		}
		total := ingredient.Quantity.Mul(resolved.Price)
		rawCost = rawCost.Add(total)
		breakdown = append(breakdown, domain.IngredientCost{
			Ingredient: *ingredient,
			ItemName:   resolved.Name,
			ItemUnit:   resolved.Unit,
			UnitPrice:  resolved.Price,
			Total:      total,
		})
	}

	return domain.WorkCost{
		WorkID:         workID,
		RawCost:        rawCost,
		MarginPercent:  margin,
		SuggestedPrice: pricing.SuggestedPrice(rawCost, margin),
		Ingredients:    breakdown,
	}, nil
}
