package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/batipilot/batipilot/internal/catalog/domain"
	"github.com/batipilot/batipilot/internal/clock"
	"github.com/batipilot/batipilot/pkg/db/option"
	"github.com/batipilot/batipilot/pkg/db/pagination"
	"github.com/batipilot/batipilot/pkg/repository"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	categoryRepo repository.Repository[domain.Category]
	materialRepo repository.Repository[domain.Material]
	laborRepo    repository.Repository[domain.Labor]
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		clock: p.Clock,

		categoryRepo: repository.ProvideStore[domain.Category](p.DB),
		materialRepo: repository.ProvideStore[domain.Material](p.DB),
		laborRepo:    repository.ProvideStore[domain.Labor](p.DB),
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func (s *Service) parseCategoryID(ctx context.Context, raw string) (*snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := parseID(raw)
	if err != nil {
		return nil, err
	}
	category, err := s.categoryRepo.FindOne(ctx, &domain.Category{ID: id})
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, domain.ErrInvalidCategory
	}
	return &id, nil
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CreateCategoryRequest) (domain.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Category{}, domain.ErrInvalidName
	}

	parentID, err := s.parseCategoryID(ctx, req.ParentID)
	if err != nil {
		if err == domain.ErrInvalidCategory {
			err = domain.ErrInvalidParent
		}
		return domain.Category{}, err
	}

	now := s.clock.Now()
	category := domain.Category{
		ID:        s.genID.Generate(),
		Name:      name,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.categoryRepo.Create(ctx, &category); err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

func (s *Service) UpdateCategory(ctx context.Context, req domain.UpdateCategoryRequest) (domain.Category, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Category{}, err
	}

	category, err := s.categoryRepo.FindOne(ctx, &domain.Category{ID: id})
	if err != nil {
		return domain.Category{}, err
	}
	if category == nil {
		return domain.Category{}, domain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Category{}, domain.ErrInvalidName
		}
		category.Name = name
	}
	if req.ParentID != nil {
		parentID, err := s.parseCategoryID(ctx, *req.ParentID)
		if err != nil {
			if err == domain.ErrInvalidCategory {
				err = domain.ErrInvalidParent
			}
			return domain.Category{}, err
		}
		if parentID != nil {
			if err := s.checkCycle(ctx, id, *parentID); err != nil {
				return domain.Category{}, err
			}
		}
		category.ParentID = parentID
	}

	category.UpdatedAt = s.clock.Now()
	if err := s.categoryRepo.Save(ctx, category); err != nil {
		return domain.Category{}, err
	}
	return *category, nil
}

// checkCycle walks up from the candidate parent and rejects reattachment
// under the node's own subtree.
func (s *Service) checkCycle(ctx context.Context, id, parentID snowflake.ID) error {
	current := parentID
	for current != 0 {
		if current == id {
			return domain.ErrCategoryCycle
		}
		parent, err := s.categoryRepo.FindOne(ctx, &domain.Category{ID: current})
		if err != nil {
			return err
		}
		if parent == nil || parent.ParentID == nil {
			return nil
		}
		current = *parent.ParentID
	}
	return nil
}

func (s *Service) DeleteCategory(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}

	category, err := s.categoryRepo.FindOne(ctx, &domain.Category{ID: id})
	if err != nil {
		return err
	}
	if category == nil {
		return domain.ErrNotFound
	}

	children, err := s.categoryRepo.Count(ctx, &domain.Category{ParentID: &id})
	if err != nil {
		return err
	}
	materials, err := s.materialRepo.Count(ctx, &domain.Material{CategoryID: &id})
	if err != nil {
		return err
	}
	labor, err := s.laborRepo.Count(ctx, &domain.Labor{CategoryID: &id})
	if err != nil {
		return err
	}
	if children+materials+labor > 0 {
		return domain.ErrCategoryInUse
	}

	return s.categoryRepo.Delete(ctx, id)
}

// CategoryTree returns all categories as a forest with full paths,
// e.g. "Maconnerie > Murs".
func (s *Service) CategoryTree(ctx context.Context) ([]*domain.CategoryNode, error) {
	categories, err := s.categoryRepo.Find(ctx, &domain.Category{}, option.WithOrder("name ASC"))
	if err != nil {
		return nil, err
	}

	nodes := make(map[snowflake.ID]*domain.CategoryNode, len(categories))
	for _, category := range categories {
		nodes[category.ID] = &domain.CategoryNode{Category: *category}
	}

	var roots []*domain.CategoryNode
	for _, node := range nodes {
		if node.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*node.ParentID]
		if !ok {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	var fill func(node *domain.CategoryNode, prefix string)
	fill = func(node *domain.CategoryNode, prefix string) {
		if prefix == "" {
			node.Path = node.Name
		} else {
			node.Path = prefix + " > " + node.Name
		}
		sort.Slice(node.Children, func(i, j int) bool {
			return node.Children[i].Name < node.Children[j].Name
		})
		for _, child := range node.Children {
			fill(child, node.Path)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Name < roots[j].Name })
	for _, root := range roots {
		fill(root, "")
	}

	return roots, nil
}

func (s *Service) CreateMaterial(ctx context.Context, req domain.CreateMaterialRequest) (domain.Material, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Material{}, domain.ErrInvalidName
	}
	unit := strings.TrimSpace(req.Unit)
	if unit == "" {
		return domain.Material{}, domain.ErrInvalidUnit
	}
	if req.PurchasePrice.IsNegative() {
		return domain.Material{}, domain.ErrInvalidPrice
	}

	categoryID, err := s.parseCategoryID(ctx, req.CategoryID)
	if err != nil {
		return domain.Material{}, err
	}

	now := s.clock.Now()
	material := domain.Material{
		ID:            s.genID.Generate(),
		Name:          name,
		Unit:          unit,
		PurchasePrice: req.PurchasePrice,
		Reference:     strings.TrimSpace(req.Reference),
		Description:   strings.TrimSpace(req.Description),
		CategoryID:    categoryID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.materialRepo.Create(ctx, &material); err != nil {
		return domain.Material{}, err
	}
	return material, nil
}

func (s *Service) GetMaterial(ctx context.Context, rawID string) (domain.Material, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Material{}, err
	}
	material, err := s.materialRepo.FindOne(ctx, &domain.Material{ID: id})
	if err != nil {
		return domain.Material{}, err
	}
	if material == nil {
		return domain.Material{}, domain.ErrNotFound
	}
	return *material, nil
}

func (s *Service) UpdateMaterial(ctx context.Context, req domain.UpdateMaterialRequest) (domain.Material, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Material{}, err
	}

	material, err := s.materialRepo.FindOne(ctx, &domain.Material{ID: id})
	if err != nil {
		return domain.Material{}, err
	}
	if material == nil {
		return domain.Material{}, domain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Material{}, domain.ErrInvalidName
		}
		material.Name = name
	}
	if req.Unit != nil {
		unit := strings.TrimSpace(*req.Unit)
		if unit == "" {
			return domain.Material{}, domain.ErrInvalidUnit
		}
		material.Unit = unit
	}
	if req.PurchasePrice != nil {
		if req.PurchasePrice.IsNegative() {
			return domain.Material{}, domain.ErrInvalidPrice
		}
		material.PurchasePrice = *req.PurchasePrice
	}
	if req.Reference != nil {
		material.Reference = strings.TrimSpace(*req.Reference)
	}
	if req.Description != nil {
		material.Description = strings.TrimSpace(*req.Description)
	}
	if req.CategoryID != nil {
		categoryID, err := s.parseCategoryID(ctx, *req.CategoryID)
		if err != nil {
			return domain.Material{}, err
		}
		material.CategoryID = categoryID
	}

	material.UpdatedAt = s.clock.Now()
	if err := s.materialRepo.Save(ctx, material); err != nil {
		return domain.Material{}, err
	}
	return *material, nil
}

func (s *Service) DeleteMaterial(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	material, err := s.materialRepo.FindOne(ctx, &domain.Material{ID: id})
	if err != nil {
		return err
	}
	if material == nil {
		return domain.ErrNotFound
	}
	return s.materialRepo.Delete(ctx, id)
}

func (s *Service) ListMaterials(ctx context.Context, req domain.ListMaterialsRequest) (domain.ListMaterialsResponse, error) {
	opts := []option.QueryOption{
		option.WithOrder("created_at DESC, id DESC"),
		option.ApplyPagination(req.Pagination),
	}
	if req.Search != "" {
		opts = append(opts, option.WithSearch(req.Search, "name", "reference"))
	}
	filter := &domain.Material{}
	if strings.TrimSpace(req.CategoryID) != "" {
		categoryID, err := parseID(req.CategoryID)
		if err != nil {
			return domain.ListMaterialsResponse{}, err
		}
		filter.CategoryID = &categoryID
	}

	items, err := s.materialRepo.Find(ctx, filter, opts...)
	if err != nil {
		return domain.ListMaterialsResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(m *domain.Material) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        m.ID.String(),
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	materials := make([]domain.Material, 0, len(items))
	for _, item := range items {
		materials = append(materials, *item)
	}

	resp := domain.ListMaterialsResponse{Materials: materials}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) CreateLabor(ctx context.Context, req domain.CreateLaborRequest) (domain.Labor, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Labor{}, domain.ErrInvalidName
	}
	if req.HourlyCost.IsNegative() {
		return domain.Labor{}, domain.ErrInvalidPrice
	}

	categoryID, err := s.parseCategoryID(ctx, req.CategoryID)
	if err != nil {
		return domain.Labor{}, err
	}

	now := s.clock.Now()
	labor := domain.Labor{
		ID:          s.genID.Generate(),
		Name:        name,
		HourlyCost:  req.HourlyCost,
		Description: strings.TrimSpace(req.Description),
		CategoryID:  categoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.laborRepo.Create(ctx, &labor); err != nil {
		return domain.Labor{}, err
	}
	return labor, nil
}

func (s *Service) GetLabor(ctx context.Context, rawID string) (domain.Labor, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Labor{}, err
	}
	labor, err := s.laborRepo.FindOne(ctx, &domain.Labor{ID: id})
	if err != nil {
		return domain.Labor{}, err
	}
	if labor == nil {
		return domain.Labor{}, domain.ErrNotFound
	}
	return *labor, nil
}

func (s *Service) UpdateLabor(ctx context.Context, req domain.UpdateLaborRequest) (domain.Labor, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Labor{}, err
	}

	labor, err := s.laborRepo.FindOne(ctx, &domain.Labor{ID: id})
	if err != nil {
		return domain.Labor{}, err
	}
	if labor == nil {
		return domain.Labor{}, domain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Labor{}, domain.ErrInvalidName
		}
		labor.Name = name
	}
	if req.HourlyCost != nil {
		if req.HourlyCost.IsNegative() {
			return domain.Labor{}, domain.ErrInvalidPrice
		}
		labor.HourlyCost = *req.HourlyCost
	}
	if req.Description != nil {
		labor.Description = strings.TrimSpace(*req.Description)
	}
	if req.CategoryID != nil {
		categoryID, err := s.parseCategoryID(ctx, *req.CategoryID)
		if err != nil {
			return domain.Labor{}, err
		}
		labor.CategoryID = categoryID
	}

	labor.UpdatedAt = s.clock.Now()
	if err := s.laborRepo.Save(ctx, labor); err != nil {
		return domain.Labor{}, err
	}
	return *labor, nil
}

func (s *Service) DeleteLabor(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	labor, err := s.laborRepo.FindOne(ctx, &domain.Labor{ID: id})
	if err != nil {
		return err
	}
	if labor == nil {
		return domain.ErrNotFound
	}
	return s.laborRepo.Delete(ctx, id)
}

func (s *Service) ListLabor(ctx context.Context, req domain.ListLaborRequest) (domain.ListLaborResponse, error) {
	opts := []option.QueryOption{
		option.WithOrder("created_at DESC, id DESC"),
		option.ApplyPagination(req.Pagination),
	}
	if req.Search != "" {
		opts = append(opts, option.WithSearch(req.Search, "name"))
	}
	filter := &domain.Labor{}
	if strings.TrimSpace(req.CategoryID) != "" {
		categoryID, err := parseID(req.CategoryID)
		if err != nil {
			return domain.ListLaborResponse{}, err
		}
		filter.CategoryID = &categoryID
	}

	items, err := s.laborRepo.Find(ctx, filter, opts...)
	if err != nil {
		return domain.ListLaborResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(l *domain.Labor) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        l.ID.String(),
			CreatedAt: l.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	labor := make([]domain.Labor, 0, len(items))
	for _, item := range items {
		labor = append(labor, *item)
	}

	resp := domain.ListLaborResponse{Labor: labor}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
