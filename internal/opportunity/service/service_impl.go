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
	"github.com/batipilot/batipilot/internal/opportunity/domain"
	tiersdomain "github.com/batipilot/batipilot/internal/tiers/domain"
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

	oppRepo   repository.Repository[domain.Opportunity]
	tiersRepo repository.Repository[tiersdomain.Tiers]
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("opportunity.service"),
		genID: p.GenID,
		clock: p.Clock,

		oppRepo:   repository.ProvideStore[domain.Opportunity](p.DB),
		tiersRepo: repository.ProvideStore[tiersdomain.Tiers](p.DB),
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateOpportunityRequest) (domain.Opportunity, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Opportunity{}, domain.ErrInvalidName
	}
	if req.EstimatedAmount.IsNegative() {
		return domain.Opportunity{}, domain.ErrInvalidAmount
	}
	if req.ExpectedCloseDate.IsZero() {
		return domain.Opportunity{}, domain.ErrInvalidCloseDate
	}

	source := req.Source
	if source == "" {
		source = domain.SourceOther
	}
	if !source.Valid() {
		return domain.Opportunity{}, domain.ErrInvalidSource
	}

	tiersID, err := parseID(req.TiersID)
	if err != nil {
		return domain.Opportunity{}, err
	}
	tiers, err := s.tiersRepo.FindOne(ctx, &tiersdomain.Tiers{ID: tiersID})
	if err != nil {
		return domain.Opportunity{}, err
	}
	if tiers == nil || tiers.Archived {
		return domain.Opportunity{}, domain.ErrInvalidTiers
	}

	now := s.clock.Now()
	opp := domain.Opportunity{
		ID:                s.genID.Generate(),
		Name:              name,
		TiersID:           tiersID,
		Stage:             domain.StageNew,
		EstimatedAmount:   req.EstimatedAmount,
		Probability:       domain.StageNew.Probability(),
		ExpectedCloseDate: req.ExpectedCloseDate,
		Source:            source,
		Description:       strings.TrimSpace(req.Description),
		AssignedTo:        strings.TrimSpace(req.AssignedTo),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.oppRepo.Create(ctx, &opp); err != nil {
		return domain.Opportunity{}, err
	}
	return opp, nil
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.Opportunity, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Opportunity{}, err
	}
	opp, err := s.oppRepo.FindOne(ctx, &domain.Opportunity{ID: id})
	if err != nil {
		return domain.Opportunity{}, err
	}
	if opp == nil {
		return domain.Opportunity{}, domain.ErrNotFound
	}
	return *opp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateOpportunityRequest) (domain.Opportunity, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Opportunity{}, err
	}
	opp, err := s.oppRepo.FindOne(ctx, &domain.Opportunity{ID: id})
	if err != nil {
		return domain.Opportunity{}, err
	}
	if opp == nil {
		return domain.Opportunity{}, domain.ErrNotFound
	}
	if opp.Stage.Closed() {
		return domain.Opportunity{}, domain.ErrAlreadyClosed
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Opportunity{}, domain.ErrInvalidName
		}
		opp.Name = name
	}
	if req.EstimatedAmount != nil {
		if req.EstimatedAmount.IsNegative() {
			return domain.Opportunity{}, domain.ErrInvalidAmount
		}
		opp.EstimatedAmount = *req.EstimatedAmount
	}
	if req.ExpectedCloseDate != nil {
		if req.ExpectedCloseDate.IsZero() {
			return domain.Opportunity{}, domain.ErrInvalidCloseDate
		}
		opp.ExpectedCloseDate = *req.ExpectedCloseDate
	}
	if req.Source != nil {
		if !req.Source.Valid() {
			return domain.Opportunity{}, domain.ErrInvalidSource
		}
		opp.Source = *req.Source
	}
	if req.Description != nil {
		opp.Description = strings.TrimSpace(*req.Description)
	}
	if req.AssignedTo != nil {
		opp.AssignedTo = strings.TrimSpace(*req.AssignedTo)
	}

	opp.UpdatedAt = s.clock.Now()
	if err := s.oppRepo.Save(ctx, opp); err != nil {
		return domain.Opportunity{}, err
	}
	return *opp, nil
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	opp, err := s.oppRepo.FindOne(ctx, &domain.Opportunity{ID: id})
	if err != nil {
		return err
	}
	if opp == nil {
		return domain.ErrNotFound
	}
	return s.oppRepo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, req domain.ListOpportunitiesRequest) (domain.ListOpportunitiesResponse, error) {
	opts := []option.QueryOption{
		option.WithOrder("created_at DESC, id DESC"),
		option.ApplyPagination(req.Pagination),
	}
	if req.Search != "" {
		opts = append(opts, option.WithSearch(req.Search, "name", "description"))
	}
	filter := &domain.Opportunity{}
	if stage := strings.TrimSpace(req.Stage); stage != "" {
		if !domain.Stage(stage).Valid() {
			return domain.ListOpportunitiesResponse{}, domain.ErrInvalidStage
		}
		filter.Stage = domain.Stage(stage)
	}
	if raw := strings.TrimSpace(req.TiersID); raw != "" {
		tiersID, err := parseID(raw)
		if err != nil {
			return domain.ListOpportunitiesResponse{}, err
		}
		filter.TiersID = tiersID
	}
	if assigned := strings.TrimSpace(req.AssignedTo); assigned != "" {
		filter.AssignedTo = assigned
	}

	items, err := s.oppRepo.Find(ctx, filter, opts...)
	if err != nil {
		return domain.ListOpportunitiesResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(o *domain.Opportunity) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        o.ID.String(),
			CreatedAt: o.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	opportunities := make([]domain.Opportunity, 0, len(items))
	for _, item := range items {
		opportunities = append(opportunities, *item)
	}

	resp := domain.ListOpportunitiesResponse{Opportunities: opportunities}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) ChangeStage(ctx context.Context, req domain.ChangeStageRequest) (domain.Opportunity, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Opportunity{}, err
	}
	if !req.Stage.Valid() {
		return domain.Opportunity{}, domain.ErrInvalidStage
	}

	opp, err := s.oppRepo.FindOne(ctx, &domain.Opportunity{ID: id})
	if err != nil {
		return domain.Opportunity{}, err
	}
	if opp == nil {
		return domain.Opportunity{}, domain.ErrNotFound
	}
	if opp.Stage.Closed() {
		return domain.Opportunity{}, domain.ErrAlreadyClosed
	}

	if req.Stage == domain.StageLost {
		if req.LossReason == "" || !req.LossReason.Valid() {
			return domain.Opportunity{}, domain.ErrInvalidLossReason
		}
		reason := req.LossReason
		opp.LossReason = &reason
		opp.LossDescription = strings.TrimSpace(req.LossDescription)
	}

	domain.ApplyStage(opp, req.Stage, s.clock.Now())
	if err := s.oppRepo.Save(ctx, opp); err != nil {
		return domain.Opportunity{}, err
	}

	s.log.Info("opportunity stage changed",
		zap.String("opportunity_id", opp.ID.String()),
		zap.String("stage", string(opp.Stage)))

	return *opp, nil
}

// Pipeline groups every opportunity by stage with per-stage totals.
func (s *Service) Pipeline(ctx context.Context) ([]domain.PipelineStage, error) {
	items, err := s.oppRepo.Find(ctx, &domain.Opportunity{}, option.WithOrder("created_at DESC"))
	if err != nil {
		return nil, err
	}

	stages := []domain.Stage{
		domain.StageNew,
		domain.StageNeedsAnalysis,
		domain.StageNegotiation,
		domain.StageWon,
		domain.StageLost,
	}
	byStage := make(map[domain.Stage]*domain.PipelineStage, len(stages))
	pipeline := make([]domain.PipelineStage, len(stages))
	for i, stage := range stages {
		pipeline[i] = domain.PipelineStage{
			Stage:          stage,
			TotalAmount:    decimal.Zero,
			WeightedAmount: decimal.Zero,
			Opportunities:  []domain.Opportunity{},
		}
		byStage[stage] = &pipeline[i]
	}

	for _, item := range items {
		column, ok := byStage[item.Stage]
		if !ok {
			continue
		}
		column.Count++
		column.TotalAmount = column.TotalAmount.Add(item.EstimatedAmount)
		column.WeightedAmount = column.WeightedAmount.Add(item.WeightedAmount())
		column.Opportunities = append(column.Opportunities, *item)
	}

	return pipeline, nil
}

func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	items, err := s.oppRepo.Find(ctx, &domain.Opportunity{})
	if err != nil {
		return domain.Stats{}, err
	}

	stats := domain.Stats{
		WinRate:      decimal.Zero,
		OpenAmount:   decimal.Zero,
		WeightedOpen: decimal.Zero,
		WonAmount:    decimal.Zero,
	}
	for _, item := range items {
		switch {
		case item.Stage == domain.StageWon:
			stats.WonCount++
			stats.WonAmount = stats.WonAmount.Add(item.EstimatedAmount)
		case item.Stage == domain.StageLost:
			stats.LostCount++
		default:
			stats.OpenCount++
			stats.OpenAmount = stats.OpenAmount.Add(item.EstimatedAmount)
			stats.WeightedOpen = stats.WeightedOpen.Add(item.WeightedAmount())
		}
	}

	closed := stats.WonCount + stats.LostCount
	if closed > 0 {
		stats.WinRate = decimal.NewFromInt(int64(stats.WonCount)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(closed))).
			Round(2)
	}

	return stats, nil
}
