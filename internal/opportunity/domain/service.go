package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/batipilot/batipilot/pkg/db/pagination"
)

type CreateOpportunityRequest struct {
	Name              string          `json:"name"`
	TiersID           string          `json:"tiers_id"`
	EstimatedAmount   decimal.Decimal `json:"estimated_amount"`
	ExpectedCloseDate time.Time       `json:"expected_close_date"`
	Source            Source          `json:"source"`
	Description       string          `json:"description"`
	AssignedTo        string          `json:"assigned_to"`
}

type UpdateOpportunityRequest struct {
	ID                string           `json:"-"`
	Name              *string          `json:"name"`
	EstimatedAmount   *decimal.Decimal `json:"estimated_amount"`
	ExpectedCloseDate *time.Time       `json:"expected_close_date"`
	Source            *Source          `json:"source"`
	Description       *string          `json:"description"`
	AssignedTo        *string          `json:"assigned_to"`
}

type ChangeStageRequest struct {
	ID              string     `json:"-"`
	Stage           Stage      `json:"stage"`
	LossReason      LossReason `json:"loss_reason"`
	LossDescription string     `json:"loss_description"`
}

type ListOpportunitiesRequest struct {
	pagination.Pagination
	Search     string `form:"search"`
	Stage      string `form:"stage"`
	TiersID    string `form:"tiers_id"`
	AssignedTo string `form:"assigned_to"`
}

type ListOpportunitiesResponse struct {
	pagination.PageInfo
	Opportunities []Opportunity `json:"opportunities"`
}

// PipelineStage is one column of the kanban-style pipeline view.
type PipelineStage struct {
	Stage          Stage           `json:"stage"`
	Count          int             `json:"count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	WeightedAmount decimal.Decimal `json:"weighted_amount"`
	Opportunities  []Opportunity   `json:"opportunities"`
}

type Stats struct {
	OpenCount    int             `json:"open_count"`
	WonCount     int             `json:"won_count"`
	LostCount    int             `json:"lost_count"`
	WinRate      decimal.Decimal `json:"win_rate"`
	OpenAmount   decimal.Decimal `json:"open_amount"`
	WeightedOpen decimal.Decimal `json:"weighted_open_amount"`
	WonAmount    decimal.Decimal `json:"won_amount"`
}

type Service interface {
	Create(context.Context, CreateOpportunityRequest) (Opportunity, error)
	Get(ctx context.Context, id string) (Opportunity, error)
	Update(context.Context, UpdateOpportunityRequest) (Opportunity, error)
	Delete(ctx context.Context, id string) error
	List(context.Context, ListOpportunitiesRequest) (ListOpportunitiesResponse, error)

	ChangeStage(context.Context, ChangeStageRequest) (Opportunity, error)
	Pipeline(ctx context.Context) ([]PipelineStage, error)
	Stats(ctx context.Context) (Stats, error)
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidStage      = errors.New("invalid_stage")
	ErrInvalidSource     = errors.New("invalid_source")
	ErrInvalidLossReason = errors.New("invalid_loss_reason")
	ErrInvalidCloseDate  = errors.New("invalid_close_date")
	ErrInvalidTiers      = errors.New("invalid_tiers")
	ErrAlreadyClosed     = errors.New("opportunity_closed")
	ErrNotFound          = errors.New("not_found")
)
