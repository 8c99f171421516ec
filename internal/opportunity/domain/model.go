package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Stage string

const (
	StageNew           Stage = "new"
	StageNeedsAnalysis Stage = "needs_analysis"
	StageNegotiation   Stage = "negotiation"
	StageWon           Stage = "won"
	StageLost          Stage = "lost"
)

func (s Stage) Valid() bool {
	switch s {
	case StageNew, StageNeedsAnalysis, StageNegotiation, StageWon, StageLost:
		return true
	}
	return false
}

func (s Stage) Closed() bool {
	return s == StageWon || s == StageLost
}

// Probability returns the stage-driven win probability in percent.
func (s Stage) Probability() int {
	switch s {
	case StageNew:
		return 10
	case StageNeedsAnalysis:
		return 30
	case StageNegotiation:
		return 60
	case StageWon:
		return 100
	default:
		return 0
	}
}

type Source string

const (
	SourceWebsite    Source = "website"
	SourceReferral   Source = "referral"
	SourcePartner    Source = "partner"
	SourceColdCall   Source = "cold_call"
	SourceExhibition Source = "exhibition"
	SourceOther      Source = "other"
)

func (s Source) Valid() bool {
	switch s {
	case SourceWebsite, SourceReferral, SourcePartner, SourceColdCall, SourceExhibition, SourceOther:
		return true
	}
	return false
}

type LossReason string

const (
	LossPrice      LossReason = "price"
	LossCompetitor LossReason = "competitor"
	LossTiming     LossReason = "timing"
	LossNoBudget   LossReason = "no_budget"
	LossNoNeed     LossReason = "no_need"
	LossNoDecision LossReason = "no_decision"
	LossOther      LossReason = "other"
)

func (r LossReason) Valid() bool {
	switch r {
	case LossPrice, LossCompetitor, LossTiming, LossNoBudget, LossNoNeed, LossNoDecision, LossOther:
		return true
	}
	return false
}

type Opportunity struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name              string          `gorm:"not null;index" json:"name"`
	TiersID           snowflake.ID    `gorm:"not null;index" json:"tiers_id"`
	Stage             Stage           `gorm:"not null;index;default:new" json:"stage"`
	EstimatedAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"estimated_amount"`
	Probability       int             `gorm:"not null;default:10" json:"probability"`
	ExpectedCloseDate time.Time       `gorm:"not null;index" json:"expected_close_date"`
	Source            Source          `gorm:"not null;default:other" json:"source"`
	Description       string          `json:"description,omitempty"`
	AssignedTo        string          `gorm:"index" json:"assigned_to,omitempty"`
	LossReason        *LossReason     `json:"loss_reason,omitempty"`
	LossDescription   string          `json:"loss_description,omitempty"`
	ClosedAt          *time.Time      `json:"closed_at,omitempty"`
	CreatedAt         time.Time       `gorm:"not null;index;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Opportunity) TableName() string { return "opportunities" }

// WeightedAmount is the estimated amount weighted by win probability.
func (o Opportunity) WeightedAmount() decimal.Decimal {
	return o.EstimatedAmount.
		Mul(decimal.NewFromInt(int64(o.Probability))).
		Div(decimal.NewFromInt(100))
}

// ApplyStage moves the opportunity to the given stage, refreshing the
// probability and stamping ClosedAt on won/lost. Shared with the quote
// cascade so both paths age the record identically.
func ApplyStage(o *Opportunity, stage Stage, now time.Time) {
	o.Stage = stage
	o.Probability = stage.Probability()
	if stage.Closed() {
		if o.ClosedAt == nil {
			o.ClosedAt = &now
		}
	} else {
		o.ClosedAt = nil
	}
	o.UpdatedAt = now
}
