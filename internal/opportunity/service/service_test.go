package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/batipilot/batipilot/internal/clock"
	"github.com/batipilot/batipilot/internal/opportunity/domain"
	tiersdomain "github.com/batipilot/batipilot/internal/tiers/domain"
	tiersservice "github.com/batipilot/batipilot/internal/tiers/service"
	"github.com/batipilot/batipilot/pkg/db"
)

type testEnv struct {
	opps  domain.Service
	tiers tiersdomain.Service
	clk   *clock.FakeClock
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&tiersdomain.Tiers{},
		&tiersdomain.Address{},
		&tiersdomain.Contact{},
		&tiersdomain.Activity{},
		&domain.Opportunity{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	return testEnv{
		opps:  New(Params{DB: dbConn, Log: log, GenID: node, Clock: clk}),
		tiers: tiersservice.New(tiersservice.Params{DB: dbConn, Log: log, GenID: node, Clock: clk}),
		clk:   clk,
	}
}

func (e testEnv) opportunity(t *testing.T, name, amount string) domain.Opportunity {
	t.Helper()
	ctx := context.Background()
	tiers, err := e.tiers.Create(ctx, tiersdomain.CreateTiersRequest{Name: name + " client"})
	require.NoError(t, err)

	opp, err := e.opps.Create(ctx, domain.CreateOpportunityRequest{
		Name:              name,
		TiersID:           tiers.ID.String(),
		EstimatedAmount:   decimal.RequireFromString(amount),
		ExpectedCloseDate: e.clk.Now().AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	return opp
}

func TestCreateDefaultsToNewStage(t *testing.T) {
	env := newTestEnv(t)

	opp := env.opportunity(t, "Extension hangar", "120000")
	assert.Equal(t, domain.StageNew, opp.Stage)
	assert.Equal(t, 10, opp.Probability)
	assert.True(t, opp.WeightedAmount().Equal(decimal.RequireFromString("12000")))
}

func TestStageDrivesProbability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	opp := env.opportunity(t, "Renovation toiture", "40000")

	moved, err := env.opps.ChangeStage(ctx, domain.ChangeStageRequest{
		ID:    opp.ID.String(),
		Stage: domain.StageNegotiation,
	})
	require.NoError(t, err)
	assert.Equal(t, 60, moved.Probability)
	assert.Nil(t, moved.ClosedAt)

	won, err := env.opps.ChangeStage(ctx, domain.ChangeStageRequest{
		ID:    opp.ID.String(),
		Stage: domain.StageWon,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, won.Probability)
	require.NotNil(t, won.ClosedAt)
}

func TestLostRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	opp := env.opportunity(t, "Appel d'offres", "75000")

	_, err := env.opps.ChangeStage(ctx, domain.ChangeStageRequest{
		ID:    opp.ID.String(),
		Stage: domain.StageLost,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidLossReason)

	lost, err := env.opps.ChangeStage(ctx, domain.ChangeStageRequest{
		ID:         opp.ID.String(),
		Stage:      domain.StageLost,
		LossReason: domain.LossPrice,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, lost.Probability)
	require.NotNil(t, lost.LossReason)
	assert.Equal(t, domain.LossPrice, *lost.LossReason)
}

func TestClosedOpportunityIsFrozen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	opp := env.opportunity(t, "Marche public", "300000")
	_, err := env.opps.ChangeStage(ctx, domain.ChangeStageRequest{
		ID:    opp.ID.String(),
		Stage: domain.StageWon,
	})
	require.NoError(t, err)

	_, err = env.opps.ChangeStage(ctx, domain.ChangeStageRequest{
		ID:    opp.ID.String(),
		Stage: domain.StageNew,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyClosed)

	name := "Marche public 2"
	_, err = env.opps.Update(ctx, domain.UpdateOpportunityRequest{
		ID:   opp.ID.String(),
		Name: &name,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyClosed)
}

func TestPipelineGroupsByStage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.opportunity(t, "Lead A", "10000")
	env.opportunity(t, "Lead B", "20000")
	won := env.opportunity(t, "Lead C", "50000")
	_, err := env.opps.ChangeStage(ctx, domain.ChangeStageRequest{
		ID:    won.ID.String(),
		Stage: domain.StageWon,
	})
	require.NoError(t, err)

	pipeline, err := env.opps.Pipeline(ctx)
	require.NoError(t, err)
	require.Len(t, pipeline, 5)

	assert.Equal(t, domain.StageNew, pipeline[0].Stage)
	assert.Equal(t, 2, pipeline[0].Count)
	assert.True(t, pipeline[0].TotalAmount.Equal(decimal.RequireFromString("30000")))
	assert.True(t, pipeline[0].WeightedAmount.Equal(decimal.RequireFromString("3000")))

	assert.Equal(t, domain.StageWon, pipeline[3].Stage)
	assert.Equal(t, 1, pipeline[3].Count)
}

func TestStatsWinRate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	won := env.opportunity(t, "Gagnee", "10000")
	lost := env.opportunity(t, "Perdue", "5000")
	env.opportunity(t, "En cours", "8000")

	_, err := env.opps.ChangeStage(ctx, domain.ChangeStageRequest{ID: won.ID.String(), Stage: domain.StageWon})
	require.NoError(t, err)
	_, err = env.opps.ChangeStage(ctx, domain.ChangeStageRequest{
		ID: lost.ID.String(), Stage: domain.StageLost, LossReason: domain.LossTiming,
	})
	require.NoError(t, err)

	stats, err := env.opps.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.OpenCount)
	assert.Equal(t, 1, stats.WonCount)
	assert.Equal(t, 1, stats.LostCount)
	assert.True(t, stats.WinRate.Equal(decimal.RequireFromString("50")), "got %s", stats.WinRate)
	assert.True(t, stats.WonAmount.Equal(decimal.RequireFromString("10000")))
}
