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

	catalogdomain "github.com/batipilot/batipilot/internal/catalog/domain"
	catalogservice "github.com/batipilot/batipilot/internal/catalog/service"
	"github.com/batipilot/batipilot/internal/clock"
	"github.com/batipilot/batipilot/internal/config"
	"github.com/batipilot/batipilot/internal/numbering"
	oppdomain "github.com/batipilot/batipilot/internal/opportunity/domain"
	oppservice "github.com/batipilot/batipilot/internal/opportunity/service"
	"github.com/batipilot/batipilot/internal/quote/domain"
	tiersdomain "github.com/batipilot/batipilot/internal/tiers/domain"
	tiersservice "github.com/batipilot/batipilot/internal/tiers/service"
	worklibdomain "github.com/batipilot/batipilot/internal/worklib/domain"
	worklibservice "github.com/batipilot/batipilot/internal/worklib/service"
	"github.com/batipilot/batipilot/pkg/db"
)

type testEnv struct {
	quotes  domain.Service
	tiers   tiersdomain.Service
	opps    oppdomain.Service
	catalog catalogdomain.Service
	works   worklibdomain.Service
	clk     *clock.FakeClock
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
		&catalogdomain.Category{},
		&catalogdomain.Material{},
		&catalogdomain.Labor{},
		&worklibdomain.Work{},
		&worklibdomain.Ingredient{},
		&oppdomain.Opportunity{},
		&numbering.DocumentSequence{},
		&domain.Quote{},
		&domain.QuoteItem{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{
		DefaultMarginPercent: 30,
		QuoteValidityDays:    30,
		QuoteNumberPrefix:    "DEV",
	}

	works := worklibservice.New(worklibservice.Params{
		DB: dbConn, Log: log, GenID: node, Clock: clk, Config: cfg,
	})

	return testEnv{
		quotes: New(Params{
			DB:      dbConn,
			Log:     log,
			GenID:   node,
			Clock:   clk,
			Config:  cfg,
			Numbers: numbering.NewAllocator(),
			Works:   works,
		}),
		tiers:   tiersservice.New(tiersservice.Params{DB: dbConn, Log: log, GenID: node, Clock: clk}),
		opps:    oppservice.New(oppservice.Params{DB: dbConn, Log: log, GenID: node, Clock: clk}),
		catalog: catalogservice.New(catalogservice.Params{DB: dbConn, Log: log, GenID: node, Clock: clk}),
		works:   works,
		clk:     clk,
	}
}

func (e testEnv) quote(t *testing.T, subject string) domain.Quote {
	t.Helper()
	ctx := context.Background()
	tiers, err := e.tiers.Create(ctx, tiersdomain.CreateTiersRequest{Name: subject + " client"})
	require.NoError(t, err)

	quote, err := e.quotes.Create(ctx, domain.CreateQuoteRequest{
		TiersID: tiers.ID.String(),
		Subject: subject,
	})
	require.NoError(t, err)
	return quote
}

func productInput(description, quantity, unitPrice string) domain.ItemInput {
	return domain.ItemInput{
		Kind:        domain.KindProduct,
		Description: description,
		Unit:        "u",
		Quantity:    decimal.RequireFromString(quantity),
		UnitPrice:   decimal.RequireFromString(unitPrice),
		VATRate:     decimal.RequireFromString("20"),
	}
}

func TestCreateAllocatesSequentialNumbers(t *testing.T) {
	env := newTestEnv(t)

	first := env.quote(t, "Renovation toiture")
	second := env.quote(t, "Extension garage")

	assert.Equal(t, "DEV-2026-0001", first.Number)
	assert.Equal(t, "DEV-2026-0002", second.Number)
	assert.Equal(t, domain.StatusDraft, first.Status)
	assert.True(t, first.TotalTTC.IsZero())
	assert.Equal(t, env.clk.Now().AddDate(0, 0, 30), first.ValidUntil)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tiers, err := env.tiers.Create(ctx, tiersdomain.CreateTiersRequest{Name: "Martin SA"})
	require.NoError(t, err)

	_, err = env.quotes.Create(ctx, domain.CreateQuoteRequest{TiersID: tiers.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidSubject)

	_, err = env.quotes.Create(ctx, domain.CreateQuoteRequest{TiersID: "999999", Subject: "Devis"})
	assert.ErrorIs(t, err, domain.ErrInvalidTiers)

	require.NoError(t, env.tiers.Archive(ctx, tiers.ID.String()))
	_, err = env.quotes.Create(ctx, domain.CreateQuoteRequest{TiersID: tiers.ID.String(), Subject: "Devis"})
	assert.ErrorIs(t, err, domain.ErrInvalidTiers)
}

func TestAddItemRecomputesPersistedTotals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quote := env.quote(t, "Salle de bain")

	input := productInput("Carrelage sol", "10", "25.50")
	input.DiscountPercent = decimal.RequireFromString("5")
	item, err := env.quotes.AddItem(ctx, domain.AddItemRequest{QuoteID: quote.ID.String(), ItemInput: input})
	require.NoError(t, err)

	assert.True(t, item.TotalExVAT.Equal(decimal.RequireFromString("242.25")), item.TotalExVAT.String())
	assert.True(t, item.TotalIncVAT.Equal(decimal.RequireFromString("290.70")), item.TotalIncVAT.String())

	detail, err := env.quotes.Get(ctx, quote.ID.String())
	require.NoError(t, err)
	assert.True(t, detail.TotalHT.Equal(decimal.RequireFromString("242.25")), detail.TotalHT.String())
	assert.True(t, detail.TotalVAT.Equal(decimal.RequireFromString("48.45")), detail.TotalVAT.String())
	assert.True(t, detail.TotalTTC.Equal(decimal.RequireFromString("290.70")), detail.TotalTTC.String())

	_, err = env.quotes.AddItem(ctx, domain.AddItemRequest{
		QuoteID:   quote.ID.String(),
		ItemInput: productInput("Plinthes", "20", "5.00"),
	})
	require.NoError(t, err)

	detail, err = env.quotes.Get(ctx, quote.ID.String())
	require.NoError(t, err)
	assert.True(t, detail.TotalHT.Equal(decimal.RequireFromString("342.25")), detail.TotalHT.String())
	assert.True(t, detail.TotalTTC.Equal(decimal.RequireFromString("410.70")), detail.TotalTTC.String())
}

func TestItemValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quote := env.quote(t, "Cloisons")

	bad := productInput("Placo", "0", "10.00")
	_, err := env.quotes.AddItem(ctx, domain.AddItemRequest{QuoteID: quote.ID.String(), ItemInput: bad})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	bad = productInput("Placo", "1", "-10.00")
	_, err = env.quotes.AddItem(ctx, domain.AddItemRequest{QuoteID: quote.ID.String(), ItemInput: bad})
	assert.ErrorIs(t, err, domain.ErrInvalidUnitPrice)

	bad = productInput("Placo", "1", "10.00")
	bad.VATRate = decimal.RequireFromString("7")
	_, err = env.quotes.AddItem(ctx, domain.AddItemRequest{QuoteID: quote.ID.String(), ItemInput: bad})
	assert.ErrorIs(t, err, domain.ErrInvalidVATRate)

	bad = productInput("Placo", "1", "10.00")
	bad.DiscountPercent = decimal.RequireFromString("101")
	_, err = env.quotes.AddItem(ctx, domain.AddItemRequest{QuoteID: quote.ID.String(), ItemInput: bad})
	assert.ErrorIs(t, err, domain.ErrInvalidDiscount)

	// A commercial discount line may carry a negative price.
	rebate := domain.ItemInput{
		Kind:        domain.KindDiscount,
		Description: "Remise commerciale",
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   decimal.RequireFromString("-50.00"),
		VATRate:     decimal.RequireFromString("20"),
	}
	_, err = env.quotes.AddItem(ctx, domain.AddItemRequest{QuoteID: quote.ID.String(), ItemInput: rebate})
	assert.NoError(t, err)
}

func TestWorkLinePullsSuggestedPrice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	material, err := env.catalog.CreateMaterial(ctx, catalogdomain.CreateMaterialRequest{
		Name: "Parpaing 20x20x50", Unit: "u", PurchasePrice: decimal.RequireFromString("4.10"),
	})
	require.NoError(t, err)
	labor, err := env.catalog.CreateLabor(ctx, catalogdomain.CreateLaborRequest{
		Name: "Macon", HourlyCost: decimal.RequireFromString("35.00"),
	})
	require.NoError(t, err)

	work, err := env.works.CreateWork(ctx, worklibdomain.CreateWorkRequest{Name: "Mur parpaing", Unit: "m2"})
	require.NoError(t, err)
	_, err = env.works.AddIngredient(ctx, worklibdomain.AddIngredientRequest{
		WorkID: work.ID.String(), Kind: worklibdomain.KindMaterial,
		ItemID: material.ID.String(), Quantity: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	_, err = env.works.AddIngredient(ctx, worklibdomain.AddIngredientRequest{
		WorkID: work.ID.String(), Kind: worklibdomain.KindLabor,
		ItemID: labor.ID.String(), Quantity: decimal.NewFromInt(4),
	})
	require.NoError(t, err)

	quote := env.quote(t, "Mur de cloture")
	item, err := env.quotes.AddItem(ctx, domain.AddItemRequest{
		QuoteID: quote.ID.String(),
		ItemInput: domain.ItemInput{
			Kind:     domain.KindWork,
			WorkID:   work.ID.String(),
			Quantity: decimal.NewFromInt(1),
			VATRate:  decimal.RequireFromString("10"),
		},
	})
	require.NoError(t, err)

	// Raw cost 181.00, default margin 30 -> 181.00 / 0.7 rounded.
	assert.Equal(t, "Mur parpaing", item.Description)
	assert.Equal(t, "m2", item.Unit)
	assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("258.57")), item.UnitPrice.String())

	_, err = env.quotes.AddItem(ctx, domain.AddItemRequest{
		QuoteID: quote.ID.String(),
		ItemInput: domain.ItemInput{
			Kind:     domain.KindWork,
			WorkID:   "424242",
			Quantity: decimal.NewFromInt(1),
			VATRate:  decimal.RequireFromString("10"),
		},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidWork)
}

func TestLifecycleFreezesEditing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quote := env.quote(t, "Terrasse bois")

	_, err := env.quotes.AddItem(ctx, domain.AddItemRequest{
		QuoteID:   quote.ID.String(),
		ItemInput: productInput("Lames de terrasse", "30", "12.00"),
	})
	require.NoError(t, err)

	sent, err := env.quotes.Send(ctx, quote.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, sent.Status)

	subject := "Nouveau sujet"
	_, err = env.quotes.Update(ctx, domain.UpdateQuoteRequest{ID: quote.ID.String(), Subject: &subject})
	assert.ErrorIs(t, err, domain.ErrNotEditable)

	_, err = env.quotes.AddItem(ctx, domain.AddItemRequest{
		QuoteID:   quote.ID.String(),
		ItemInput: productInput("Visserie", "1", "40.00"),
	})
	assert.ErrorIs(t, err, domain.ErrNotEditable)

	err = env.quotes.Delete(ctx, quote.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotEditable)

	accepted, err := env.quotes.Accept(ctx, quote.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, accepted.Status)

	_, err = env.quotes.Send(ctx, quote.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestDraftCannotBeAccepted(t *testing.T) {
	env := newTestEnv(t)
	quote := env.quote(t, "Peinture")

	_, err := env.quotes.Accept(context.Background(), quote.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.StatusDraft, terr.From)
	assert.Equal(t, domain.StatusAccepted, terr.To)
}

func TestAcceptCascadesOpportunityWon(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tiers, err := env.tiers.Create(ctx, tiersdomain.CreateTiersRequest{Name: "Mairie de Vannes"})
	require.NoError(t, err)
	opp, err := env.opps.Create(ctx, oppdomain.CreateOpportunityRequest{
		Name:              "Refection ecole",
		TiersID:           tiers.ID.String(),
		EstimatedAmount:   decimal.RequireFromString("85000"),
		ExpectedCloseDate: env.clk.Now().AddDate(0, 2, 0),
	})
	require.NoError(t, err)

	quote, err := env.quotes.GenerateFromOpportunity(ctx, domain.GenerateFromOpportunityRequest{
		OpportunityID: opp.ID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Refection ecole", quote.Subject)
	require.NotNil(t, quote.OpportunityID)
	assert.Equal(t, opp.ID, *quote.OpportunityID)

	_, err = env.quotes.Send(ctx, quote.ID.String())
	require.NoError(t, err)
	_, err = env.quotes.Accept(ctx, quote.ID.String())
	require.NoError(t, err)

	updated, err := env.opps.Get(ctx, opp.ID.String())
	require.NoError(t, err)
	assert.Equal(t, oppdomain.StageWon, updated.Stage)
	assert.Equal(t, 100, updated.Probability)
	require.NotNil(t, updated.ClosedAt)
}

func TestRejectCascadesOpportunityLost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tiers, err := env.tiers.Create(ctx, tiersdomain.CreateTiersRequest{Name: "SCI Horizon"})
	require.NoError(t, err)
	opp, err := env.opps.Create(ctx, oppdomain.CreateOpportunityRequest{
		Name:              "Ravalement facade",
		TiersID:           tiers.ID.String(),
		EstimatedAmount:   decimal.RequireFromString("40000"),
		ExpectedCloseDate: env.clk.Now().AddDate(0, 1, 0),
	})
	require.NoError(t, err)

	quote, err := env.quotes.GenerateFromOpportunity(ctx, domain.GenerateFromOpportunityRequest{
		OpportunityID: opp.ID.String(),
	})
	require.NoError(t, err)

	_, err = env.quotes.Send(ctx, quote.ID.String())
	require.NoError(t, err)
	_, err = env.quotes.Reject(ctx, quote.ID.String())
	require.NoError(t, err)

	updated, err := env.opps.Get(ctx, opp.ID.String())
	require.NoError(t, err)
	assert.Equal(t, oppdomain.StageLost, updated.Stage)
	require.NotNil(t, updated.LossReason)
	assert.Equal(t, oppdomain.LossOther, *updated.LossReason)
}

func TestCascadeSkipsClosedOpportunity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tiers, err := env.tiers.Create(ctx, tiersdomain.CreateTiersRequest{Name: "Dupont"})
	require.NoError(t, err)
	opp, err := env.opps.Create(ctx, oppdomain.CreateOpportunityRequest{
		Name:              "Abri jardin",
		TiersID:           tiers.ID.String(),
		EstimatedAmount:   decimal.RequireFromString("5000"),
		ExpectedCloseDate: env.clk.Now().AddDate(0, 1, 0),
	})
	require.NoError(t, err)

	quote, err := env.quotes.GenerateFromOpportunity(ctx, domain.GenerateFromOpportunityRequest{
		OpportunityID: opp.ID.String(),
	})
	require.NoError(t, err)

	_, err = env.opps.ChangeStage(ctx, oppdomain.ChangeStageRequest{
		ID: opp.ID.String(), Stage: oppdomain.StageWon,
	})
	require.NoError(t, err)

	_, err = env.quotes.Send(ctx, quote.ID.String())
	require.NoError(t, err)
	_, err = env.quotes.Reject(ctx, quote.ID.String())
	require.NoError(t, err)

	updated, err := env.opps.Get(ctx, opp.ID.String())
	require.NoError(t, err)
	assert.Equal(t, oppdomain.StageWon, updated.Stage)
}

func TestGenerateFromClosedOpportunityFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tiers, err := env.tiers.Create(ctx, tiersdomain.CreateTiersRequest{Name: "Leroy"})
	require.NoError(t, err)
	opp, err := env.opps.Create(ctx, oppdomain.CreateOpportunityRequest{
		Name:              "Veranda",
		TiersID:           tiers.ID.String(),
		EstimatedAmount:   decimal.RequireFromString("18000"),
		ExpectedCloseDate: env.clk.Now().AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	_, err = env.opps.ChangeStage(ctx, oppdomain.ChangeStageRequest{
		ID: opp.ID.String(), Stage: oppdomain.StageLost, LossReason: oppdomain.LossPrice,
	})
	require.NoError(t, err)

	_, err = env.quotes.GenerateFromOpportunity(ctx, domain.GenerateFromOpportunityRequest{
		OpportunityID: opp.ID.String(),
	})
	assert.ErrorIs(t, err, domain.ErrOpportunityClosed)
}

func TestDuplicateCopiesItemsIntoFreshDraft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quote := env.quote(t, "Isolation combles")

	_, err := env.quotes.AddItem(ctx, domain.AddItemRequest{
		QuoteID: quote.ID.String(),
		ItemInput: domain.ItemInput{
			Kind: domain.KindChapter, Description: "Fournitures",
		},
	})
	require.NoError(t, err)
	_, err = env.quotes.AddItem(ctx, domain.AddItemRequest{
		QuoteID:   quote.ID.String(),
		ItemInput: productInput("Laine de verre", "60", "8.40"),
	})
	require.NoError(t, err)

	_, err = env.quotes.Send(ctx, quote.ID.String())
	require.NoError(t, err)
	_, err = env.quotes.Accept(ctx, quote.ID.String())
	require.NoError(t, err)

	copyQuote, err := env.quotes.Duplicate(ctx, quote.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, copyQuote.Status)
	assert.Equal(t, "DEV-2026-0002", copyQuote.Number)
	assert.Nil(t, copyQuote.OpportunityID)

	source, err := env.quotes.Get(ctx, quote.ID.String())
	require.NoError(t, err)
	detail, err := env.quotes.Get(ctx, copyQuote.ID.String())
	require.NoError(t, err)
	require.Len(t, detail.Items, 2)
	assert.True(t, detail.TotalTTC.Equal(source.TotalTTC))
	for i, item := range detail.Items {
		assert.NotEqual(t, source.Items[i].ID, item.ID)
		assert.Equal(t, source.Items[i].Description, item.Description)
	}
}

func TestReplaceItemsIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quote := env.quote(t, "Gros oeuvre")

	payload := []domain.ItemInput{
		{Kind: domain.KindChapter, Description: "Maconnerie"},
		{Kind: domain.KindSection, Description: "Fondations"},
		productInput("Beton C25/30", "12", "95.00"),
		productInput("Treillis soude", "8", "22.50"),
		{Kind: domain.KindChapter, Description: "Charpente"},
		productInput("Fermettes", "14", "48.00"),
	}

	first, err := env.quotes.ReplaceItems(ctx, domain.ReplaceItemsRequest{
		QuoteID: quote.ID.String(), Items: payload,
	})
	require.NoError(t, err)
	require.Len(t, first.Items, 6)

	second, err := env.quotes.ReplaceItems(ctx, domain.ReplaceItemsRequest{
		QuoteID: quote.ID.String(), Items: payload,
	})
	require.NoError(t, err)
	require.Len(t, second.Items, 6)
	assert.True(t, first.TotalHT.Equal(second.TotalHT))
	assert.True(t, first.TotalTTC.Equal(second.TotalTTC))

	// The tree follows document order: sections under the last chapter,
	// priced lines under the nearest grouping line.
	chapter, section := second.Items[0], second.Items[1]
	assert.Nil(t, chapter.ParentID)
	require.NotNil(t, section.ParentID)
	assert.Equal(t, chapter.ID, *section.ParentID)
	require.NotNil(t, second.Items[2].ParentID)
	assert.Equal(t, section.ID, *second.Items[2].ParentID)
	require.NotNil(t, second.Items[5].ParentID)
	assert.Equal(t, second.Items[4].ID, *second.Items[5].ParentID)
}

func TestReorderItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quote := env.quote(t, "Plomberie")

	detail, err := env.quotes.ReplaceItems(ctx, domain.ReplaceItemsRequest{
		QuoteID: quote.ID.String(),
		Items: []domain.ItemInput{
			productInput("Tube cuivre", "25", "6.80"),
			productInput("Raccords", "40", "1.95"),
			productInput("Robinetterie", "3", "85.00"),
		},
	})
	require.NoError(t, err)
	require.Len(t, detail.Items, 3)

	reordered, err := env.quotes.ReorderItems(ctx, domain.ReorderItemsRequest{
		QuoteID: quote.ID.String(),
		ItemIDs: []string{
			detail.Items[2].ID.String(),
			detail.Items[0].ID.String(),
			detail.Items[1].ID.String(),
		},
	})
	require.NoError(t, err)
	require.Len(t, reordered, 3)
	assert.Equal(t, "Robinetterie", reordered[0].Description)
	assert.Equal(t, "Tube cuivre", reordered[1].Description)

	_, err = env.quotes.ReorderItems(ctx, domain.ReorderItemsRequest{
		QuoteID: quote.ID.String(),
		ItemIDs: []string{detail.Items[0].ID.String()},
	})
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestDeleteItemReattachesChildren(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quote := env.quote(t, "Electricite")

	detail, err := env.quotes.ReplaceItems(ctx, domain.ReplaceItemsRequest{
		QuoteID: quote.ID.String(),
		Items: []domain.ItemInput{
			{Kind: domain.KindChapter, Description: "Tableau"},
			{Kind: domain.KindSection, Description: "Protections"},
			productInput("Disjoncteur 16A", "8", "12.30"),
		},
	})
	require.NoError(t, err)

	section := detail.Items[1]
	require.NoError(t, env.quotes.DeleteItem(ctx, quote.ID.String(), section.ID.String()))

	items, err := env.quotes.ListItems(ctx, quote.ID.String())
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[1].ParentID)
	assert.Equal(t, detail.Items[0].ID, *items[1].ParentID)
}

func TestExpireOverdueSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	overdue := env.quote(t, "Bardage")
	_, err := env.quotes.Send(ctx, overdue.ID.String())
	require.NoError(t, err)

	stillDraft := env.quote(t, "Clotures")

	env.clk.Advance(31 * 24 * time.Hour)
	count, err := env.quotes.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expired, err := env.quotes.Get(ctx, overdue.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, expired.Status)

	draft, err := env.quotes.Get(ctx, stillDraft.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, draft.Status)

	count, err = env.quotes.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStatsAcceptanceRate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i, outcome := range []domain.Status{domain.StatusAccepted, domain.StatusAccepted, domain.StatusRejected} {
		quote := env.quote(t, "Chantier "+string(rune('A'+i)))
		_, err := env.quotes.AddItem(ctx, domain.AddItemRequest{
			QuoteID:   quote.ID.String(),
			ItemInput: productInput("Forfait", "1", "1000.00"),
		})
		require.NoError(t, err)
		_, err = env.quotes.Send(ctx, quote.ID.String())
		require.NoError(t, err)
		if outcome == domain.StatusAccepted {
			_, err = env.quotes.Accept(ctx, quote.ID.String())
		} else {
			_, err = env.quotes.Reject(ctx, quote.ID.String())
		}
		require.NoError(t, err)
	}
	env.quote(t, "Brouillon en cours")

	stats, err := env.quotes.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CountByStatus[domain.StatusAccepted])
	assert.Equal(t, 1, stats.CountByStatus[domain.StatusRejected])
	assert.Equal(t, 1, stats.CountByStatus[domain.StatusDraft])
	assert.True(t, stats.AcceptanceRate.Equal(decimal.RequireFromString("66.67")), stats.AcceptanceRate.String())
	assert.True(t, stats.TotalAccepted.Equal(decimal.RequireFromString("2400")), stats.TotalAccepted.String())
}

func TestListFiltersByStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := env.quote(t, "Devis un")
	sentQuote := env.quote(t, "Devis deux")
	_, err := env.quotes.Send(ctx, sentQuote.ID.String())
	require.NoError(t, err)

	resp, err := env.quotes.List(ctx, domain.ListQuotesRequest{Status: "draft"})
	require.NoError(t, err)
	require.Len(t, resp.Quotes, 1)
	assert.Equal(t, draft.ID, resp.Quotes[0].ID)

	_, err = env.quotes.List(ctx, domain.ListQuotesRequest{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
