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

	"github.com/batipilot/batipilot/internal/catalog/domain"
	"github.com/batipilot/batipilot/internal/clock"
	"github.com/batipilot/batipilot/pkg/db"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&domain.Category{},
		&domain.Material{},
		&domain.Labor{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	})
}

func TestCategoryTreePaths(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	root, err := svc.CreateCategory(ctx, domain.CreateCategoryRequest{Name: "Maconnerie"})
	require.NoError(t, err)

	child, err := svc.CreateCategory(ctx, domain.CreateCategoryRequest{
		Name:     "Murs",
		ParentID: root.ID.String(),
	})
	require.NoError(t, err)

	_, err = svc.CreateCategory(ctx, domain.CreateCategoryRequest{
		Name:     "Cloisons",
		ParentID: child.ID.String(),
	})
	require.NoError(t, err)

	tree, err := svc.CategoryTree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)

	assert.Equal(t, "Maconnerie", tree[0].Path)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "Maconnerie > Murs", tree[0].Children[0].Path)
	require.Len(t, tree[0].Children[0].Children, 1)
	assert.Equal(t, "Maconnerie > Murs > Cloisons", tree[0].Children[0].Children[0].Path)
}

func TestCategoryCycleRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	root, err := svc.CreateCategory(ctx, domain.CreateCategoryRequest{Name: "Gros oeuvre"})
	require.NoError(t, err)
	child, err := svc.CreateCategory(ctx, domain.CreateCategoryRequest{
		Name:     "Fondations",
		ParentID: root.ID.String(),
	})
	require.NoError(t, err)

	childID := child.ID.String()
	_, err = svc.UpdateCategory(ctx, domain.UpdateCategoryRequest{
		ID:       root.ID.String(),
		ParentID: &childID,
	})
	assert.ErrorIs(t, err, domain.ErrCategoryCycle)
}

func TestDeleteCategoryInUse(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	category, err := svc.CreateCategory(ctx, domain.CreateCategoryRequest{Name: "Plomberie"})
	require.NoError(t, err)

	_, err = svc.CreateMaterial(ctx, domain.CreateMaterialRequest{
		Name:          "Tube cuivre 16mm",
		Unit:          "m",
		PurchasePrice: decimal.RequireFromString("4.80"),
		CategoryID:    category.ID.String(),
	})
	require.NoError(t, err)

	err = svc.DeleteCategory(ctx, category.ID.String())
	assert.ErrorIs(t, err, domain.ErrCategoryInUse)
}

func TestMaterialCRUD(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	material, err := svc.CreateMaterial(ctx, domain.CreateMaterialRequest{
		Name:          "Parpaing 20x20x50",
		Unit:          "u",
		PurchasePrice: decimal.RequireFromString("1.20"),
		Reference:     "PAR-2050",
	})
	require.NoError(t, err)

	newPrice := decimal.RequireFromString("1.35")
	updated, err := svc.UpdateMaterial(ctx, domain.UpdateMaterialRequest{
		ID:            material.ID.String(),
		PurchasePrice: &newPrice,
	})
	require.NoError(t, err)
	assert.True(t, updated.PurchasePrice.Equal(newPrice))
	assert.Equal(t, "Parpaing 20x20x50", updated.Name)

	list, err := svc.ListMaterials(ctx, domain.ListMaterialsRequest{Search: "parpaing"})
	require.NoError(t, err)
	require.Len(t, list.Materials, 1)

	require.NoError(t, svc.DeleteMaterial(ctx, material.ID.String()))
	_, err = svc.GetMaterial(ctx, material.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateMaterialValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateMaterial(ctx, domain.CreateMaterialRequest{Unit: "u"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.CreateMaterial(ctx, domain.CreateMaterialRequest{
		Name:          "Sable",
		Unit:          "t",
		PurchasePrice: decimal.RequireFromString("-1"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestLaborCRUD(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	labor, err := svc.CreateLabor(ctx, domain.CreateLaborRequest{
		Name:       "Macon qualifie",
		HourlyCost: decimal.RequireFromString("38.00"),
	})
	require.NoError(t, err)

	got, err := svc.GetLabor(ctx, labor.ID.String())
	require.NoError(t, err)
	assert.True(t, got.HourlyCost.Equal(decimal.RequireFromString("38.00")))

	list, err := svc.ListLabor(ctx, domain.ListLaborRequest{})
	require.NoError(t, err)
	require.Len(t, list.Labor, 1)
}
