package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/batipilot/batipilot/internal/clock"
	"github.com/batipilot/batipilot/internal/tiers/domain"
	"github.com/batipilot/batipilot/pkg/db"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&domain.Tiers{},
		&domain.Address{},
		&domain.Contact{},
		&domain.Activity{},
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

func createTiers(t *testing.T, svc domain.Service, name string, flags ...string) domain.Tiers {
	t.Helper()
	tiers, err := svc.Create(context.Background(), domain.CreateTiersRequest{
		Name:  name,
		Flags: flags,
	})
	require.NoError(t, err)
	return tiers
}

func TestCreateLogsActivity(t *testing.T) {
	svc := newTestService(t)

	tiers := createTiers(t, svc, "Batim SARL", domain.FlagClient)

	activities, err := svc.ListActivities(context.Background(), tiers.ID.String())
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, domain.ActivityCreation, activities[0].Kind)
}

func TestCreateRejectsUnknownFlag(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateTiersRequest{
		Name:  "Bad Flags SA",
		Flags: []string{"partner"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidFlag)
}

func TestArchiveRestore(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tiers := createTiers(t, svc, "Chantier Plus")

	require.NoError(t, svc.Archive(ctx, tiers.ID.String()))

	got, err := svc.Get(ctx, tiers.ID.String())
	require.NoError(t, err)
	assert.True(t, got.Archived)
	require.NotNil(t, got.ArchivedAt)

	// Archived records reject writes.
	name := "Chantier Plus Renamed"
	_, err = svc.Update(ctx, domain.UpdateTiersRequest{ID: tiers.ID.String(), Name: &name})
	assert.ErrorIs(t, err, domain.ErrArchived)

	// Double archive is a conflict.
	assert.ErrorIs(t, svc.Archive(ctx, tiers.ID.String()), domain.ErrArchived)

	require.NoError(t, svc.Restore(ctx, tiers.ID.String()))
	got, err = svc.Get(ctx, tiers.ID.String())
	require.NoError(t, err)
	assert.False(t, got.Archived)
	assert.Nil(t, got.ArchivedAt)
}

func TestListExcludesArchived(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	live := createTiers(t, svc, "Actif SARL")
	archived := createTiers(t, svc, "Ferme SARL")
	require.NoError(t, svc.Archive(ctx, archived.ID.String()))

	list, err := svc.List(ctx, domain.ListTiersRequest{})
	require.NoError(t, err)
	require.Len(t, list.Tiers, 1)
	assert.Equal(t, live.ID, list.Tiers[0].ID)

	all, err := svc.List(ctx, domain.ListTiersRequest{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, all.Tiers, 2)
}

func TestListFilterByFlag(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	client := createTiers(t, svc, "Client Un", domain.FlagClient)
	createTiers(t, svc, "Fournisseur Un", domain.FlagSupplier)

	list, err := svc.List(ctx, domain.ListTiersRequest{Flag: domain.FlagClient})
	require.NoError(t, err)
	require.Len(t, list.Tiers, 1)
	assert.Equal(t, client.ID, list.Tiers[0].ID)
}

func TestSingleBillingAddress(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tiers := createTiers(t, svc, "Duo Adresses")

	_, err := svc.AddAddress(ctx, domain.UpsertAddressRequest{
		TiersID: tiers.ID.String(),
		Label:   "Siege",
		City:    "Lyon",
		Billing: true,
	})
	require.NoError(t, err)

	second, err := svc.AddAddress(ctx, domain.UpsertAddressRequest{
		TiersID: tiers.ID.String(),
		Label:   "Depot",
		City:    "Villeurbanne",
		Billing: true,
	})
	require.NoError(t, err)

	addresses, err := svc.ListAddresses(ctx, tiers.ID.String())
	require.NoError(t, err)
	require.Len(t, addresses, 2)

	billingCount := 0
	for _, address := range addresses {
		if address.Billing {
			billingCount++
			assert.Equal(t, second.ID, address.ID)
		}
	}
	assert.Equal(t, 1, billingCount)
}

func TestPrimaryContactsUnique(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tiers := createTiers(t, svc, "Contacts SARL")

	_, err := svc.AddContact(ctx, domain.UpsertContactRequest{
		TiersID:      tiers.ID.String(),
		LastName:     "Durand",
		PrimaryQuote: true,
	})
	require.NoError(t, err)

	replacement, err := svc.AddContact(ctx, domain.UpsertContactRequest{
		TiersID:      tiers.ID.String(),
		LastName:     "Martin",
		PrimaryQuote: true,
	})
	require.NoError(t, err)

	contacts, err := svc.ListContacts(ctx, tiers.ID.String())
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	for _, contact := range contacts {
		if contact.PrimaryQuote {
			assert.Equal(t, replacement.ID, contact.ID)
		}
	}
}
