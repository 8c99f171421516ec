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
	"github.com/batipilot/batipilot/internal/equipment/domain"
	"github.com/batipilot/batipilot/pkg/db"
)

type testEnv struct {
	equipment domain.Service
	clk       *clock.FakeClock
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&domain.Category{},
		&domain.Equipment{},
		&domain.Movement{},
		&domain.Reservation{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))

	return testEnv{
		equipment: New(Params{DB: dbConn, Log: zap.NewNop(), GenID: node, Clock: clk}),
		clk:       clk,
	}
}

func (e testEnv) machine(t *testing.T, name, serial string) domain.Equipment {
	t.Helper()
	equipment, err := e.equipment.Create(context.Background(), domain.CreateEquipmentRequest{
		Name:         name,
		SerialNumber: serial,
		Location:     "depot",
	})
	require.NoError(t, err)
	return equipment
}

func TestCreateRejectsDuplicateSerial(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.machine(t, "Minipelle 2T", "KX019-4411")

	_, err := env.equipment.Create(ctx, domain.CreateEquipmentRequest{
		Name:         "Minipelle 2T bis",
		SerialNumber: "KX019-4411",
	})
	assert.ErrorIs(t, err, domain.ErrSerialTaken)

	_, err = env.equipment.Create(ctx, domain.CreateEquipmentRequest{Name: "Sans serie"})
	assert.ErrorIs(t, err, domain.ErrInvalidSerial)
}

func TestCategoryLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	category, err := env.equipment.CreateCategory(ctx, domain.UpsertCategoryRequest{Name: "Terrassement"})
	require.NoError(t, err)

	_, err = env.equipment.CreateCategory(ctx, domain.UpsertCategoryRequest{Name: "Terrassement"})
	assert.ErrorIs(t, err, domain.ErrNameTaken)

	_, err = env.equipment.Create(ctx, domain.CreateEquipmentRequest{
		Name:         "Pelle 5T",
		SerialNumber: "PC50-888",
		CategoryID:   category.ID.String(),
	})
	require.NoError(t, err)

	err = env.equipment.DeleteCategory(ctx, category.ID.String())
	assert.ErrorIs(t, err, domain.ErrCategoryInUse)
}

func TestMovementUpdatesLocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	machine := env.machine(t, "Betonniere", "BT-350-01")

	movement, err := env.equipment.RecordMovement(ctx, domain.RecordMovementRequest{
		EquipmentID: machine.ID.String(),
		ToLocation:  "chantier Kervignac",
	})
	require.NoError(t, err)
	assert.Equal(t, "depot", movement.FromLocation)
	assert.Equal(t, "chantier Kervignac", movement.ToLocation)

	updated, err := env.equipment.Get(ctx, machine.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "chantier Kervignac", updated.Location)

	_, err = env.equipment.RecordMovement(ctx, domain.RecordMovementRequest{
		EquipmentID: machine.ID.String(),
		ToLocation:  "depot",
	})
	require.NoError(t, err)

	movements, err := env.equipment.ListMovements(ctx, machine.ID.String())
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, "chantier Kervignac", movements[0].FromLocation)

	_, err = env.equipment.RecordMovement(ctx, domain.RecordMovementRequest{
		EquipmentID: machine.ID.String(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidLocation)
}

func TestReservationOverlap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	machine := env.machine(t, "Nacelle", "NA-12-77")

	start := env.clk.Now().AddDate(0, 0, 7)
	end := start.AddDate(0, 0, 5)
	_, err := env.equipment.Reserve(ctx, domain.CreateReservationRequest{
		EquipmentID: machine.ID.String(),
		Site:        "chantier Auray",
		StartDate:   start,
		EndDate:     end,
	})
	require.NoError(t, err)

	_, err = env.equipment.Reserve(ctx, domain.CreateReservationRequest{
		EquipmentID: machine.ID.String(),
		Site:        "chantier Lorient",
		StartDate:   start.AddDate(0, 0, 2),
		EndDate:     end.AddDate(0, 0, 4),
	})
	assert.ErrorIs(t, err, domain.ErrOverlapping)

	// Touching windows do not overlap.
	_, err = env.equipment.Reserve(ctx, domain.CreateReservationRequest{
		EquipmentID: machine.ID.String(),
		Site:        "chantier Lorient",
		StartDate:   end,
		EndDate:     end.AddDate(0, 0, 3),
	})
	require.NoError(t, err)

	_, err = env.equipment.Reserve(ctx, domain.CreateReservationRequest{
		EquipmentID: machine.ID.String(),
		Site:        "chantier Vannes",
		StartDate:   end,
		EndDate:     end,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)
}

func TestCancelReleasesWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	machine := env.machine(t, "Compacteur", "CP-90-03")

	start := env.clk.Now().AddDate(0, 0, 1)
	end := start.AddDate(0, 0, 10)
	reservation, err := env.equipment.Reserve(ctx, domain.CreateReservationRequest{
		EquipmentID: machine.ID.String(),
		Site:        "chantier Baud",
		StartDate:   start,
		EndDate:     end,
	})
	require.NoError(t, err)

	require.NoError(t, env.equipment.CancelReservation(ctx, machine.ID.String(), reservation.ID.String()))

	err = env.equipment.CancelReservation(ctx, machine.ID.String(), reservation.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotReserved)

	// The cancelled window is free again.
	_, err = env.equipment.Reserve(ctx, domain.CreateReservationRequest{
		EquipmentID: machine.ID.String(),
		Site:        "chantier Pluvigner",
		StartDate:   start.Add(time.Hour),
		EndDate:     end,
	})
	require.NoError(t, err)
}

func TestMovementFulfillsReservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	machine := env.machine(t, "Grue mobile", "GM-400-12")

	start := env.clk.Now()
	reservation, err := env.equipment.Reserve(ctx, domain.CreateReservationRequest{
		EquipmentID: machine.ID.String(),
		Site:        "chantier Quiberon",
		StartDate:   start,
		EndDate:     start.AddDate(0, 0, 14),
	})
	require.NoError(t, err)

	movement, err := env.equipment.RecordMovement(ctx, domain.RecordMovementRequest{
		EquipmentID:   machine.ID.String(),
		ToLocation:    "chantier Quiberon",
		ReservationID: reservation.ID.String(),
	})
	require.NoError(t, err)
	require.NotNil(t, movement.ReservationID)
	assert.Equal(t, reservation.ID, *movement.ReservationID)

	reservations, err := env.equipment.ListReservations(ctx, domain.ListReservationsRequest{
		EquipmentID: machine.ID.String(),
	})
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, domain.ReservationFulfilled, reservations[0].Status)
	require.NotNil(t, reservations[0].FulfilledMovementID)
	assert.Equal(t, movement.ID, *reservations[0].FulfilledMovementID)

	// A fulfilled reservation cannot back another movement.
	_, err = env.equipment.RecordMovement(ctx, domain.RecordMovementRequest{
		EquipmentID:   machine.ID.String(),
		ToLocation:    "depot",
		ReservationID: reservation.ID.String(),
	})
	assert.ErrorIs(t, err, domain.ErrNotReserved)
}

func TestExpireReservationsSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	machine := env.machine(t, "Echafaudage", "EC-200-08")

	start := env.clk.Now()
	_, err := env.equipment.Reserve(ctx, domain.CreateReservationRequest{
		EquipmentID: machine.ID.String(),
		Site:        "chantier Carnac",
		StartDate:   start,
		EndDate:     start.AddDate(0, 0, 3),
	})
	require.NoError(t, err)

	env.clk.Advance(4 * 24 * time.Hour)
	count, err := env.equipment.ExpireReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	reservations, err := env.equipment.ListReservations(ctx, domain.ListReservationsRequest{
		EquipmentID: machine.ID.String(),
		Status:      "expired",
	})
	require.NoError(t, err)
	assert.Len(t, reservations, 1)

	count, err = env.equipment.ExpireReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestListFiltersAvailability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	busy := env.machine(t, "Dumper", "DU-30-01")
	env.machine(t, "Plaque vibrante", "PV-11-09")

	unavailable := false
	_, err := env.equipment.Update(ctx, domain.UpdateEquipmentRequest{
		ID:        busy.ID.String(),
		Available: &unavailable,
	})
	require.NoError(t, err)

	available := true
	resp, err := env.equipment.List(ctx, domain.ListEquipmentRequest{Available: &available})
	require.NoError(t, err)
	require.Len(t, resp.Equipment, 1)
	assert.Equal(t, "Plaque vibrante", resp.Equipment[0].Name)

	resp, err = env.equipment.List(ctx, domain.ListEquipmentRequest{Search: "Dumper"})
	require.NoError(t, err)
	require.Len(t, resp.Equipment, 1)
	assert.Equal(t, busy.ID, resp.Equipment[0].ID)
}
