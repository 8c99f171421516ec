package numbering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/batipilot/batipilot/pkg/db"
)

func TestNextFormatsAndIncrements(t *testing.T) {
	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&DocumentSequence{}))

	alloc := NewAllocator()
	ctx := context.Background()

	var first, second, other string
	err = dbConn.Transaction(func(tx *gorm.DB) error {
		first, err = alloc.Next(ctx, tx, "DEV", 2026)
		if err != nil {
			return err
		}
		second, err = alloc.Next(ctx, tx, "DEV", 2026)
		if err != nil {
			return err
		}
		other, err = alloc.Next(ctx, tx, "FAC", 2026)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, "DEV-2026-0001", first)
	assert.Equal(t, "DEV-2026-0002", second)
	assert.Equal(t, "FAC-2026-0001", other)
}

func TestNextSeparatesYears(t *testing.T) {
	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&DocumentSequence{}))

	alloc := NewAllocator()
	ctx := context.Background()

	err = dbConn.Transaction(func(tx *gorm.DB) error {
		if _, err := alloc.Next(ctx, tx, "DEV", 2026); err != nil {
			return err
		}
		number, err := alloc.Next(ctx, tx, "DEV", 2027)
		if err != nil {
			return err
		}
		assert.Equal(t, "DEV-2027-0001", number)
		return nil
	})
	require.NoError(t, err)
}

func TestRollbackReleasesNumber(t *testing.T) {
	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&DocumentSequence{}))

	alloc := NewAllocator()
	ctx := context.Background()

	sentinel := assert.AnError
	err = dbConn.Transaction(func(tx *gorm.DB) error {
		if _, err := alloc.Next(ctx, tx, "DEV", 2026); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var number string
	err = dbConn.Transaction(func(tx *gorm.DB) error {
		number, err = alloc.Next(ctx, tx, "DEV", 2026)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "DEV-2026-0001", number)
}
