package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	authdomain "github.com/batipilot/batipilot/internal/auth/domain"
	catalogdomain "github.com/batipilot/batipilot/internal/catalog/domain"
	"github.com/batipilot/batipilot/internal/config"
	equipmentdomain "github.com/batipilot/batipilot/internal/equipment/domain"
	invoicedomain "github.com/batipilot/batipilot/internal/invoice/domain"
	"github.com/batipilot/batipilot/internal/numbering"
	opportunitydomain "github.com/batipilot/batipilot/internal/opportunity/domain"
	quotedomain "github.com/batipilot/batipilot/internal/quote/domain"
	"github.com/batipilot/batipilot/internal/seed"
	tiersdomain "github.com/batipilot/batipilot/internal/tiers/domain"
	worklibdomain "github.com/batipilot/batipilot/internal/worklib/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// The versioned SQL migrations target postgres. Other dialects
		// (sqlite for local runs) fall back to the model schema.
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else if err := autoMigrate(conn); err != nil {
			return err
		}

		return seed.EnsureAdmin(conn, cfg)
	}),
)

func autoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&authdomain.User{},
		&tiersdomain.Tiers{},
		&tiersdomain.Address{},
		&tiersdomain.Contact{},
		&tiersdomain.Activity{},
		&catalogdomain.Category{},
		&catalogdomain.Material{},
		&catalogdomain.Labor{},
		&worklibdomain.Work{},
		&worklibdomain.Ingredient{},
		&opportunitydomain.Opportunity{},
		&numbering.DocumentSequence{},
		&quotedomain.Quote{},
		&quotedomain.QuoteItem{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
		&invoicedomain.Payment{},
		&equipmentdomain.Category{},
		&equipmentdomain.Equipment{},
		&equipmentdomain.Movement{},
		&equipmentdomain.Reservation{},
	)
}
