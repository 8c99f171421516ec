// Package seed bootstraps the initial admin account for self-hosted
// installs.
package seed

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	authdomain "github.com/batipilot/batipilot/internal/auth/domain"
	"github.com/batipilot/batipilot/internal/config"
)

// EnsureAdmin creates the bootstrap admin user when the configuration
// names one and no user with that email exists yet. A blank bootstrap
// email disables seeding.
func EnsureAdmin(db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	email := strings.ToLower(strings.TrimSpace(cfg.BootstrapAdminEmail))
	if email == "" {
		return nil
	}
	if len(cfg.BootstrapAdminPassword) < 8 {
		return errors.New("bootstrap admin password must be at least 8 characters")
	}

	var count int64
	if err := db.Model(&authdomain.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.BootstrapAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return db.Create(&authdomain.User{
		ID:           node.Generate(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Administrateur",
		Role:         authdomain.RoleAdmin,
		Active:       true,
	}).Error
}
