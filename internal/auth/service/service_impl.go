package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/batipilot/batipilot/internal/auth/domain"
	"github.com/batipilot/batipilot/internal/auth/token"
	"github.com/batipilot/batipilot/internal/clock"
	"github.com/batipilot/batipilot/internal/userctx"
	pkgdb "github.com/batipilot/batipilot/pkg/db"
	"github.com/batipilot/batipilot/pkg/repository"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Tokens *token.Manager
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	tokens *token.Manager

	userRepo repository.Repository[domain.User]
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("auth.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		tokens: p.Tokens,

		userRepo: repository.ProvideStore[domain.User](p.DB),
	}
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return domain.LoginResponse{}, domain.ErrInvalidCredentials
	}

	user, err := s.userRepo.FindOne(ctx, &domain.User{Email: email})
	if err != nil {
		return domain.LoginResponse{}, err
	}
	if user == nil {
		// Burn a comparison anyway so the timing does not reveal
		// whether the account exists.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"), []byte(req.Password))
		return domain.LoginResponse{}, domain.ErrInvalidCredentials
	}
	if !user.Active {
		return domain.LoginResponse{}, domain.ErrUserDisabled
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return domain.LoginResponse{}, domain.ErrInvalidCredentials
	}

	signed, err := s.tokens.Issue(user.ID, string(user.Role))
	if err != nil {
		return domain.LoginResponse{}, err
	}

	s.log.Info("user logged in", zap.String("user_id", user.ID.String()))

	return domain.LoginResponse{
		Token:     signed,
		ExpiresIn: int64(s.tokens.TTL() / time.Second),
		User:      *user,
	}, nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, domain.ErrInvalidEmail
	}
	if len(req.Password) < 8 {
		return domain.User{}, domain.ErrWeakPassword
	}

	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return domain.User{}, domain.ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	now := s.clock.Now()
	user := domain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, &user); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, err
	}

	return user, nil
}

func (s *Service) Me(ctx context.Context) (domain.User, error) {
	userID, ok := userctx.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.User{}, domain.ErrUnauthenticated
	}

	user, err := s.userRepo.FindOne(ctx, &domain.User{ID: userID})
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *user, nil
}

func (s *Service) ChangePassword(ctx context.Context, req domain.ChangePasswordRequest) error {
	userID, ok := userctx.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.ErrUnauthenticated
	}
	if len(req.NewPassword) < 8 {
		return domain.ErrWeakPassword
	}

	user, err := s.userRepo.FindOne(ctx, &domain.User{ID: userID})
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrNotFound
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.userRepo.Update(ctx, user.ID, map[string]any{
		"password_hash": string(hash),
		"updated_at":    s.clock.Now(),
	})
}
