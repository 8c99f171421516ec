package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/batipilot/batipilot/internal/auth/domain"
	"github.com/batipilot/batipilot/internal/auth/token"
	"github.com/batipilot/batipilot/internal/clock"
	"github.com/batipilot/batipilot/internal/config"
	"github.com/batipilot/batipilot/internal/userctx"
	"github.com/batipilot/batipilot/pkg/db"
)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	cfg := config.Config{AuthJWTSecret: "test-secret", AuthTokenTTLHrs: 24}

	svc := New(Params{
		DB:     dbConn,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Tokens: token.NewManager(cfg, clk),
	})
	return svc, clk
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateUser(context.Background(), domain.CreateUserRequest{
		Email:    "alice@example.com",
		Password: "correct-password",
		FullName: "Alice",
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	_, err = svc.Login(context.Background(), domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	if err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginIssuesToken(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.CreateUser(context.Background(), domain.CreateUserRequest{
		Email:    "bob@example.com",
		Password: "strong-password",
		FullName: "Bob",
		Role:     domain.RoleManager,
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	resp, err := svc.Login(context.Background(), domain.LoginRequest{
		Email:    "bob@example.com",
		Password: "strong-password",
	})
	if err != nil {
		t.Fatalf("failed to login: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected token")
	}
	if resp.User.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, resp.User.ID)
	}
	if resp.User.Role != domain.RoleManager {
		t.Fatalf("expected role manager, got %s", resp.User.Role)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)

	req := domain.CreateUserRequest{
		Email:    "carol@example.com",
		Password: "strong-password",
		FullName: "Carol",
	}
	if _, err := svc.CreateUser(context.Background(), req); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if _, err := svc.CreateUser(context.Background(), req); err != domain.ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.CreateUser(context.Background(), domain.CreateUserRequest{
		Email:    "dave@example.com",
		Password: "initial-password",
		FullName: "Dave",
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	ctx := userctx.WithUser(context.Background(), user.ID, string(user.Role))
	err = svc.ChangePassword(ctx, domain.ChangePasswordRequest{
		CurrentPassword: "initial-password",
		NewPassword:     "rotated-password",
	})
	if err != nil {
		t.Fatalf("failed to change password: %v", err)
	}

	if _, err := svc.Login(context.Background(), domain.LoginRequest{
		Email:    "dave@example.com",
		Password: "initial-password",
	}); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := svc.Login(context.Background(), domain.LoginRequest{
		Email:    "dave@example.com",
		Password: "rotated-password",
	}); err != nil {
		t.Fatalf("expected new password accepted, got %v", err)
	}
}

func TestTokenExpires(t *testing.T) {
	svc, clk := newTestService(t)

	user, err := svc.CreateUser(context.Background(), domain.CreateUserRequest{
		Email:    "erin@example.com",
		Password: "strong-password",
		FullName: "Erin",
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	cfg := config.Config{AuthJWTSecret: "test-secret", AuthTokenTTLHrs: 24}
	mgr := token.NewManager(cfg, clk)

	signed, err := mgr.Issue(user.ID, string(user.Role))
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	if _, err := mgr.Parse(signed); err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}

	clk.Advance(25 * time.Hour)
	if _, err := mgr.Parse(signed); err != token.ErrInvalidToken {
		t.Fatalf("expected expired token, got %v", err)
	}
}
