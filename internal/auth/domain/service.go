package domain

import (
	"context"
	"errors"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	User      User   `json:"user"`
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type Service interface {
	Login(context.Context, LoginRequest) (LoginResponse, error)
	CreateUser(context.Context, CreateUserRequest) (User, error)
	Me(context.Context) (User, error)
	ChangePassword(context.Context, ChangePasswordRequest) error
}

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrWeakPassword       = errors.New("weak_password")
	ErrInvalidRole        = errors.New("invalid_role")
	ErrEmailTaken         = errors.New("email_taken")
	ErrUserDisabled       = errors.New("user_disabled")
	ErrNotFound           = errors.New("not_found")
	ErrUnauthenticated    = errors.New("unauthenticated")
)
