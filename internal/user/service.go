package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MikeMC777/mia-shop/internal/auth"
	"github.com/MikeMC777/mia-shop/internal/logx"
)

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInactive           = errors.New("user account is inactive")
)

type Service struct {
	repo   Repository
	tokens *auth.Manager
	log    *zap.Logger
}

func NewService(repo Repository, tokens *auth.Manager, log *zap.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, log: log}
}

// Register creates an active user and signs them in.
func (s *Service) Register(ctx context.Context, in RegisterRequest) (*auth.Pair, error) {
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		FullName:     in.FullName,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	logx.FromContext(ctx, s.log).Info("user.registered", zap.String("user_id", u.ID))
	return s.tokens.IssuePair(u.ID)
}

func (s *Service) Login(ctx context.Context, in LoginRequest) (*auth.Pair, error) {
	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(u.PasswordHash, in.Password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInactive
	}
	return s.tokens.IssuePair(u.ID)
}

// Refresh issues a new access token; the refresh token itself is returned unchanged.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*auth.Pair, error) {
	sub, err := s.tokens.Parse(refreshToken, auth.TypeRefresh)
	if err != nil {
		return nil, err
	}
	if _, err := s.Active(ctx, sub); err != nil {
		return nil, err
	}
	access, err := s.tokens.IssueAccess(sub)
	if err != nil {
		return nil, err
	}
	return &auth.Pair{AccessToken: access, RefreshToken: refreshToken, TokenType: "bearer"}, nil
}

// Active returns the user if it exists and has not been deactivated.
func (s *Service) Active(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInactive
	}
	return u, nil
}
