package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zishan044/ecommerce-app/internal/auth"
	"github.com/zishan044/ecommerce-app/internal/user/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

var errBadCredentials = fmt.Errorf("%w: incorrect email or password", apperr.ErrAuth)

type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

type Service struct {
	log    *slog.Logger
	repo   UserRepository
	tokens TokenIssuer
	now    func() time.Time
}

func NewService(log *slog.Logger, repo UserRepository, tokens TokenIssuer) *Service {
	return &Service{log: log, repo: repo, tokens: tokens, now: time.Now}
}

func (s *Service) Register(ctx context.Context, reg domain.Registration) (domain.User, error) {
	reg.Email = domain.NormalizeEmail(reg.Email)
	if err := reg.Validate(); err != nil {
		return domain.User{}, err
	}
	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{
		ID:           uuid.NewString(),
		FullName:     strings.TrimSpace(reg.FullName),
		Email:        reg.Email,
		PasswordHash: hash,
		Contact:      reg.Contact,
		Address:      reg.Address,
		AvatarURL:    reg.AvatarURL,
		IsActive:     true,
		Role:         auth.RoleCustomer,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return domain.User{}, fmt.Errorf("register %s: %w", u.Email, err)
	}
	s.log.Info("user registered", "user_id", u.ID)
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	u, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return Token{}, errBadCredentials
	}
	if err != nil {
		return Token{}, err
	}
	ok, err := auth.CheckPassword(u.PasswordHash, password)
	if err != nil {
		return Token{}, err
	}
	if !ok {
		return Token{}, errBadCredentials
	}
	if !u.IsActive {
		return Token{}, fmt.Errorf("%w: inactive user", apperr.ErrAuth)
	}

	access, exp, err := s.tokens.Issue(auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: access, TokenType: "bearer", ExpiresAt: exp}, nil
}

func (s *Service) Me(ctx context.Context, userID string) (domain.User, error) {
	return s.repo.GetByID(ctx, userID)
}
