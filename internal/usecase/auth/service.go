package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	domain "credauth/backend/internal/domain/auth"

	"github.com/google/uuid"
)

// decoyPassword is hashed once and compared against when a login names an
// unknown email, so both failure paths pay for a hash comparison.
const decoyPassword = "decoy-password-for-unknown-users"

// Service coordinates authentication workflows between domain and infrastructure.
type Service struct {
	users   domain.UserRepository
	hasher  PasswordHasher
	access  TokenIssuer
	refresh TokenIssuer
	logger  *slog.Logger
	nowFunc func() time.Time
	idFunc  func() string

	decoyOnce sync.Once
	decoyHash string
}

// NewService constructs an auth service. The access and refresh issuers must be
// configured with different secrets.
func NewService(users domain.UserRepository, hasher PasswordHasher, access, refresh TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		users:   users,
		hasher:  hasher,
		access:  access,
		refresh: refresh,
		logger:  logger,
		nowFunc: time.Now,
		idFunc:  uuid.NewString,
	}
}

// Register creates a new user and returns it, without its hash, together with
// a fresh token pair.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, domain.ErrEmailRequired
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserAlreadyExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           s.idFunc(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hashed,
		CreatedAt:    s.nowFunc().UTC(),
	}

	// The pre-check above is only a fast path; the store decides races.
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, domain.ErrUserAlreadyExists
		}
		return nil, err
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return &domain.Session{User: user.Sanitized(), Tokens: tokens}, nil
}

// Login validates credentials and returns the user plus a token pair.
func (s *Service) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	email := strings.TrimSpace(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.hasher.Verify(creds.Password, s.decoy())
			s.logger.InfoContext(ctx, "login rejected")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(creds.Password, user.PasswordHash) {
		s.logger.InfoContext(ctx, "login rejected")
		return nil, domain.ErrInvalidCredentials
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return &domain.Session{User: user.Sanitized(), Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new access and refresh token pair.
// Every verification failure is reported as ErrInvalidRefreshToken.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := s.refresh.Parse(strings.TrimSpace(refreshToken))
	if err != nil {
		s.logger.DebugContext(ctx, "refresh token rejected", "reason", err)
		return domain.TokenPair{}, domain.ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return domain.TokenPair{}, err
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return domain.TokenPair{}, err
	}

	s.logger.InfoContext(ctx, "session refreshed", "user_id", user.ID)
	return tokens, nil
}

// ValidateUser returns the current user record without its hash. The boolean is
// false when no such user exists.
func (s *Service) ValidateUser(ctx context.Context, id string) (*domain.User, bool, error) {
	user, err := s.users.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return user.Sanitized(), true, nil
}

// Authenticate validates a bearer access token and re-fetches its user.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.access.Parse(accessToken)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	user, ok, err := s.ValidateUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	return user, nil
}

func (s *Service) issuePair(user *domain.User) (domain.TokenPair, error) {
	access, err := s.access.Issue(user.ID, user.Email)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := s.refresh.Issue(user.ID, user.Email)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) decoy() string {
	s.decoyOnce.Do(func() {
		hashed, err := s.hasher.Hash(decoyPassword)
		if err != nil {
			s.logger.Error("decoy hash failed", "error", err)
			return
		}
		s.decoyHash = hashed
	})
	return s.decoyHash
}

func checkPassword(password string) error {
	if password == "" {
		return domain.ErrPasswordRequired
	}
	if len(password) > domain.MaxPasswordBytes {
		return domain.ErrPasswordTooLong
	}
	return nil
}
