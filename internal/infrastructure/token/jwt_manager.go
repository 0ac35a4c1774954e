package token

import (
	"errors"
	"fmt"
	"time"

	domain "credauth/backend/internal/domain/auth"
	usecase "credauth/backend/internal/usecase/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

var (
	// ErrTokenExpired is returned when expiry is the only failing check.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed covers undecodable tokens and invalid claims.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenInvalidSignature means the token was not signed with this manager's secret.
	ErrTokenInvalidSignature = errors.New("token signature invalid")
)

// JWTManager issues and validates HS256 tokens for a single secret and lifetime.
// Access and refresh tokens each get their own manager.
type JWTManager struct {
	secret   []byte
	lifetime time.Duration
	issuer   string
	parser   *jwt.Parser
	nowFunc  func() time.Time
}

// NewJWTManager constructs a manager with the provided secret and lifetime.
func NewJWTManager(secret string, lifetime time.Duration, issuer string) *JWTManager {
	m := &JWTManager{
		secret:   []byte(secret),
		lifetime: lifetime,
		issuer:   issuer,
		nowFunc:  time.Now,
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return m.nowFunc() }),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	m.parser = jwt.NewParser(opts...)
	return m
}

// Ensure JWTManager implements the TokenIssuer interface.
var _ usecase.TokenIssuer = (*JWTManager)(nil)

// Claims represents token claims on the wire: sub, email, iat, exp.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issue creates a signed token for the subject that expires after the
// manager's lifetime.
func (m *JWTManager) Issue(subject, email string) (string, error) {
	now := m.nowFunc().UTC()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Parse verifies the signature and expiry and returns the embedded claims.
func (m *JWTManager) Parse(tokenString string) (*domain.Claims, error) {
	claims := &Claims{}
	token, err := m.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenMalformed
	}
	// iat is only checked by the parser when present.
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, ErrTokenMalformed
	}

	return &domain.Claims{
		Subject:   claims.Subject,
		Email:     claims.Email,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// classify folds jwt errors into the three failure kinds. The signature is
// checked before claims, so an expiry error implies a valid signature.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrTokenInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
}
