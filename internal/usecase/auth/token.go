package auth

import domain "credauth/backend/internal/domain/auth"

// TokenIssuer signs and parses one class of token (access or refresh).
type TokenIssuer interface {
	Issue(subject, email string) (string, error)
	Parse(token string) (*domain.Claims, error)
}

// PasswordHasher abstracts the one-way password hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify reports whether password matches hash. Malformed hashes never match.
	Verify(password, hash string) bool
}
