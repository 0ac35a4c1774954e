// Package password hashes and verifies user passwords with bcrypt.
package password

import (
	usecase "credauth/backend/internal/usecase/auth"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher implements the PasswordHasher port. The work factor is the
// bcrypt cost; salt and cost are embedded in every hash it produces.
type BcryptHasher struct {
	cost int
}

var _ usecase.PasswordHasher = (*BcryptHasher)(nil)

// NewBcryptHasher returns a hasher using cost, or bcrypt.DefaultCost when cost
// is out of range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns a salted bcrypt hash of password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}
	return string(hashed), nil
}

// Verify compares password against hash in constant time. A malformed hash
// is a mismatch.
func (h *BcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Cost reports the work factor new hashes are generated with.
func (h *BcryptHasher) Cost() int {
	return h.cost
}
