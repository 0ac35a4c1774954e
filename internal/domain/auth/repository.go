package auth

import "context"

// UserRepository defines persistence operations for auth users.
//
// Create must check email uniqueness atomically with the insert and report a
// clash as ErrDuplicateEmail. Lookups report a missing record as
// ErrUserNotFound.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}
