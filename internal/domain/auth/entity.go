package auth

import (
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials indicates a login failure. Unknown email and wrong
	// password both map here.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserAlreadyExists signals a registration for an email that is taken.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrDuplicateEmail is returned by stores when the email uniqueness
	// constraint rejects an insert.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUserNotFound indicates missing user.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidRefreshToken covers malformed, forged and expired refresh tokens.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrInvalidToken means a bearer access token cannot be accepted.
	ErrInvalidToken = errors.New("token invalid or expired")
	// ErrEmailRequired rejects registrations without an email.
	ErrEmailRequired = errors.New("email is required")
	// ErrPasswordRequired rejects registrations without a password.
	ErrPasswordRequired = errors.New("password is required")
	// ErrPasswordTooLong rejects passwords beyond what bcrypt can hash.
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// User models the authentication entity persisted in storage.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Sanitized returns a copy of the user without the password hash.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.PasswordHash = ""
	return &out
}

// Credentials captures raw credential input for login.
type Credentials struct {
	Email    string
	Password string
}

// TokenPair bundles the access and refresh tokens handed to a client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Claims is the payload carried by both access and refresh tokens.
type Claims struct {
	Subject   string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session is the result of a successful register or login.
type Session struct {
	User   *User
	Tokens TokenPair
}
