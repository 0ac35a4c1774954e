package auth

import (
	"context"
	"errors"
	"strings"

	domain "credauth/backend/internal/domain/auth"
)

// SeedUser is an account to create through the normal registration path.
type SeedUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// SeedResult lists which emails were created and which already existed.
type SeedResult struct {
	Created  []string
	Existing []string
}

// Seed registers each user in order. Users that already exist are recorded
// and skipped, so seeding twice is harmless. Any other failure stops the run.
func (s *Service) Seed(ctx context.Context, users []SeedUser) (SeedResult, error) {
	var result SeedResult
	for _, u := range users {
		session, err := s.Register(ctx, u.Email, u.Password, u.Name)
		switch {
		case errors.Is(err, domain.ErrUserAlreadyExists):
			result.Existing = append(result.Existing, strings.TrimSpace(u.Email))
		case err != nil:
			return result, err
		default:
			result.Created = append(result.Created, session.User.Email)
		}
	}
	s.logger.InfoContext(ctx, "seed finished", "created", len(result.Created), "existing", len(result.Existing))
	return result, nil
}
