package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	authdomain "credauth/backend/internal/domain/auth"
)

func (s *Server) registerRoutes() {
	s.router.Handle("/health", http.HandlerFunc(s.handleHealth))
	s.router.Handle("/health/ping", http.HandlerFunc(s.handlePing))
	s.router.Handle("/auth/register", http.HandlerFunc(s.handleRegister))
	s.router.Handle("/auth/login", http.HandlerFunc(s.handleLogin))
	s.router.Handle("/auth/refresh", http.HandlerFunc(s.handleRefresh))
	s.router.Handle("/auth/me", s.authMiddleware(http.HandlerFunc(s.handleMe)))
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}
}

type sessionResponse struct {
	User         *authdomain.User `json:"user"`
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
}

func newSessionResponse(session *authdomain.Session) sessionResponse {
	return sessionResponse{
		User:         session.User.Sanitized(),
		AccessToken:  session.Tokens.AccessToken,
		RefreshToken: session.Tokens.RefreshToken,
	}
}

// healthPingTimeout bounds the database check behind /health.
const healthPingTimeout = 2 * time.Second

// handleHealth reports 503 when the database, if any, cannot be reached.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	checks := map[string]string{}
	status, code := "ok", http.StatusOK
	if s.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := s.database.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "database health check failed",
				"request_id", requestIDFromContext(r.Context()), "error", err)
			checks["database"] = "down"
			status, code = "error", http.StatusServiceUnavailable
		} else {
			checks["database"] = "up"
		}
	}

	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"message":   "pong",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Seconds(),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		writeDecodeError(w, err, "invalid JSON payload")
		return
	}

	session, err := s.authService.Register(r.Context(), payload.Email, payload.Password, payload.Name)
	if err != nil {
		s.metrics.observeAuth("register", outcomeOf(err))
		s.writeAuthError(w, r, "register", err)
		return
	}

	s.metrics.observeAuth("register", "success")
	writeJSON(w, http.StatusCreated, newSessionResponse(session))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		writeDecodeError(w, err, "invalid JSON payload")
		return
	}

	session, err := s.authService.Login(r.Context(), authdomain.Credentials{
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		s.metrics.observeAuth("login", outcomeOf(err))
		s.writeAuthError(w, r, "login", err)
		return
	}

	s.metrics.observeAuth("login", "success")
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		var payload struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeJSON(w, r, &payload); err != nil {
			writeDecodeError(w, err, "refresh token required")
			return
		}
		token = strings.TrimSpace(payload.RefreshToken)
	}

	if token == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "refresh token required")
		return
	}

	pair, err := s.authService.Refresh(r.Context(), token)
	if err != nil {
		s.metrics.observeAuth("refresh", outcomeOf(err))
		s.writeAuthError(w, r, "refresh", err)
		return
	}

	s.metrics.observeAuth("refresh", "success")
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	user, ok := currentUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user.Sanitized()})
}

// writeAuthError maps auth failures to status codes. Anything unrecognised
// is logged and reported as a generic 500.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	switch {
	case errors.Is(err, authdomain.ErrUserAlreadyExists):
		writeError(w, http.StatusConflict, codeUserExists, authdomain.ErrUserAlreadyExists.Error())
	case errors.Is(err, authdomain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, codeInvalidCredentials, authdomain.ErrInvalidCredentials.Error())
	case errors.Is(err, authdomain.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, codeInvalidRefreshToken, authdomain.ErrInvalidRefreshToken.Error())
	case errors.Is(err, authdomain.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, codeUserNotFound, authdomain.ErrUserNotFound.Error())
	case errors.Is(err, authdomain.ErrEmailRequired),
		errors.Is(err, authdomain.ErrPasswordRequired),
		errors.Is(err, authdomain.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "auth operation failed",
			"request_id", requestIDFromContext(r.Context()), "operation", operation, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, authdomain.ErrUserAlreadyExists):
		return "conflict"
	case errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidRefreshToken),
		errors.Is(err, authdomain.ErrUserNotFound):
		return "rejected"
	case errors.Is(err, authdomain.ErrEmailRequired),
		errors.Is(err, authdomain.ErrPasswordRequired),
		errors.Is(err, authdomain.ErrPasswordTooLong):
		return "invalid"
	default:
		return "error"
	}
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "authorization token required")
			return
		}

		user, err := s.authService.Authenticate(r.Context(), token)
		if err != nil {
			if !errors.Is(err, authdomain.ErrInvalidToken) {
				s.logger.ErrorContext(r.Context(), "authenticate failed",
					"request_id", requestIDFromContext(r.Context()), "error", err)
				writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
				return
			}
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUser{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type ctxKeyUser struct{}

func currentUserFromContext(ctx context.Context) (*authdomain.User, bool) {
	user, ok := ctx.Value(ctxKeyUser{}).(*authdomain.User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

func extractBearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
