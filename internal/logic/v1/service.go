package v1

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/duynhne/session-auth/internal/core/domain"
	"github.com/duynhne/session-auth/middleware"
	pkgzerolog "github.com/duynhne/pkg/logger/zerolog"
)

// MinPasswordLength is the shortest accepted password, in characters.
const MinPasswordLength = 6

// AuthService implements authentication business rules.
// It depends on repository interfaces (injected via constructor) and
// MUST NOT access the database directly.
//
// A request is authorized only when its token verifies AND the token's
// user has an entry in the session store.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionStore
	tokens   *TokenIssuer
	now      func() time.Time
	cost     int

	dummyOnce sync.Once
	dummyHash []byte
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithClock overrides the time source used for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithPasswordCost overrides the bcrypt cost.
func WithPasswordCost(cost int) Option {
	return func(s *AuthService) { s.cost = cost }
}

// NewAuthService creates a new AuthService with the given dependencies.
func NewAuthService(users domain.UserRepository, sessions domain.SessionStore, tokens *TokenIssuer, opts ...Option) *AuthService {
	s := &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		now:      time.Now,
		cost:     bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user, mints a token and opens a session.
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.register", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("email", req.Email),
	))
	defer span.End()

	if req.Name == "" || req.Email == "" || req.Password == "" {
		middleware.RecordAuthOperation("register", "invalid")
		return nil, validationError("All fields are required")
	}
	if utf8.RuneCountInString(req.Password) < MinPasswordLength {
		middleware.RecordAuthOperation("register", "invalid")
		return nil, validationError(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}

	existing, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		span.SetAttributes(attribute.Bool("registration.success", false))
		middleware.RecordAuthOperation("register", "conflict")
		return nil, fmt.Errorf("register %q: %w", req.Email, ErrUserExists)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// The unique index catches a concurrent registration that slipped past the check above.
	userID, err := s.users.Create(ctx, req.Name, req.Email, string(passwordHash))
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			middleware.RecordAuthOperation("register", "conflict")
			return nil, fmt.Errorf("register %q: %w", req.Email, ErrUserExists)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("insert user: %w", err)
	}

	user := domain.User{ID: userID, Name: req.Name, Email: req.Email}
	resp, err := s.startSession(ctx, user)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Bool("registration.success", true),
	)
	span.AddEvent("user.registered")
	middleware.RecordAuthOperation("register", "success")

	return resp, nil
}

// Login verifies credentials, mints a fresh token and replaces the user's session.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.login", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("email", req.Email),
	))
	defer span.End()

	if req.Email == "" || req.Password == "" {
		middleware.RecordAuthOperation("login", "invalid")
		return nil, validationError("Email and password are required")
	}

	row, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user %q: %w", req.Email, err)
	}
	if row == nil {
		// Unknown emails still pay for one bcrypt comparison.
		_ = bcrypt.CompareHashAndPassword(s.placeholderHash(), []byte(req.Password))
		span.SetAttributes(attribute.Bool("auth.success", false))
		span.AddEvent("authentication.failed")
		middleware.RecordAuthOperation("login", "invalid_credentials")
		return nil, fmt.Errorf("authenticate %q: %w", req.Email, ErrInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(req.Password)); err != nil {
		span.SetAttributes(attribute.Bool("auth.success", false))
		span.AddEvent("authentication.failed")
		middleware.RecordAuthOperation("login", "invalid_credentials")
		return nil, fmt.Errorf("authenticate %q: %w", req.Email, ErrInvalidCredentials)
	}

	resp, err := s.startSession(ctx, domain.User{ID: row.ID, Name: row.Name, Email: row.Email})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("user.id", row.ID),
		attribute.Bool("auth.success", true),
	)
	span.AddEvent("user.authenticated")
	middleware.RecordAuthOperation("login", "success")

	return resp, nil
}

// Logout removes the session of the token's user. Logging out without a
// session is not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	ctx, span := middleware.StartSpan(ctx, "auth.logout", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if token == "" {
		middleware.RecordAuthOperation("logout", "invalid")
		return validationError("No token provided")
	}

	userID, err := s.verifyToken(ctx, token)
	if err != nil {
		middleware.RecordAuthOperation("logout", "invalid_token")
		return err
	}

	if err := s.sessions.Delete(ctx, userID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete session %q: %w", userID, err)
	}

	span.SetAttributes(attribute.String("user.id", userID))
	middleware.RecordAuthOperation("logout", "success")
	return nil
}

// Authenticate returns the session behind a token. It fails with
// ErrInvalidToken when the token does not verify and ErrSessionExpired
// when the user has no session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	userID, err := s.verifyToken(ctx, token)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get session %q: %w", userID, err)
	}
	if session == nil {
		return nil, fmt.Errorf("user %q: %w", userID, ErrSessionExpired)
	}
	return session, nil
}

// GetProfile returns the stored user record and session metadata.
func (s *AuthService) GetProfile(ctx context.Context, token string) (*domain.Profile, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.get_profile", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	session, err := s.Authenticate(ctx, token)
	if err != nil {
		span.SetAttributes(attribute.Bool("session.valid", false))
		return nil, err
	}

	row, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user %q: %w", session.UserID, err)
	}
	if row == nil {
		return nil, fmt.Errorf("user %q: %w", session.UserID, ErrUserNotFound)
	}

	createdAt := row.CreatedAt
	profile := &domain.Profile{
		User: domain.User{
			ID:        row.ID,
			Name:      row.Name,
			Email:     row.Email,
			CreatedAt: &createdAt,
		},
		Session: s.sessionInfo(session),
	}

	span.SetAttributes(
		attribute.String("user.id", row.ID),
		attribute.Bool("session.valid", true),
	)
	return profile, nil
}

// CheckSession reports whether token belongs to a live session. It never
// fails; the user summary comes from the session cache.
func (s *AuthService) CheckSession(ctx context.Context, token string) *domain.SessionCheck {
	ctx, span := middleware.StartSpan(ctx, "auth.check_session", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if token == "" {
		return &domain.SessionCheck{Message: "No token"}
	}

	session, err := s.Authenticate(ctx, token)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidToken):
		return &domain.SessionCheck{Message: "Invalid token"}
	case errors.Is(err, ErrSessionExpired):
		return &domain.SessionCheck{Message: "Session expired"}
	default:
		span.RecordError(err)
		pkgzerolog.FromContext(ctx).Error().Err(err).Msg("Session check failed")
		return &domain.SessionCheck{Message: "Session check failed"}
	}

	info := s.sessionInfo(session)
	span.SetAttributes(attribute.String("user.id", session.UserID))
	return &domain.SessionCheck{
		Valid: true,
		User: &domain.User{
			ID:    session.UserID,
			Name:  session.Name,
			Email: session.Email,
		},
		Session: &info,
	}
}

// ListSessions returns every current session.
func (s *AuthService) ListSessions(ctx context.Context) ([]domain.Session, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.list_sessions", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	sessions, err := s.sessions.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	span.SetAttributes(attribute.Int("sessions.count", len(sessions)))
	return sessions, nil
}

func (s *AuthService) startSession(ctx context.Context, user domain.User) (*domain.AuthResponse, error) {
	token, _, err := s.tokens.Mint(user.ID)
	if err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}

	session := domain.Session{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		LoginTime: s.now().UTC(),
	}
	if err := s.sessions.Set(ctx, session); err != nil {
		return nil, fmt.Errorf("store session %q: %w", user.ID, err)
	}

	return &domain.AuthResponse{User: user, Token: token}, nil
}

// verifyToken collapses every verification failure into ErrInvalidToken.
// The underlying reason is only logged.
func (s *AuthService) verifyToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("no token: %w", ErrInvalidToken)
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		reason := "malformed"
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			reason = "expired"
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			reason = "bad_signature"
		}
		pkgzerolog.FromContext(ctx).Debug().Err(err).Str("reason", reason).Msg("Token verification failed")
		return "", fmt.Errorf("verify token (%s): %w", reason, ErrInvalidToken)
	}
	return userID, nil
}

func (s *AuthService) sessionInfo(session *domain.Session) domain.SessionInfo {
	return domain.SessionInfo{
		LoginTime: session.LoginTime,
		Duration:  s.now().Sub(session.LoginTime),
	}
}

func (s *AuthService) placeholderHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("placeholder-password"), s.cost)
	})
	return s.dummyHash
}
