package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/session-auth/internal/core/domain"
	logicv1 "github.com/duynhne/session-auth/internal/logic/v1"
	"github.com/duynhne/session-auth/middleware"
	pkgzerolog "github.com/duynhne/pkg/logger/zerolog"
)

const sessionContextKey = "auth.session"

// Handler groups HTTP handlers for the auth API v1.
// Dependencies are injected via the constructor, no global state.
type Handler struct {
	auth *logicv1.AuthService
}

// NewHandler creates a new Handler with the given AuthService.
func NewHandler(auth *logicv1.AuthService) *Handler {
	return &Handler{auth: auth}
}

// RegisterRoutes registers all auth API v1 routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.POST("/logout", h.Logout)
	rg.GET("/profile", h.GetProfile)
	rg.GET("/check-session", h.CheckSession)
	rg.GET("/sessions", h.RequireSession(), h.ListSessions)
}

func startSpan(c *gin.Context) (context.Context, trace.Span) {
	return middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
}

// bearerToken returns the token from "Authorization: Bearer <token>", or ""
// when the header is missing or not a bearer credential.
func bearerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(c.GetHeader("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type authBody struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

func newAuthBody(resp *domain.AuthResponse, message string) authBody {
	return authBody{
		ID:      resp.User.ID,
		Name:    resp.User.Name,
		Email:   resp.User.Email,
		Token:   resp.Token,
		Message: message,
	}
}

// Register handles POST /register.
func (h *Handler) Register(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)

	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		logger.Warn().Err(err).Msg("Invalid request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	span.SetAttributes(attribute.Bool("request.valid", true))

	response, err := h.auth.Register(ctx, req)
	if err != nil {
		span.RecordError(err)

		var vErr *logicv1.ValidationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message})
		case errors.Is(err, logicv1.ErrUserExists):
			logger.Info().Str("email", req.Email).Msg("Registration rejected, email taken")
			c.JSON(http.StatusBadRequest, gin.H{"error": "User already exists with this email"})
		default:
			logger.Error().Err(err).Str("email", req.Email).Msg("Registration failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	logger.Info().Str("user_id", response.User.ID).Msg("Registration successful")
	c.JSON(http.StatusCreated, newAuthBody(response, "Registration successful!"))
}

// Login handles POST /login.
func (h *Handler) Login(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)

	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		logger.Warn().Err(err).Msg("Invalid request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	span.SetAttributes(attribute.Bool("request.valid", true))

	response, err := h.auth.Login(ctx, req)
	if err != nil {
		span.RecordError(err)

		var vErr *logicv1.ValidationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message})
		case errors.Is(err, logicv1.ErrInvalidCredentials):
			// One message for unknown email and wrong password.
			logger.Info().Msg("Login rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		default:
			logger.Error().Err(err).Msg("Login failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	logger.Info().Str("user_id", response.User.ID).Msg("Login successful")
	c.JSON(http.StatusOK, newAuthBody(response, "Login successful!"))
}

// Logout handles POST /logout.
// Authorization: Bearer <token>
func (h *Handler) Logout(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)

	err := h.auth.Logout(ctx, bearerToken(c))
	if err != nil {
		span.RecordError(err)

		var vErr *logicv1.ValidationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message})
		case errors.Is(err, logicv1.ErrInvalidToken):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		default:
			logger.Error().Err(err).Msg("Logout failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// GetProfile handles GET /profile.
// Authorization: Bearer <token>
func (h *Handler) GetProfile(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)

	token := bearerToken(c)
	if token == "" {
		span.SetAttributes(attribute.Bool("auth.present", false))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authorized, no token"})
		return
	}

	span.SetAttributes(attribute.Bool("auth.present", true))

	profile, err := h.auth.GetProfile(ctx, token)
	if err != nil {
		span.RecordError(err)
		if !writeAuthError(c, err) {
			logger.Error().Err(err).Msg("Profile lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, profile)
}

// CheckSession handles GET /check-session. It always answers 200; callers
// branch on the valid field.
func (h *Handler) CheckSession(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	check := h.auth.CheckSession(ctx, bearerToken(c))
	span.SetAttributes(attribute.Bool("session.valid", check.Valid))

	body := gin.H{"valid": check.Valid}
	if check.Message != "" {
		body["message"] = check.Message
	}
	if check.User != nil {
		body["user"] = check.User
	}
	if check.Session != nil {
		body["session"] = check.Session
	}
	c.JSON(http.StatusOK, body)
}

// ListSessions handles GET /sessions. Routed behind RequireSession.
func (h *Handler) ListSessions(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	sessions, err := h.auth.ListSessions(ctx)
	if err != nil {
		span.RecordError(err)
		pkgzerolog.FromContext(ctx).Error().Err(err).Msg("List sessions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"activeSessions": sessions,
		"totalSessions":  len(sessions),
	})
}

// RequireSession aborts with 401 unless the request carries a valid token
// for a user with a live session. The session is stored under
// sessionContextKey for downstream handlers.
func (h *Handler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authorized, no token"})
			return
		}

		session, err := h.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !writeAuthError(c, err) {
				pkgzerolog.FromContext(c.Request.Context()).Error().Err(err).Msg("Session lookup failed")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			}
			c.Abort()
			return
		}

		c.Set(sessionContextKey, session)
		c.Next()
	}
}

// SessionFromContext returns the session set by RequireSession.
func SessionFromContext(c *gin.Context) (*domain.Session, bool) {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil, false
	}
	session, ok := v.(*domain.Session)
	return session, ok
}

// writeAuthError writes the 401 body for token and session failures and
// reports whether err was one of them.
func writeAuthError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, logicv1.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
	case errors.Is(err, logicv1.ErrInvalidToken), errors.Is(err, logicv1.ErrUserNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authorized, token failed"})
	default:
		return false
	}
	return true
}
