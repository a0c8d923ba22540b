package endpoints

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"projectstore/internal/auth"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
)

const (
	userKey   = "user"
	userIDKey = "user_id"
)

var errNoUser = errors.New("no signed in user")

// TokenValidator checks a bearer token and returns its claims.
// *validator.Validator satisfies it.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (interface{}, error)
}

// profileClaims are the custom claims the editor's access tokens carry.
type profileClaims struct {
	Email string `json:"email"`
}

func (profileClaims) Validate(ctx context.Context) error { return nil }

// Auth0Middleware checks Auth0 access tokens against the tenant's JWKS.
func Auth0Middleware() gin.HandlerFunc {
	cfg := auth.GetAuth0Config()
	issuerURL, err := url.Parse(fmt.Sprintf("https://%s/", cfg.Domain))
	if err != nil {
		panic(fmt.Sprintf("invalid Auth0 domain %q: %v", cfg.Domain, err))
	}
	provider := jwks.NewCachingProvider(issuerURL, 24*time.Hour)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{cfg.Audience},
		validator.WithCustomClaims(func() validator.CustomClaims { return &profileClaims{} }),
	)
	if err != nil {
		panic(fmt.Sprintf("Failed to create JWT validator: %v", err))
	}

	slog.Info("Auth0 token validation enabled", "domain", cfg.Domain, "audience", cfg.Audience)
	return NewAuthMiddleware(jwtValidator)
}

// NewAuthMiddleware turns a valid bearer token into the request's user.
// Requests without one are rejected with 401.
func NewAuthMiddleware(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Missing bearer token"})
			return
		}

		validated, err := v.ValidateToken(c.Request.Context(), token)
		if err != nil {
			slog.Warn("Rejected access token", "path", c.Request.URL.Path, "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid token"})
			return
		}
		claims, ok := validated.(*validator.ValidatedClaims)
		if !ok || claims.RegisteredClaims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid token claims"})
			return
		}

		profile := &auth.Profile{ID: claims.RegisteredClaims.Subject}
		if custom, ok := claims.CustomClaims.(*profileClaims); ok {
			profile.Email = custom.Email
		}
		slog.Debug("Request authenticated", "user_id", profile.ID, "path", c.Request.URL.Path)

		SetUser(c, auth.NewStaticUser(profile, token))
		c.Next()
	}
}

// SetUser attaches the request's user. The auth middleware calls it; tests can too.
func SetUser(c *gin.Context, user auth.User) {
	c.Set(userKey, user)
	if profile := user.Profile(); profile != nil {
		c.Set(userIDKey, profile.ID)
	}
}

// GetUser returns the request's user, or an anonymous one.
func GetUser(c *gin.Context) auth.User {
	if value, ok := c.Get(userKey); ok {
		if user, ok := value.(auth.User); ok {
			return user
		}
	}
	return auth.Anonymous()
}

// GetUserID returns the signed in user's profile id.
func GetUserID(c *gin.Context) (string, error) {
	userID := c.GetString(userIDKey)
	if userID == "" {
		return "", errNoUser
	}
	return userID, nil
}
