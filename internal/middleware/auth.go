package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	adapter "github.com/gwatts/gin-adapter"
)

// auth0IDKey lets tests and alternative authenticators set the caller directly.
const auth0IDKey = "auth0_id"

// Auth validates the bearer token against the tenant's JWKS and stores the
// validated claims on the request context.
func Auth(domain, audience string) (gin.HandlerFunc, error) {
	issuerURL, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, fmt.Errorf("parse issuer url: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{audience},
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("set up jwt validator: %w", err)
	}

	mw := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(authErrorHandler),
	)

	return adapter.Wrap(mw.CheckJWT), nil
}

func authErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	if errors.Is(err, jwtmiddleware.ErrJWTMissing) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"UNAUTHORIZED","message":"Authentication required"}`))
		return
	}
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"code":"INVALID_TOKEN","message":"Token is invalid"}`))
}

// SetAuth0ID marks the request as authenticated as the given subject.
func SetAuth0ID(c *gin.Context, sub string) {
	c.Set(auth0IDKey, sub)
}

// GetAuth0ID returns the authenticated subject, preferring an explicitly set
// one over the JWT claims.
func GetAuth0ID(c *gin.Context) (string, bool) {
	if sub := c.GetString(auth0IDKey); sub != "" {
		return sub, true
	}

	claims, ok := claimsFrom(c.Request.Context())
	if !ok || claims.RegisteredClaims.Subject == "" {
		return "", false
	}
	return claims.RegisteredClaims.Subject, true
}

func claimsFrom(ctx context.Context) (*validator.ValidatedClaims, bool) {
	claims, ok := ctx.Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
	return claims, ok
}

// BearerToken returns the raw access token of the request, if any.
func BearerToken(c *gin.Context) string {
	token, err := jwtmiddleware.AuthHeaderTokenExtractor(c.Request)
	if err != nil {
		return ""
	}
	return token
}

// BasicAuth guards operational endpoints. Empty credentials disable access.
func BasicAuth(username, password string) gin.HandlerFunc {
	if username == "" || password == "" {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "message": "Not found"})
		}
	}
	return gin.BasicAuth(gin.Accounts{username: password})
}
