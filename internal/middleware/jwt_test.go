package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ticket-report-export/internal/models"
	appErrors "github.com/noah-isme/ticket-report-export/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
	tokens []string
}

func (v *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	v.tokens = append(v.tokens, token)
	return v.claims, v.err
}

func identityRouter(v tokenValidator, trust bool, seen **models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity(v, trust))
	r.GET("/me", func(c *gin.Context) {
		*seen = ClaimsFromContext(c)
		c.Status(http.StatusOK)
	})
	return r
}

func TestIdentityAcceptsBearerToken(t *testing.T) {
	v := &validatorStub{claims: &models.JWTClaims{Email: "ana@example.com"}}
	var seen *models.JWTClaims
	r := identityRouter(v, false, &seen)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer abc")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"abc"}, v.tokens)
	require.Equal(t, "ana@example.com", seen.Email)
}

func TestIdentityRejectsMissingAndInvalidCredentials(t *testing.T) {
	v := &validatorStub{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}
	var seen *models.JWTClaims
	r := identityRouter(v, false, &seen)

	for _, header := range []string{"", "Basic abc", "Bearer bad"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		req.Header.Set(EmailHeader, "ana@example.com")
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
	require.Nil(t, seen)
}

func TestIdentityTrustsEmailHeaderWhenEnabled(t *testing.T) {
	var seen *models.JWTClaims
	r := identityRouter(&validatorStub{}, true, &seen)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(EmailHeader, " ana@example.com ")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ana@example.com", seen.Email)
}
