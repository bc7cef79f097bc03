package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEcho(secret string) *echo.Echo {
	e := echo.New()
	guard := JWTMiddleware(secret, func(c echo.Context) bool { return c.Request().Method == http.MethodGet })
	handler := func(c echo.Context) error {
		subject, err := SubjectFromContext(c)
		if err != nil {
			return c.String(http.StatusOK, "anonymous")
		}
		return c.String(http.StatusOK, subject)
	}
	e.GET("/config", handler, guard)
	e.POST("/config", handler, guard)
	return e
}

func do(e *echo.Echo, method, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/config", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware(t *testing.T) {
	e := newEcho("secret")
	token, expires, err := GenerateToken("ops", "secret", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	rec := do(e, http.MethodPost, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodPost, "").Code)

	forged, _, err := GenerateToken("ops", "other", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodPost, forged).Code)

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "").Code)
}

func TestJWTMiddlewareDisabledWithoutSecret(t *testing.T) {
	rec := do(newEcho(""), http.MethodPost, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestGenerateTokenValidation(t *testing.T) {
	_, _, err := GenerateToken("ops", "", time.Hour)
	assert.Error(t, err)
	_, _, err = GenerateToken("", "secret", time.Hour)
	assert.Error(t, err)
	_, _, err = GenerateToken("ops", "secret", 0)
	assert.Error(t, err)
}
