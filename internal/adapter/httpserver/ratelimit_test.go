package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRemoteAddr = "1.2.3.4:1234"

func serveLimited(t *testing.T, e *echo.Echo, handler echo.HandlerFunc, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec
}

func TestUpgradeRateLimiterAllowsBurst(t *testing.T) {
	e := echo.New()
	handler := newUpgradeRateLimiter(10, 3)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for range 3 {
		rec := serveLimited(t, e, handler, testRemoteAddr)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestUpgradeRateLimiterRejectsExcess(t *testing.T) {
	e := echo.New()
	handler := newUpgradeRateLimiter(0.01, 1)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := serveLimited(t, e, handler, testRemoteAddr)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serveLimited(t, e, handler, testRemoteAddr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "too many connection attempts", rec.Body.String())
}

func TestUpgradeRateLimiterTracksIPsSeparately(t *testing.T) {
	e := echo.New()
	handler := newUpgradeRateLimiter(0.01, 1)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	assert.Equal(t, http.StatusOK, serveLimited(t, e, handler, testRemoteAddr).Code)
	assert.Equal(t, http.StatusOK, serveLimited(t, e, handler, "5.6.7.8:5678").Code)
	assert.Equal(t, http.StatusTooManyRequests, serveLimited(t, e, handler, testRemoteAddr).Code)
}
