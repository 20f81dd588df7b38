package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"armario-estampados/app/controller"
	"armario-estampados/models"
	"armario-estampados/service"
)

type stubRegeneration struct{}

func (stubRegeneration) Regenerate(context.Context, models.RegenerationRequest, string) (*models.RegenerationResult, error) {
	return &models.RegenerationResult{}, nil
}

func (stubRegeneration) RegenerateOrder(context.Context, string, string) (*models.RegenerationResult, error) {
	return &models.RegenerationResult{}, nil
}

func (stubRegeneration) GetFiles(context.Context, string) (*models.RegenerationResult, error) {
	return &models.RegenerationResult{}, nil
}

func newTestRouter(opts Options) http.Handler {
	return NewRouter(&Controllers{
		Session:      controller.NewSessionController(nil),
		Regeneration: controller.NewRegenerationController(stubRegeneration{}, nil, nil),
	}, opts)
}

func TestRouter_Ping(t *testing.T) {
	h := newTestRouter(Options{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_Metrics(t *testing.T) {
	h := newTestRouter(Options{})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_CORS(t *testing.T) {
	h := newTestRouter(Options{AllowedOrigin: "https://shop.example, https://admin.example"})

	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	req.Header.Set("Origin", "https://shop.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RegenerateRateLimit(t *testing.T) {
	h := newTestRouter(Options{RegenerationPerMinute: 1})

	post := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/regenerate", strings.NewReader(`{"orderId":"ord_1"}`)))
		return rec
	}
	require.Equal(t, http.StatusOK, post().Code)

	rec := post()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limited")
}

func TestRouter_UnknownRoute(t *testing.T) {
	h := newTestRouter(Options{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

var _ service.RegenerationServiceInterface = stubRegeneration{}
