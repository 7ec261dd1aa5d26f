package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Martins1-1/logsonlinee-sub000/internal/handler"
	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/auth"
	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/redis"
	redismocks "github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/redis/mocks"
	"github.com/Martins1-1/logsonlinee-sub000/internal/models"
	"github.com/Martins1-1/logsonlinee-sub000/internal/services/mocks"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routerFixture struct {
	router   *mux.Router
	cache    *redismocks.MockRedisClient
	payments *mocks.MockPaymentService
	jwt      *auth.JWTService
}

var routerHealthy = true

func newRouterFixture(t *testing.T) *routerFixture {
	ctrl := gomock.NewController(t)
	f := &routerFixture{
		cache:    redismocks.NewMockRedisClient(ctrl),
		payments: mocks.NewMockPaymentService(ctrl),
		jwt:      auth.NewJWTService("secret", time.Hour),
	}
	h := handler.NewHandler(mocks.NewMockStoreService(ctrl), f.payments)
	f.router = SetupRouter(h, f.cache, f.jwt, map[string]HealthCheck{
		"postgres": func(context.Context) error {
			if routerHealthy {
				return nil
			}
			return errors.New("connection refused")
		},
	})
	return f
}

func (f *routerFixture) token(t *testing.T, role models.Role) (uuid.UUID, string) {
	userID := uuid.New()
	token, err := f.jwt.GenerateJWT(userID, role)
	require.NoError(t, err)
	f.cache.EXPECT().Get(gomock.Any(), redis.TokenKey(userID.String())).Return(token, nil)
	return userID, token
}

func (f *routerFixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	f := newRouterFixture(t)

	routerHealthy = true
	rec := f.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"postgres":"ok"`)

	routerHealthy = false
	defer func() { routerHealthy = true }()
	rec = f.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestWebhookIsPublic(t *testing.T) {
	f := newRouterFixture(t)
	body := `{"transactionReference":"ERCS-1"}`
	f.payments.EXPECT().HandleWebhook(gomock.Any(), []byte(body))

	rec := f.do(http.MethodPost, "/api/payments/webhook", "", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"received"}`, rec.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(http.MethodGet, "/api/payments", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	userID, token := f.token(t, models.RoleUser)
	f.payments.EXPECT().History(gomock.Any(), userID, 0, 0).Return([]models.Payment{}, nil)
	rec = f.do(http.MethodGet, "/api/payments", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	f := newRouterFixture(t)

	_, userToken := f.token(t, models.RoleUser)
	rec := f.do(http.MethodGet, "/api/admin/payments/orphaned", userToken, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	_, adminToken := f.token(t, models.RoleAdmin)
	f.payments.EXPECT().ListOrphaned(gomock.Any(), 0).Return([]models.Payment{}, nil)
	rec = f.do(http.MethodGet, "/api/admin/payments/orphaned", adminToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
