package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/taxdesk/internal/api/http/handlers"
	"github.com/spec-kit/taxdesk/internal/auth"
	"github.com/spec-kit/taxdesk/internal/observability"
	"github.com/spec-kit/taxdesk/internal/persistence"
	"github.com/spec-kit/taxdesk/internal/repository"
	"github.com/spec-kit/taxdesk/internal/service"
	"github.com/spec-kit/taxdesk/internal/tax"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	hasher, err := auth.NewPasswordHasher(auth.Argon2Params{MemoryKiB: 64, Iterations: 1, Threads: 1}, 0)
	require.NoError(t, err)
	guard := persistence.NewGuard(time.Second)
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	credentials := service.NewCredentialService(service.CredentialDependencies{
		Identities: repository.NewMemoryIdentityRepository(),
		Hasher:     hasher,
		Guard:      guard,
		Logger:     logger,
	})
	sessions := service.NewSessionService(repository.NewMemorySessionRepository(), credentials, guard, time.Hour, logger)
	profiles := service.NewTaxProfileService(repository.NewMemoryTaxProfileRepository(), credentials, tax.Default(), guard, logger)
	authService := service.NewAuthService(credentials, sessions)

	app := fiber.New()
	RegisterMiddlewares(app, MiddlewareConfig{
		Logger:       logger,
		Metrics:      metrics,
		Timeout:      5 * time.Second,
		AllowOrigins: "http://localhost:3000",
	})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("taxdesk", "test", &persistence.Postgres{}, &persistence.Redis{}, metrics, logger),
		Auth:           handlers.NewAuthHandler(authService),
		Tax:            handlers.NewTaxHandler(profiles),
		AuthMiddleware: auth.NewAuthMiddleware(authService.Sessions()),
	})
	return app
}

func call(t *testing.T, app *fiber.App, method, path, token, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func registerAlice(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, body := call(t, app, nethttp.MethodPost, "/api/auth/register", "", `{"email":"alice@x.com","password":"pw123"}`)
	require.Equal(t, nethttp.StatusCreated, status, body)
	token, ok := body["token"].(string)
	require.True(t, ok)
	return token
}

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApp(t)

	status, body := call(t, app, nethttp.MethodPost, "/api/auth/register", "", `{"email":"alice@x.com","password":"pw123"}`)
	require.Equal(t, nethttp.StatusCreated, status)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "alice@x.com", body["email"])
	assert.Equal(t, "free", body["subscriptionType"])
	assert.NotEmpty(t, body["expiresAt"])

	status, body = call(t, app, nethttp.MethodPost, "/api/auth/register", "", `{"email":"ALICE@x.com","password":"other"}`)
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "email already registered", body["message"])

	status, body = call(t, app, nethttp.MethodPost, "/api/auth/login", "", `{"email":"alice@x.com","password":"pw123"}`)
	require.Equal(t, nethttp.StatusOK, status)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "free", body["subscriptionType"])

	status, body = call(t, app, nethttp.MethodPost, "/api/auth/login", "", `{"email":"alice@x.com","password":"nope"}`)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.NotEmpty(t, body["message"])

	status, _ = call(t, app, nethttp.MethodPost, "/api/auth/login", "", `{"email":"ghost@x.com","password":"pw123"}`)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
}

func TestAuthBadInput(t *testing.T) {
	app := newTestApp(t)

	for _, body := range []string{
		`{"email":"alice@x.com"}`,
		`{"email":"not-an-email","password":"pw"}`,
		`{"email":`,
	} {
		status, resp := call(t, app, nethttp.MethodPost, "/api/auth/register", "", body)
		assert.Equal(t, nethttp.StatusBadRequest, status, body)
		assert.NotEmpty(t, resp["message"])
	}

	status, _ := call(t, app, nethttp.MethodPost, "/api/auth/login", "", `[]`)
	assert.Equal(t, nethttp.StatusBadRequest, status)
}

func TestTaxProfileScenario(t *testing.T) {
	app := newTestApp(t)
	token := registerAlice(t, app)

	status, body := call(t, app, nethttp.MethodGet, "/api/tax/profile", token, "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, map[string]any{"income": 0.0, "deductions": 0.0, "taxCalculated": 0.0}, body)

	status, body = call(t, app, nethttp.MethodPost, "/api/tax/profile", token, `{"income":50000,"deductions":5000}`)
	require.Equal(t, nethttp.StatusOK, status, body)
	want := map[string]any{"income": 50000.0, "deductions": 5000.0, "taxCalculated": 8500.0}
	assert.Equal(t, want, body)

	status, body = call(t, app, nethttp.MethodGet, "/api/tax/profile", token, "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, want, body)

	status, body = call(t, app, nethttp.MethodPost, "/api/tax/profile", token, `{"income":"1200.50","deductions":"0"}`)
	require.Equal(t, nethttp.StatusOK, status, body)
	assert.Equal(t, 1200.5, body["income"])
	assert.Equal(t, 120.05, body["taxCalculated"])
}

func TestTaxProfileRejectsBadNumbers(t *testing.T) {
	app := newTestApp(t)
	token := registerAlice(t, app)

	for _, payload := range []string{
		`{"income":-10,"deductions":0}`,
		`{"income":10,"deductions":-0.01}`,
		`{"income":"abc","deductions":0}`,
		`{"income":true,"deductions":0}`,
		`{"income":10}`,
		`{}`,
	} {
		status, body := call(t, app, nethttp.MethodPost, "/api/tax/profile", token, payload)
		assert.Equal(t, nethttp.StatusBadRequest, status, payload)
		assert.NotEmpty(t, body["message"], payload)
	}

	status, body := call(t, app, nethttp.MethodGet, "/api/tax/profile", token, "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, 0.0, body["income"], "rejected writes leave no profile behind")
}

func TestTaxProfileRequiresToken(t *testing.T) {
	app := newTestApp(t)

	status, body := call(t, app, nethttp.MethodGet, "/api/tax/profile", "", "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.NotEmpty(t, body["message"])

	status, _ = call(t, app, nethttp.MethodPost, "/api/tax/profile", "made-up", `{"income":1,"deductions":0}`)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
}

func TestLogoutRevokesToken(t *testing.T) {
	app := newTestApp(t)
	token := registerAlice(t, app)

	status, body := call(t, app, nethttp.MethodGet, "/api/auth/me", token, "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "alice@x.com", body["email"])
	assert.Equal(t, "free", body["subscriptionType"])

	status, _ = call(t, app, nethttp.MethodPost, "/api/auth/logout", token, "")
	assert.Equal(t, nethttp.StatusNoContent, status)

	status, _ = call(t, app, nethttp.MethodGet, "/api/tax/profile", token, "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	status, _ = call(t, app, nethttp.MethodPost, "/api/auth/logout", token, "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
}

func TestConcurrentProfileWrites(t *testing.T) {
	app := newTestApp(t)
	token := registerAlice(t, app)

	const writers = 12
	var wg sync.WaitGroup
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(nethttp.MethodPost, "/api/tax/profile",
				bytes.NewBufferString(fmt.Sprintf(`{"income":%d,"deductions":%d}`, i*10000, i)))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := app.Test(req, -1)
			if assert.NoError(t, err) {
				assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
				resp.Body.Close()
			}
		}(i)
	}
	wg.Wait()

	status, body := call(t, app, nethttp.MethodGet, "/api/tax/profile", token, "")
	require.Equal(t, nethttp.StatusOK, status)

	income := body["income"].(float64)
	deductions := body["deductions"].(float64)
	assert.Equal(t, income/10000, deductions, "income and deductions come from one write")

	owed, err := tax.Default().Compute(income, deductions, "free")
	require.NoError(t, err)
	assert.Equal(t, owed, body["taxCalculated"])
}

func TestHealthAndFallbacks(t *testing.T) {
	app := newTestApp(t)

	status, body := call(t, app, nethttp.MethodGet, "/health/live", "", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = call(t, app, nethttp.MethodGet, "/health/ready", "", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, map[string]any{"postgres": "memory", "redis": "memory"}, body["dependencies"])

	status, body = call(t, app, nethttp.MethodGet, "/api/nope", "", "")
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.NotEmpty(t, body["message"])

	status, body = call(t, app, nethttp.MethodGet, "/metrics", "", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.NotEmpty(t, body["requests"])
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(nethttp.MethodOptions, "/api/tax/profile", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", nethttp.MethodPost)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, nethttp.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
