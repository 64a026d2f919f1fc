package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/copilotx/copilotx/internal/auth"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newGatedRouter(requiredKey string, validator *auth.APIKeyManager) *gin.Engine {
	engine := gin.New()
	engine.Use(NewAPIKeyAuth(requiredKey, validator).Middleware())
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	engine.GET("/", ok)
	engine.GET("/health", ok)
	engine.POST("/v1/chat/completions", ok)
	engine.POST("/v1/messages", ok)
	return engine
}

// gateRequest issues a request from a non-loopback address unless remoteAddr
// overrides it.
func gateRequest(router *gin.Engine, method, path, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestLoopbackBypassesGate(t *testing.T) {
	router := newGatedRouter("secret-key", nil)

	for _, addr := range []string{"127.0.0.1:54321", "[::1]:54321"} {
		w := gateRequest(router, http.MethodPost, "/v1/chat/completions", addr, nil)
		assert.Equal(t, http.StatusOK, w.Code, "addr %s", addr)
	}
}

func TestPublicPathsBypassGate(t *testing.T) {
	router := newGatedRouter("secret-key", nil)

	for _, path := range []string{"/", "/health"} {
		w := gateRequest(router, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, "path %s", path)
	}
}

func TestMissingKeyRejected(t *testing.T) {
	router := newGatedRouter("secret-key", nil)

	w := gateRequest(router, http.MethodPost, "/v1/chat/completions", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	body := gjson.Parse(w.Body.String())
	assert.Equal(t, "authentication_error", body.Get("error.type").String())
	assert.Equal(t, "API key required", body.Get("error.message").String())
}

func TestWrongKeyRejected(t *testing.T) {
	router := newGatedRouter("secret-key", nil)

	w := gateRequest(router, http.MethodPost, "/v1/chat/completions", "",
		map[string]string{"Authorization": "Bearer not-the-key"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid API key",
		gjson.Get(w.Body.String(), "error.message").String())
}

func TestAcceptsAllHeaderForms(t *testing.T) {
	router := newGatedRouter("secret-key", nil)

	cases := []struct {
		name    string
		headers map[string]string
	}{
		{"authorization bearer", map[string]string{"Authorization": "Bearer secret-key"}},
		{"authorization raw", map[string]string{"Authorization": "secret-key"}},
		{"x-api-key", map[string]string{"X-Api-Key": "secret-key"}},
		{"api-key", map[string]string{"Api-Key": "secret-key"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := gateRequest(router, http.MethodPost, "/v1/chat/completions", "", tc.headers)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestMessagesPathUsesAnthropicEnvelope(t *testing.T) {
	router := newGatedRouter("secret-key", nil)

	w := gateRequest(router, http.MethodPost, "/v1/messages", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	body := gjson.Parse(w.Body.String())
	assert.Equal(t, "error", body.Get("type").String())
	assert.Equal(t, "authentication_error", body.Get("error.type").String())
	assert.Equal(t, "API key required", body.Get("error.message").String())
}

func TestAcceptsLocallyIssuedKey(t *testing.T) {
	validator := auth.NewAPIKeyManager("gate-test-secret")
	router := newGatedRouter("", validator)

	key, err := validator.GenerateAPIKey("client-1")
	require.NoError(t, err)

	w := gateRequest(router, http.MethodPost, "/v1/chat/completions", "",
		map[string]string{"X-Api-Key": key})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRejectsForeignSignedKey(t *testing.T) {
	validator := auth.NewAPIKeyManager("gate-test-secret")
	router := newGatedRouter("", validator)

	foreign, err := auth.NewAPIKeyManager("another-secret").GenerateAPIKey("client-2")
	require.NoError(t, err)

	w := gateRequest(router, http.MethodPost, "/v1/chat/completions", "",
		map[string]string{"X-Api-Key": foreign})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
