package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"anoa.com/lazylegends/internal/bootstrap"
	"anoa.com/lazylegends/internal/config"
	"anoa.com/lazylegends/internal/testutil"
	"anoa.com/lazylegends/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Port:           "0",
		AllowedOrigins: "http://localhost:3000",
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret",
			TokenTTL:         time.Hour,
			AdminPassword:    "letmein",
			AdminMaxAttempts: 3,
			AdminLockout:     time.Minute,
		},
		Game: config.GameConfig{
			TrackedHashtag:    "#LazyLegends",
			PointsPerPost:     1,
			WalletBonusPoints: 5,
			MinPasswordLength: 8,
			RewardAmounts:     []int64{100, 50, 25},
		},
		Poller: config.PollerConfig{Schedule: "@every 30m", PageSize: 10},
		Upload: config.UploadConfig{MaxBytes: 1 << 20, Dir: t.TempDir(), PublicPath: "/uploads"},
		Social: config.SocialConfig{BaseURL: "http://127.0.0.1:0"},
	}
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validator.RegisterCustomValidations())

	db := testutil.NewDB(t)
	require.NoError(t, bootstrap.SeedDefaults(db, time.Now()))

	srv, err := NewServer(testConfig(t), db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { srv.cancel() })
	return srv.Handler()
}

func do(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRegisterAuthenticateAndMe(t *testing.T) {
	h := newTestServer(t)

	w := do(h, http.MethodPost, "/api/register", `{"handle":"@Amy","password":"password123","wallet":"0.0.42"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(h, http.MethodPost, "/api/authenticate", `{"handle":"@amy","password":"password123"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var auth struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &auth))
	require.NotEmpty(t, auth.AccessToken)

	w = do(h, http.MethodGet, "/api/me", "", map[string]string{"Authorization": "Bearer " + auth.AccessToken})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"handle":"@amy","wallet":"0.0.42","points":5}`, w.Body.String())

	w = do(h, http.MethodGet, "/api/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"handle":"@amy"`)

	w = do(h, http.MethodPost, "/api/end-session", "", map[string]string{"Authorization": "Bearer " + auth.AccessToken})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(h, http.MethodGet, "/api/me", "", map[string]string{"Authorization": "Bearer " + auth.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRequireSecret(t *testing.T) {
	h := newTestServer(t)

	w := do(h, http.MethodPut, "/api/admin/announcement", `{"text":"hello"}`, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(h, http.MethodPut, "/api/admin/announcement", `{"text":"<b>Season 2</b> is live"}`, map[string]string{"X-Admin-Password": "letmein"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(h, http.MethodGet, "/api/announcement", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Season 2 is live")
}

func TestClaimRequiresSession(t *testing.T) {
	h := newTestServer(t)

	w := do(h, http.MethodPost, "/api/claim-reward", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func login(t *testing.T, h http.Handler, handle string) string {
	t.Helper()
	w := do(h, http.MethodPost, "/api/register", `{"handle":"`+handle+`","password":"password123"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(h, http.MethodPost, "/api/authenticate", `{"handle":"`+handle+`","password":"password123"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var auth struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &auth))
	return auth.AccessToken
}

func TestLeaderboardFlagsCaller(t *testing.T) {
	h := newTestServer(t)
	token := login(t, h, "@amy")
	login(t, h, "@bob")

	w := do(h, http.MethodGet, "/api/leaderboard", "", map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, w.Code)
	var rows []struct {
		Handle        string `json:"handle"`
		IsCurrentUser bool   `json:"isCurrentUser"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, row.Handle == "@amy", row.IsCurrentUser, row.Handle)
	}

	// A bad token is ignored rather than rejected.
	w = do(h, http.MethodGet, "/api/leaderboard", "", map[string]string{"Authorization": "Bearer nope"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "isCurrentUser")
}

func TestAdminDeleteEndsSessions(t *testing.T) {
	h := newTestServer(t)
	token := login(t, h, "@amy")
	bearer := map[string]string{"Authorization": "Bearer " + token}

	w := do(h, http.MethodGet, "/api/me", "", bearer)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(h, http.MethodDelete, "/api/admin/users/@amy", "", map[string]string{"X-Admin-Password": "letmein"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(h, http.MethodGet, "/api/me", "", bearer)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(h, http.MethodPut, "/api/me/wallet", `{"wallet":"0.0.42"}`, bearer)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMintWithoutLedgerIsUnavailable(t *testing.T) {
	h := newTestServer(t)
	admin := map[string]string{"X-Admin-Password": "letmein"}

	w := do(h, http.MethodPost, "/api/admin/mint", `{"tokenId":"0.0.9001","itemId":"1"}`, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(h, http.MethodPost, "/api/admin/mint", `{"tokenId":"0.0.9001","itemId":"1"}`, admin)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthListsJobs(t *testing.T) {
	h := newTestServer(t)

	w := do(h, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","jobs":[]}`, w.Body.String())
}
