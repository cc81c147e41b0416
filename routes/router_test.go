package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tidewell/suggestbox/config"
	"github.com/tidewell/suggestbox/middleware"
	"github.com/tidewell/suggestbox/models"
)

func testConfig() config.AppConfig {
	return config.AppConfig{
		AppPort:            "8080",
		SessionSecret:      "router-test-secret",
		SessionTTLHours:    1,
		GinMode:            "test",
		RateLimitPerMinute: 10000,
		AllowedOrigins:     []string{"*"},
		AutoFlagEnabled:    true,
		AutoFlagThreshold:  3,
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Suggestion{}, &models.Comment{}, &models.Vote{}))
	return SetupRouter(testConfig(), db, nil), db
}

func postForm(r *gin.Engine, path string, form url.Values, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != "" {
		req.Header.Set("Cookie", middleware.SessionCookieName+"="+cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r *gin.Engine, path, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != "" {
		req.Header.Set("Cookie", middleware.SessionCookieName+"="+cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.Value != "" {
			return c.Value
		}
	}
	t.Fatal("no session cookie in response")
	return ""
}

func signupAndLogin(t *testing.T, r *gin.Engine, username string) string {
	t.Helper()
	w := postForm(r, "/signup", url.Values{"username": {username}, "password": {"correct-horse"}}, "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/login", w.Header().Get("Location"))

	w = postForm(r, "/login", url.Values{"username": {username}, "password": {"correct-horse"}}, "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))
	return sessionCookie(t, w)
}

func TestSignupLoginCreateFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	cookie := signupAndLogin(t, r, "alice")

	w := postForm(r, "/new-suggestion", url.Values{
		"title":       {"Better coffee"},
		"description": {"The machine on floor two is broken."},
	}, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = get(r, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Better coffee")
}

func TestAnonymousWriteRedirectsToLogin(t *testing.T) {
	r, _ := newTestRouter(t)

	w := postForm(r, "/new-suggestion", url.Values{"title": {"x"}, "description": {"y"}}, "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = postForm(r, "/new-comment/1", url.Values{"content": {"hey"}}, "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = get(r, "/new-vote/1/up", "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r, _ := newTestRouter(t)
	signupAndLogin(t, r, "alice")

	w := postForm(r, "/login", url.Values{"username": {"alice"}, "password": {"wrong-password"}}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postForm(r, "/login", url.Values{"username": {"nobody"}, "password": {"wrong-password"}}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignupDuplicateUsername(t *testing.T) {
	r, _ := newTestRouter(t)
	signupAndLogin(t, r, "alice")

	w := postForm(r, "/signup", url.Values{"username": {"alice"}, "password": {"other-password"}}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogoutIsIdempotent(t *testing.T) {
	r, _ := newTestRouter(t)
	cookie := signupAndLogin(t, r, "alice")

	w := get(r, "/logout", cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	// Replaying the dead cookie, or logging out with none at all, still works.
	w = get(r, "/logout", cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)
	w = get(r, "/logout", "")
	require.Equal(t, http.StatusSeeOther, w.Code)

	// The session is gone: writes bounce back to /login.
	w = postForm(r, "/new-suggestion", url.Values{"title": {"x"}, "description": {"y"}}, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestSuggestionDetailAndComments(t *testing.T) {
	r, _ := newTestRouter(t)
	cookie := signupAndLogin(t, r, "alice")

	w := postForm(r, "/new-suggestion", url.Values{"title": {"Idea"}, "description": {"Details here."}}, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = postForm(r, "/new-comment/1", url.Values{"content": {"Sounds good"}}, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/suggestions/1", w.Header().Get("Location"))

	w = get(r, "/suggestions/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Idea")
	assert.Contains(t, w.Body.String(), "Sounds good")

	w = get(r, "/suggestions/999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = postForm(r, "/new-comment/999", url.Values{"content": {"lost"}}, cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVoteFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	cookie := signupAndLogin(t, r, "alice")

	w := postForm(r, "/new-suggestion", url.Values{"title": {"Idea"}, "description": {"Details."}}, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = get(r, "/new-vote/1/up", cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/suggestions/1", w.Header().Get("Location"))

	// Switching direction keeps a single vote.
	w = get(r, "/new-vote/1/down", cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = get(r, "/suggestions/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var payload struct {
		Data struct {
			Suggestion struct {
				Tally struct {
					Up   int64 `json:"up"`
					Down int64 `json:"down"`
				} `json:"tally"`
			} `json:"suggestion"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, int64(0), payload.Data.Suggestion.Tally.Up)
	assert.Equal(t, int64(1), payload.Data.Suggestion.Tally.Down)

	w = get(r, "/new-vote/1/sideways", cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(r, "/new-vote/999/up", cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAutoFlagHidesFromListing(t *testing.T) {
	r, _ := newTestRouter(t)
	author := signupAndLogin(t, r, "author")

	w := postForm(r, "/new-suggestion", url.Values{"title": {"Divisive"}, "description": {"Hmm."}}, author)
	require.Equal(t, http.StatusSeeOther, w.Code)

	for _, name := range []string{"curmudgeon1", "curmudgeon2", "curmudgeon3"} {
		cookie := signupAndLogin(t, r, name)
		w = get(r, "/new-vote/1/down", cookie)
		require.Equal(t, http.StatusSeeOther, w.Code)
	}

	w = get(r, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Divisive")

	// Direct link still works.
	w = get(r, "/suggestions/1", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIAuthAndCreate(t *testing.T) {
	r, _ := newTestRouter(t)

	body := `{"username":"apiuser","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var loginResp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loginResp))
	require.NotEmpty(t, loginResp.Data.Token)

	// Anonymous create gets a 401 envelope, not a redirect.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/suggestions", strings.NewReader(`{"title":"t","description":"d"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/suggestions", strings.NewReader(`{"title":"API idea","description":"via bearer token"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+loginResp.Data.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "API idea")
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)

	w := get(r, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}
