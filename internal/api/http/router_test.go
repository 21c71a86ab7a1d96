package http_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/geofleet/geofleet/internal/api/domain"
	apihttp "github.com/geofleet/geofleet/internal/api/http"
	"github.com/geofleet/geofleet/internal/api/service"
	"github.com/geofleet/geofleet/internal/api/store"
	"github.com/geofleet/geofleet/internal/api/store/drivers/sqlite"
	"github.com/geofleet/geofleet/pkg/signx"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store  store.Store
	login  *service.LoginService
	tokens *signx.TokenManager
	router *apihttp.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore("file:" + filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	keys := signx.NewKeyManager(&store.KeystoreAdapter{Keystore: st.Keystore()})
	tokens := signx.NewTokenManager(keys)

	login := &service.LoginService{Store: st, Tokens: tokens}
	users := &service.UserService{Store: st}
	audit := service.NewAuditService(st, logger)

	router := apihttp.NewRouter(st, "test", logger)
	router.Sessions = &apihttp.SessionHandler{
		Login:  login,
		Users:  users,
		Tokens: tokens,
		Store:  st,
		Audit:  audit,
	}
	router.Users = &apihttp.UserHandler{Users: users}
	router.Authenticator = &apihttp.Authenticator{Login: login}
	router.ApplyRoutes()

	return &testEnv{store: st, login: login, tokens: tokens, router: router}
}

func (e *testEnv) createUser(t *testing.T, user domain.User, password string) domain.User {
	t.Helper()

	if password != "" {
		require.NoError(t, user.SetPassword(password))
	}
	id, err := e.store.Users().CreateUser(context.Background(), user)
	require.NoError(t, err)
	user.ID = id
	return user
}

func (e *testEnv) loginForm(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()

	form := url.Values{"email": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rec.Result().Cookies() {
		if c.Name == apihttp.SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func TestSessionLoginAndFetch(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, domain.User{Name: "Alice", Email: "alice@example.com"}, "hunter2")

	rec := env.loginForm(t, "alice@example.com", "hunter2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, user.ID, body.ID)
	require.Equal(t, "alice@example.com", body.Email)

	// Credential material never leaks into the response.
	require.NotContains(t, rec.Body.String(), "password")
	require.NotContains(t, rec.Body.String(), "salt")

	cookie := sessionCookie(t, rec)
	require.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionLoginRejected(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, domain.User{Email: "alice@example.com"}, "hunter2")

	rec := env.loginForm(t, "alice@example.com", "wrong")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.loginForm(t, "nobody@example.com", "hunter2")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionLogout(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, domain.User{Email: "alice@example.com"}, "hunter2")

	cookie := sessionCookie(t, env.loginForm(t, "alice@example.com", "hunter2"))

	req := httptest.NewRequest(http.MethodDelete, "/api/session", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The invalidated session no longer authenticates.
	req = httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthorizationHeader(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, domain.User{Email: "alice@example.com"}, "hunter2")

	t.Run("Basic", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
		req.SetBasicAuth("alice@example.com", "hunter2")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Bearer", func(t *testing.T) {
		token, err := env.tokens.Generate(context.Background(), user.ID, time.Time{})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("BadBasic", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
		req.SetBasicAuth("alice@example.com", "wrong")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("UnsupportedScheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
		req.Header.Set("Authorization", "Digest abc")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUnauthorizedChallenge(t *testing.T) {
	env := newTestEnv(t)

	// Browser-like clients get the Basic challenge.
	req := httptest.NewRequest(http.MethodPost, "/api/session/token", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, `Basic realm="api"`, rec.Header().Get("WWW-Authenticate"))

	// API clients do not.
	req = httptest.NewRequest(http.MethodPost, "/api/session/token", nil)
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestSecondFactorChallenge(t *testing.T) {
	env := newTestEnv(t)

	user := domain.User{Email: "bob@example.com", TOTPKey: "JBSWY3DPEHPK3PXP"}
	env.createUser(t, user, "hunter2")

	rec := env.loginForm(t, "bob@example.com", "hunter2")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOTP", rec.Header().Get("WWW-Authenticate"))
}

func TestTokenIssuance(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, domain.User{Email: "alice@example.com"}, "hunter2")

	cookie := sessionCookie(t, env.loginForm(t, "alice@example.com", "hunter2"))

	req := httptest.NewRequest(http.MethodPost, "/api/session/token", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Token      string    `json:"token"`
		Expiration time.Time `json:"expiration"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)

	// The issued token never outlives the session.
	session, err := env.store.Sessions().GetSession(context.Background(), cookie.Value)
	require.NoError(t, err)
	require.False(t, body.Expiration.After(*session.Expiration))

	data, err := env.tokens.Parse(context.Background(), body.Token)
	require.NoError(t, err)
	require.Equal(t, user.ID, data.UserID)
}

func TestTokenIssuanceClampsRequestedExpiration(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, domain.User{Email: "alice@example.com"}, "hunter2")

	cookie := sessionCookie(t, env.loginForm(t, "alice@example.com", "hunter2"))

	far, err := json.Marshal(map[string]any{
		"expiration": time.Now().Add(365 * 24 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/session/token", strings.NewReader(string(far)))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Expiration time.Time `json:"expiration"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	session, err := env.store.Sessions().GetSession(context.Background(), cookie.Value)
	require.NoError(t, err)
	require.False(t, body.Expiration.After(*session.Expiration))
}

func TestServiceAccountToken(t *testing.T) {
	env := newTestEnv(t)
	env.login.ServiceAccountToken = "svc-token"

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer svc-token")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ID            int64 `json:"id"`
		Administrator bool  `json:"administrator"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, domain.ServiceAccountID, body.ID)
	require.True(t, body.Administrator)
}

func TestUserAdministration(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, domain.User{Email: "admin@example.com", Administrator: true}, "admin-pass")
	regular := env.createUser(t, domain.User{Email: "user@example.com"}, "user-pass")

	basic := func(email, password string) string {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+password))
	}

	t.Run("AdminCreatesUser", func(t *testing.T) {
		payload := `{"name":"Carol","email":"carol@example.com","password":"carol-pass"}`
		req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(payload))
		req.Header.Set("Authorization", basic(admin.Email, "admin-pass"))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		login := env.loginForm(t, "carol@example.com", "carol-pass")
		require.Equal(t, http.StatusOK, login.Code)
	})

	t.Run("NonAdminForbidden", func(t *testing.T) {
		payload := `{"email":"mallory@example.com","password":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(payload))
		req.Header.Set("Authorization", basic(regular.Email, "user-pass"))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("MissingPassword", func(t *testing.T) {
		payload := `{"email":"nopass@example.com"}`
		req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(payload))
		req.Header.Set("Authorization", basic(admin.Email, "admin-pass"))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		payload := `{"email":"user@example.com","password":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(payload))
		req.Header.Set("Authorization", basic(admin.Email, "admin-pass"))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("SelfPasswordChange", func(t *testing.T) {
		payload := `{"password":"new-pass"}`
		target := "/api/users/" + itoa(regular.ID) + "/password"
		req := httptest.NewRequest(http.MethodPut, target, strings.NewReader(payload))
		req.Header.Set("Authorization", basic(regular.Email, "user-pass"))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)

		login := env.loginForm(t, "user@example.com", "new-pass")
		require.Equal(t, http.StatusOK, login.Code)
	})

	t.Run("OtherUserPasswordForbidden", func(t *testing.T) {
		payload := `{"password":"stolen"}`
		target := "/api/users/" + itoa(admin.ID) + "/password"
		req := httptest.NewRequest(http.MethodPut, target, strings.NewReader(payload))
		req.Header.Set("Authorization", basic(regular.Email, "new-pass"))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestDisabledAccountSession(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, domain.User{Email: "alice@example.com"}, "hunter2")

	cookie := sessionCookie(t, env.loginForm(t, "alice@example.com", "hunter2"))

	// Disabling the account invalidates existing sessions on next use.
	require.NoError(t, env.store.Users().SetUserDisabled(context.Background(), user.ID, true))

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionFromTokenParameter(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, domain.User{Email: "alice@example.com"}, "hunter2")

	token, err := env.tokens.Generate(context.Background(), user.ID, time.Time{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/session?token="+url.QueryEscape(token), nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// The call established a real session usable without the token.
	cookie := sessionCookie(t, rec)
	req = httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("BadToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/session?token=garbage", nil)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestProbesAreAnonymous(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/livez", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
