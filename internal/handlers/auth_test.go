package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/devfolio/apiserver/internal/auth"
	"github.com/devfolio/apiserver/internal/services"
	"github.com/devfolio/apiserver/internal/store"
	"github.com/devfolio/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// memUserRepo backs the handler tests with the store's observable behavior.
type memUserRepo struct {
	byID map[string]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: make(map[string]types.User)}
}

func (m *memUserRepo) GetByID(ctx context.Context, id string) (types.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	for _, user := range m.byID {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	for _, existing := range m.byID {
		if strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.byID[user.ID] = user
	return user, nil
}

func newAuthTestRouter(t *testing.T) (*chi.Mux, *auth.Issuer) {
	t.Helper()

	issuer := auth.NewIssuer(testSecret, time.Hour)
	userService := services.NewUserService(newMemUserRepo())

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, issuer, false)
	})
	return router, issuer
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == sessionCookieName {
			return cookie
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRegisterLoginProfileLifecycle(t *testing.T) {
	router, _ := newAuthTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"name": "Ann", "email": "ann@x.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var registered types.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))
	assert.Equal(t, "Ann", registered.Name)
	assert.Equal(t, "ann@x.com", registered.Email)
	assert.NotEmpty(t, registered.ID)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"email": "ann@x.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.NotEmpty(t, cookie.Value)

	var logged types.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logged))
	assert.Equal(t, registered.ID, logged.ID)

	rec = doJSON(t, router, http.MethodGet, "/auth/profile", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var profile types.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, registered.ID, profile.ID)
	assert.Equal(t, "ann@x.com", profile.Email)
}

func TestRegisterDuplicateEmailAnyCasing(t *testing.T) {
	router, _ := newAuthTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"name": "Ann", "email": "ann@x.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"name": "Ann Again", "email": "ANN@X.COM", "password": "otherpass99",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, KindDuplicateEmail, decodeError(t, rec).Kind)
}

func TestRegisterValidation(t *testing.T) {
	router, _ := newAuthTestRouter(t)

	cases := []map[string]string{
		{"email": "ann@x.com", "password": "secret123"},            // missing name
		{"name": "Ann", "password": "secret123"},                   // missing email
		{"name": "Ann", "email": "ann@x.com"},                      // missing password
		{"name": "Ann", "email": "not-an-email", "password": "secret123"},
		{"name": "Ann", "email": "ann@x.com", "password": "short"}, // too short
	}
	for _, payload := range cases {
		rec := doJSON(t, router, http.MethodPost, "/auth/register", payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "payload %v", payload)
		assert.Equal(t, KindValidationError, decodeError(t, rec).Kind)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	router, _ := newAuthTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"name": "Ann", "email": "ann@x.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	wrongPassword := doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"email": "ann@x.com", "password": "wrong-password",
	})
	unknownEmail := doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"email": "nobody@x.com", "password": "secret123",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
	assert.Equal(t, KindInvalidCredentials, decodeError(t, wrongPassword).Kind)
}

func TestProfileWithoutSession(t *testing.T) {
	router, _ := newAuthTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/auth/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, KindUnauthenticated, decodeError(t, rec).Kind)
}

func TestProfileWithExpiredSession(t *testing.T) {
	router, _ := newAuthTestRouter(t)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u-1",
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/auth/profile", nil,
		&http.Cookie{Name: sessionCookieName, Value: expired})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, KindSessionExpired, decodeError(t, rec).Kind)
}

func TestProfileWithTamperedSession(t *testing.T) {
	router, issuer := newAuthTestRouter(t)

	token, err := issuer.Issue("u-1")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	payload[0] ^= 0x01
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	rec := doJSON(t, router, http.MethodGet, "/auth/profile", nil,
		&http.Cookie{Name: sessionCookieName, Value: tampered})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, KindUnauthenticated, decodeError(t, rec).Kind)
}

func TestLogoutClearsCookie(t *testing.T) {
	router, _ := newAuthTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cookie := sessionCookie(t, rec)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)

	// The cleared cookie no longer grants access.
	rec = doJSON(t, router, http.MethodGet, "/auth/profile", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// Logout is idempotent: repeating it without any session still succeeds.
func TestLogoutIdempotent(t *testing.T) {
	router, _ := newAuthTestRouter(t)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, router, http.MethodPost, "/auth/logout", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
