package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/fintrack/backend/src/config"
	"github.com/username/fintrack/backend/src/database"
	"github.com/username/fintrack/backend/src/logger"
	"github.com/username/fintrack/backend/src/security"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	config.Cfg = &config.AppConfig{
		JWTSecret:         strings.Repeat("k", 32),
		AccessTokenExpiry: time.Hour,
	}
	os.Exit(m.Run())
}

// setupAuthTest points the package-level database handle at a fresh in-memory
// store and hands back a handler wired with a real token service.
func setupAuthTest(t *testing.T) *AuthHandler {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`
	CREATE TABLE users (
	    id INTEGER PRIMARY KEY AUTOINCREMENT,
	    username TEXT NOT NULL,
	    email TEXT NOT NULL UNIQUE,
	    password TEXT NOT NULL,
	    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	require.NoError(t, err)

	previous := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = previous
		db.Close()
	})

	return NewAuthHandler(security.NewAuthService(config.Cfg.JWTSecret))
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestRegisterAndLoginRoundTrip(t *testing.T) {
	h := setupAuthTest(t)

	rec, env := doJSON(t, h.RegisterUserHandler, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "ana",
		"email":    "Ana@Example.com",
		"password": "correcthorse",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, env.Success)

	var registered struct {
		Token string `json:"token"`
		User  struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &registered))
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "ana@example.com", registered.User.Email)

	// The raw password must never be stored or echoed back.
	assert.NotContains(t, string(env.Data), "correcthorse")

	rec, env = doJSON(t, h.LoginUserHandler, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "ANA@example.com",
		"password": "correcthorse",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	h := setupAuthTest(t)

	body := map[string]string{"username": "ana", "email": "ana@example.com", "password": "correcthorse"}
	rec, _ := doJSON(t, h.RegisterUserHandler, http.MethodPost, "/api/auth/register", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := doJSON(t, h.RegisterUserHandler, http.MethodPost, "/api/auth/register", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestRegisterValidation(t *testing.T) {
	h := setupAuthTest(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"short password", map[string]string{"username": "ana", "email": "ana@example.com", "password": "short"}},
		{"bad email", map[string]string{"username": "ana", "email": "not-an-email", "password": "correcthorse"}},
		{"missing username", map[string]string{"email": "ana@example.com", "password": "correcthorse"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := doJSON(t, h.RegisterUserHandler, http.MethodPost, "/api/auth/register", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := setupAuthTest(t)

	rec, _ := doJSON(t, h.RegisterUserHandler, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "ana", "email": "ana@example.com", "password": "correcthorse",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = doJSON(t, h.LoginUserHandler, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ana@example.com", "password": "wrongpassword",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, h.LoginUserHandler, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "nobody@example.com", "password": "correcthorse",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	h := setupAuthTest(t)

	var seenUserID int64
	protected := h.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserIDFromContext(r.Context())
		require.True(t, ok)
		seenUserID = userID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := security.NewAuthService(config.Cfg.JWTSecret).GenerateToken(42, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), seenUserID)
}
