package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfwatch/internal/store"
)

func testLog() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(b))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var m map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestRegister(t *testing.T) {
	users := store.NewUserRepo(testDB(t), testLog())
	h := NewAuthHandler(users, testLog())

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "success",
			body:       map[string]string{"username": "alice", "password": "s3cret"},
			wantStatus: http.StatusCreated,
			wantMsg:    "Registration successful! Welcome aboard.",
		},
		{
			name:       "duplicate username",
			body:       map[string]string{"username": "alice", "password": "other"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "This username is already taken. Please choose a different one.",
		},
		{
			name:       "missing password",
			body:       map[string]string{"username": "bob"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Username and password are required",
		},
		{
			name:       "missing username",
			body:       map[string]string{"password": "pw"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Username and password are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, h.HandleRegister, "/api/auth/register", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantMsg, decodeMessage(t, w)["message"])
		})
	}

	// The stored hash must verify, and must not be the raw password.
	u, err := users.GetByUsername("alice")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", u.PasswordHash)
}

func TestLogin(t *testing.T) {
	users := store.NewUserRepo(testDB(t), testLog())
	h := NewAuthHandler(users, testLog())

	w := postJSON(t, h.HandleRegister, "/api/auth/register", map[string]string{
		"username": "alice", "password": "s3cret",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("success returns userId", func(t *testing.T) {
		w := postJSON(t, h.HandleLogin, "/api/auth/login", map[string]string{
			"username": "alice", "password": "s3cret",
		})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeMessage(t, w)
		assert.Equal(t, "Login successful", resp["message"])

		u, err := users.GetByUsername("alice")
		require.NoError(t, err)
		assert.Equal(t, u.ID, resp["userId"])
	})

	t.Run("unknown user", func(t *testing.T) {
		w := postJSON(t, h.HandleLogin, "/api/auth/login", map[string]string{
			"username": "ghost", "password": "s3cret",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Registration required: Please create an account first before proceeding.", decodeMessage(t, w)["message"])
	})

	t.Run("wrong password", func(t *testing.T) {
		w := postJSON(t, h.HandleLogin, "/api/auth/login", map[string]string{
			"username": "alice", "password": "nope",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Incorrect password. Please try again.", decodeMessage(t, w)["message"])
	})

	t.Run("missing fields", func(t *testing.T) {
		w := postJSON(t, h.HandleLogin, "/api/auth/login", map[string]string{"username": "alice"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
