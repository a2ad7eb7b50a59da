package server

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"etfwatch/internal/store"
)

// AuthHandler handles registration and login.
type AuthHandler struct {
	users *store.UserRepo
	log   zerolog.Logger
}

func NewAuthHandler(users *store.UserRepo, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		users: users,
		log:   log.With().Str("handler", "auth").Logger(),
	}
}

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister handles POST /api/auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := decodeBody(r, &body); err != nil || body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	hash, err := hashPassword(body.Password)
	if err != nil {
		h.log.Error().Err(err).Msg("hash password")
		writeError(w, http.StatusInternalServerError, "Error registering user")
		return
	}

	user := store.User{Username: body.Username, PasswordHash: hash}
	err = h.users.Create(&user)
	if errors.Is(err, store.ErrUsernameTaken) {
		writeError(w, http.StatusBadRequest, "This username is already taken. Please choose a different one.")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("register user")
		writeError(w, http.StatusInternalServerError, "Error registering user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Registration successful! Welcome aboard.",
	})
}

// HandleLogin handles POST /api/auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := decodeBody(r, &body); err != nil || body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.users.GetByUsername(body.Username)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "Registration required: Please create an account first before proceeding.")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("login lookup")
		writeError(w, http.StatusInternalServerError, "Error logging in")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), truncateForBcrypt(body.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Incorrect password. Please try again.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Login successful",
		"userId":  user.ID,
	})
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncateForBcrypt(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// bcrypt has a 72-byte input limit; truncate to avoid errors.
func truncateForBcrypt(password string) []byte {
	pwd := []byte(password)
	if len(pwd) > 72 {
		pwd = pwd[:72]
	}
	return pwd
}
