package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// User is a registered account. PasswordHash is a bcrypt hash, never the
// raw password.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserRepo handles user rows.
type UserRepo struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewUserRepo(db *DB, log zerolog.Logger) *UserRepo {
	return &UserRepo{
		db:  db.Conn(),
		log: log.With().Str("repo", "users").Logger(),
	}
}

// Create inserts a new user. The caller supplies the password hash; an
// empty ID is assigned. Duplicate usernames map to ErrUsernameTaken.
func (r *UserRepo) Create(u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrUsernameTaken
		}
		return fmt.Errorf("create user: %w", err)
	}

	r.log.Info().Str("username", u.Username).Msg("user created")
	return nil
}

// GetByUsername returns the user with the given username.
func (r *UserRepo) GetByUsername(username string) (*User, error) {
	row := r.db.QueryRow(
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`,
		username,
	)
	return scanUser(row)
}

// GetByID returns the user with the given id.
func (r *UserRepo) GetByID(id string) (*User, error) {
	row := r.db.QueryRow(
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var createdAt string
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}
