package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ETF is one watch-list item. Symbol is the case-sensitive upstream
// identifier used for quote lookups and is stored as given.
type ETF struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ETFRepo handles watch-list rows.
type ETFRepo struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewETFRepo(db *DB, log zerolog.Logger) *ETFRepo {
	return &ETFRepo{
		db:  db.Conn(),
		log: log.With().Str("repo", "etfs").Logger(),
	}
}

// Create inserts a new watch-list item, assigning an ID when empty.
func (r *ETFRepo) Create(e *ETF) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO etfs (id, name, symbol, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Symbol, e.UserID,
		e.CreatedAt.Format(time.RFC3339), e.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("create etf: %w", err)
	}

	r.log.Info().Str("symbol", e.Symbol).Str("user_id", e.UserID).Msg("etf created")
	return nil
}

// GetByID returns the watch-list item with the given id.
func (r *ETFRepo) GetByID(id string) (*ETF, error) {
	row := r.db.QueryRow(
		`SELECT id, name, symbol, user_id, created_at, updated_at FROM etfs WHERE id = ?`,
		id,
	)
	e, err := scanETF(row)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListByUser returns all watch-list items owned by userID, oldest first.
func (r *ETFRepo) ListByUser(userID string) ([]ETF, error) {
	rows, err := r.db.Query(
		`SELECT id, name, symbol, user_id, created_at, updated_at FROM etfs WHERE user_id = ? ORDER BY rowid`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list etfs: %w", err)
	}
	defer rows.Close()

	out := make([]ETF, 0)
	for rows.Next() {
		var e ETF
		var createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.Name, &e.Symbol, &e.UserID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan etf: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Update rewrites name and symbol of an existing item.
func (r *ETFRepo) Update(e *ETF) error {
	e.UpdatedAt = time.Now().UTC()
	res, err := r.db.Exec(
		`UPDATE etfs SET name = ?, symbol = ?, updated_at = ? WHERE id = ?`,
		e.Name, e.Symbol, e.UpdatedAt.Format(time.RFC3339), e.ID,
	)
	if err != nil {
		return fmt.Errorf("update etf: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the watch-list item with the given id.
func (r *ETFRepo) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM etfs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete etf: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	r.log.Info().Str("id", id).Msg("etf deleted")
	return nil
}

func scanETF(row *sql.Row) (*ETF, error) {
	var e ETF
	var createdAt, updatedAt string
	err := row.Scan(&e.ID, &e.Name, &e.Symbol, &e.UserID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan etf: %w", err)
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &e, nil
}
