package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testLog() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestUserRepo_CreateAndGet(t *testing.T) {
	repo := NewUserRepo(testDB(t), testLog())

	u := User{Username: "alice", PasswordHash: "$2a$10$hash"}
	require.NoError(t, repo.Create(&u))
	assert.NotEmpty(t, u.ID)
	assert.WithinDuration(t, time.Now(), u.CreatedAt, time.Second)

	byName, err := repo.GetByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)
	assert.Equal(t, "$2a$10$hash", byName.PasswordHash)

	byID, err := repo.GetByID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
}

func TestUserRepo_DuplicateUsername(t *testing.T) {
	repo := NewUserRepo(testDB(t), testLog())

	require.NoError(t, repo.Create(&User{Username: "bob", PasswordHash: "h1"}))
	err := repo.Create(&User{Username: "bob", PasswordHash: "h2"})
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestUserRepo_NotFound(t *testing.T) {
	repo := NewUserRepo(testDB(t), testLog())

	_, err := repo.GetByUsername("ghost")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByID("missing-id")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestETFRepo_CRUD(t *testing.T) {
	db := testDB(t)
	users := NewUserRepo(db, testLog())
	etfs := NewETFRepo(db, testLog())

	owner := User{Username: "carol", PasswordHash: "h"}
	require.NoError(t, users.Create(&owner))

	e := ETF{Name: "Nifty BeES", Symbol: "NIFTYBEES", UserID: owner.ID}
	require.NoError(t, etfs.Create(&e))
	assert.NotEmpty(t, e.ID)

	got, err := etfs.GetByID(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "NIFTYBEES", got.Symbol)
	assert.Equal(t, owner.ID, got.UserID)

	got.Name = "Nippon Nifty BeES"
	got.Symbol = "NIFTYBEES"
	require.NoError(t, etfs.Update(got))

	updated, err := etfs.GetByID(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nippon Nifty BeES", updated.Name)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	require.NoError(t, etfs.Delete(e.ID))
	_, err = etfs.GetByID(e.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestETFRepo_ListByUser(t *testing.T) {
	db := testDB(t)
	users := NewUserRepo(db, testLog())
	etfs := NewETFRepo(db, testLog())

	alice := User{Username: "alice", PasswordHash: "h"}
	bob := User{Username: "bob", PasswordHash: "h"}
	require.NoError(t, users.Create(&alice))
	require.NoError(t, users.Create(&bob))

	require.NoError(t, etfs.Create(&ETF{Name: "Gold BeES", Symbol: "GOLDBEES", UserID: alice.ID}))
	require.NoError(t, etfs.Create(&ETF{Name: "Nifty BeES", Symbol: "NIFTYBEES", UserID: alice.ID}))
	require.NoError(t, etfs.Create(&ETF{Name: "Junior BeES", Symbol: "JUNIORBEES", UserID: bob.ID}))

	list, err := etfs.ListByUser(alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "GOLDBEES", list[0].Symbol)
	assert.Equal(t, "NIFTYBEES", list[1].Symbol)

	empty, err := etfs.ListByUser("nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestETFRepo_UpdateDeleteMissing(t *testing.T) {
	etfs := NewETFRepo(testDB(t), testLog())

	err := etfs.Update(&ETF{ID: "missing", Name: "x", Symbol: "X"})
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, etfs.Delete("missing"), ErrNotFound)
}
