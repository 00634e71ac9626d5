// Package tokenstore keeps auth tokens durable across restarts. Values are
// sealed with NaCl secretbox before they reach SQLite.
package tokenstore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
	_ "modernc.org/sqlite"
)

const nonceSize = 24

// ErrSealed is returned when a stored value cannot be opened with the
// current key, e.g. after TOKEN_STORE_KEY was rotated.
var ErrSealed = errors.New("tokenstore: value cannot be decrypted with the current key")

const schema = `
CREATE TABLE IF NOT EXISTS auth_tokens (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (namespace, key)
)`

// SQLiteStore implements port.TokenStore.
type SQLiteStore struct {
	db  *sql.DB
	key [32]byte
	now func() time.Time
}

// Open opens the SQLite database at path. ":memory:" is accepted; the pool
// is pinned to one connection so every query sees the same database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open token db: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// New wraps db. The sealing key is derived from secret; an empty secret
// gets a random key, so tokens only live as long as the process.
func New(db *sql.DB, secret string) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, now: time.Now}
	if secret == "" {
		if _, err := rand.Read(s.key[:]); err != nil {
			return nil, fmt.Errorf("generate token key: %w", err)
		}
	} else {
		s.key = sha256.Sum256([]byte(secret))
	}
	return s, nil
}

// Migrate creates the table if needed.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate token db: %w", err)
	}
	return nil
}

// Get returns the value stored under namespace/key.
func (s *SQLiteStore) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	var sealed string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM auth_tokens WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read token: %w", err)
	}

	plain, err := s.open(sealed)
	if err != nil {
		return "", false, err
	}
	return plain, true, nil
}

// Set stores value under namespace/key, replacing any previous value.
func (s *SQLiteStore) Set(ctx context.Context, namespace, key, value string) error {
	sealed, err := s.seal(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO auth_tokens (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, sealed, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// Delete removes namespace/key. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, namespace, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM auth_tokens WHERE namespace = ? AND key = ?`,
		namespace, key,
	); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// PurgeOlderThan drops values not written since cutoff and returns how many
// were removed.
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge tokens: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) seal(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("token nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(box), nil
}

func (s *SQLiteStore) open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrSealed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrSealed
	}
	return string(plain), nil
}
