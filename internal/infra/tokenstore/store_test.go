package tokenstore_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/tokenstore"
)

func newStore(t *testing.T, secret string) (*tokenstore.SQLiteStore, *sql.DB) {
	t.Helper()
	db, err := tokenstore.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := tokenstore.New(db, secret)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s, db
}

func TestStore_SetGetDelete(t *testing.T) {
	s, _ := newStore(t, "secret")
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "ws-1", "auth_token"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := s.Set(ctx, "ws-1", "auth_token", "tok-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "ws-1", "auth_token", "tok-2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, ok, err := s.Get(ctx, "ws-1", "auth_token")
	if err != nil || !ok || got != "tok-2" {
		t.Fatalf("get = %q %v %v", got, ok, err)
	}

	if _, ok, _ := s.Get(ctx, "ws-2", "auth_token"); ok {
		t.Error("namespaces must not leak into each other")
	}

	if err := s.Delete(ctx, "ws-1", "auth_token"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "ws-1", "auth_token"); ok {
		t.Error("expected token to be gone")
	}
	if err := s.Delete(ctx, "ws-1", "auth_token"); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}
}

func TestStore_ValuesAreSealedAtRest(t *testing.T) {
	s, db := newStore(t, "secret")
	ctx := context.Background()

	if err := s.Set(ctx, "ws", "auth_token", "plain-token"); err != nil {
		t.Fatal(err)
	}

	var raw string
	if err := db.QueryRow(`SELECT value FROM auth_tokens`).Scan(&raw); err != nil {
		t.Fatal(err)
	}
	if raw == "plain-token" {
		t.Error("token stored in plaintext")
	}
}

func TestStore_WrongKeyCannotOpen(t *testing.T) {
	s, db := newStore(t, "old-key")
	ctx := context.Background()
	if err := s.Set(ctx, "ws", "auth_token", "tok"); err != nil {
		t.Fatal(err)
	}

	rotated, err := tokenstore.New(db, "new-key")
	if err != nil {
		t.Fatal(err)
	}
	_, ok, err := rotated.Get(ctx, "ws", "auth_token")
	if !errors.Is(err, tokenstore.ErrSealed) || ok {
		t.Errorf("expected ErrSealed, got ok=%v err=%v", ok, err)
	}
}

func TestStore_PurgeOlderThan(t *testing.T) {
	s, _ := newStore(t, "secret")
	ctx := context.Background()
	if err := s.Set(ctx, "ws", "auth_token", "tok"); err != nil {
		t.Fatal(err)
	}

	n, err := s.PurgeOlderThan(ctx, time.Now().Add(-time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("purge recent = %d, %v", n, err)
	}
	n, err = s.PurgeOlderThan(ctx, time.Now().Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("purge old = %d, %v", n, err)
	}
}

func TestStore_ReadErrorIsWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	s, err := tokenstore.New(db, "secret")
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("disk I/O error")
	mock.ExpectQuery("SELECT value FROM auth_tokens").
		WithArgs("ws", "auth_token").
		WillReturnError(boom)

	_, ok, err := s.Get(context.Background(), "ws", "auth_token")
	if !errors.Is(err, boom) || ok {
		t.Errorf("expected wrapped driver error, got ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStore_WriteErrorIsWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	s, err := tokenstore.New(db, "")
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectExec("INSERT INTO auth_tokens").
		WithArgs("ws", "auth_token", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("readonly database"))

	if err := s.Set(context.Background(), "ws", "auth_token", "tok"); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
