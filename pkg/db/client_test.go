package db

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/unipay-app/unipay-backend/pkg/config"
	pkgerrors "github.com/unipay-app/unipay-backend/pkg/errors"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestWithTx_ClassifiesLockContention(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return errors.New("ERROR: deadlock detected (SQLSTATE 40P01)")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeConcurrencyConflict) {
		t.Fatalf("expected CONCURRENCY_CONFLICT, got %v", err)
	}
	if !pkgerrors.IsRetryable(err) {
		t.Fatal("lock contention must be retryable")
	}

	typed := pkgerrors.New(pkgerrors.CodeInsufficientFunds, "balance too low")
	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		return typed
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("typed error must pass through unchanged, got %v", err)
	}

	plain := errors.New("boom")
	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		return plain
	})
	if !errors.Is(err, plain) {
		t.Fatalf("plain error must pass through unchanged, got %v", err)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestNewSelectsDriver(t *testing.T) {
	ctx := context.Background()

	client, err := New(ctx, config.DBConfig{
		DSN:    "file::memory:?cache=shared",
		Driver: config.DBDriverSQLite,
	}, nil)
	if err != nil {
		t.Fatalf("sqlite driver failed: %v", err)
	}
	if err := client.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if _, err := New(ctx, config.DBConfig{DSN: "dsn", Driver: "oracle"}, nil); err == nil {
		t.Fatal("expected unsupported driver to fail")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(errors.New(`duplicate key value violates unique constraint "uniq_scheduled_subscription"`), "") {
		t.Fatal("expected postgres duplicate key to match")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: transactions.id"), "") {
		t.Fatal("expected sqlite unique failure to match")
	}
	if !IsUniqueViolation(errors.New(`constraint "uniq_scheduled_subscription" violated`), "uniq_scheduled_subscription") {
		t.Fatal("expected named constraint to match")
	}
	// SQLite names the column, not the index; the generic pattern must still
	// match when a constraint name was asked for.
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: transactions.subscription_id"), "uniq_scheduled_subscription") {
		t.Fatal("expected sqlite column-form violation to match named lookup")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error should not match")
	}
}

func TestIsLockTimeout(t *testing.T) {
	if !IsLockTimeout(errors.New("ERROR: deadlock detected (SQLSTATE 40P01)")) {
		t.Fatal("expected deadlock to match")
	}
	if IsLockTimeout(errors.New("some other failure")) {
		t.Fatal("unrelated error should not match")
	}
}
