package repository

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/realtime-trading-api/realtime-trading/pkg/models"
)

func openTestStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAccount_Roundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateAccount(ctx, "alice", "hash", 1000000)
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if created.ID == 0 {
		t.Error("Expected a persisted ID")
	}

	loaded, err := s.AccountByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("AccountByUsername failed: %v", err)
	}
	if loaded.Balance != 1000000 || loaded.PasswordHash != "hash" {
		t.Errorf("Unexpected account state: %+v", loaded)
	}
}

func TestCreateAccount_Duplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateAccount(ctx, "alice", "hash", 1000000); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if _, err := s.CreateAccount(ctx, "alice", "other", 1000000); !errors.Is(err, ErrDuplicateIdentity) {
		t.Errorf("Expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestOpen_TranslatesUniqueViolation(t *testing.T) {
	// The pre-lookup in CreateAccount normally catches duplicates; under
	// concurrent registration the unique index is the backstop, which only
	// maps to the domain error if the driver error is translated.
	s := openTestStore(t)

	if err := s.db.Create(&models.Account{Username: "alice", PasswordHash: "h", Balance: 1}).Error; err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	err := s.db.Create(&models.Account{Username: "alice", PasswordHash: "h", Balance: 1}).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("Expected gorm.ErrDuplicatedKey, got %v", err)
	}
}

func TestExecTx_RollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateAccount(ctx, "alice", "hash", 1000); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	sentinel := errors.New("abort")
	err := s.ExecTx(ctx, func(tx Store) error {
		account, err := tx.AccountByUsername(ctx, "alice")
		if err != nil {
			return err
		}
		account.Balance = 0
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Expected the sentinel error, got %v", err)
	}

	account, err := s.AccountByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("AccountByUsername failed: %v", err)
	}
	if account.Balance != 1000 {
		t.Errorf("Rolled-back write leaked, balance is %f", account.Balance)
	}
}
