package repository

import (
	"context"
	"errors"

	"github.com/realtime-trading-api/realtime-trading/pkg/models"
)

var (
	// ErrDuplicateIdentity is returned when registering a username that already exists
	ErrDuplicateIdentity = errors.New("username already registered")
	// ErrAccountNotFound is returned when no account matches the given username
	ErrAccountNotFound = errors.New("account not found")
)

// Store is the persistence boundary for accounts and positions. PositionByUsername
// returns (nil, nil) when no row exists for the pair.
type Store interface {
	AccountByUsername(ctx context.Context, username string) (*models.Account, error)
	CreateAccount(ctx context.Context, username, passwordHash string, balance float64) (*models.Account, error)
	SaveAccount(ctx context.Context, account *models.Account) error

	PositionByUsername(ctx context.Context, username, symbol string) (*models.Position, error)
	SavePosition(ctx context.Context, position *models.Position) error
	DeletePosition(ctx context.Context, position *models.Position) error

	// ExecTx runs fn inside a single transaction scope. Every write issued
	// through the Store passed to fn commits atomically; any error rolls the
	// whole scope back.
	ExecTx(ctx context.Context, fn func(Store) error) error

	Close() error
}
