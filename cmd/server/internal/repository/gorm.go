package repository

import (
	"context"
	"errors"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/realtime-trading-api/realtime-trading/pkg/models"
)

// Compile-time check to ensure GormStore implements Store
var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

// Open connects to the sqlite database at dsn and migrates the schema.
func Open(dsn string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Surfaces driver constraint violations as gorm.ErrDuplicatedKey so
		// the unique index on username maps to ErrDuplicateIdentity.
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.Account{}, &models.Position{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) AccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).
		Where("username = ?", username).
		First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (s *GormStore) CreateAccount(ctx context.Context, username, passwordHash string, balance float64) (*models.Account, error) {
	// Explicit lookup first for a clean domain error; the unique index on
	// username is the backstop under concurrent registration.
	if _, err := s.AccountByUsername(ctx, username); err == nil {
		return nil, ErrDuplicateIdentity
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	account := &models.Account{
		Username:     username,
		PasswordHash: passwordHash,
		Balance:      balance,
	}
	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}
	return account, nil
}

func (s *GormStore) SaveAccount(ctx context.Context, account *models.Account) error {
	return s.db.WithContext(ctx).Save(account).Error
}

func (s *GormStore) PositionByUsername(ctx context.Context, username, symbol string) (*models.Position, error) {
	var position models.Position
	if err := s.db.WithContext(ctx).
		Where("username = ? AND symbol = ?", username, symbol).
		First(&position).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

func (s *GormStore) SavePosition(ctx context.Context, position *models.Position) error {
	return s.db.WithContext(ctx).Save(position).Error
}

func (s *GormStore) DeletePosition(ctx context.Context, position *models.Position) error {
	return s.db.WithContext(ctx).Delete(position).Error
}

func (s *GormStore) ExecTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
