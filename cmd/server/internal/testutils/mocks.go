package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/repository"
	"github.com/realtime-trading-api/realtime-trading/pkg/models"
)

// MockStore is an in-memory Store with transactional rollback semantics.
type MockStore struct {
	Mu        sync.Mutex
	Accounts  map[string]*models.Account
	Positions map[string]*models.Position // keyed username/symbol
	nextID    uint
}

// Compile-time check to ensure MockStore implements Store
var _ repository.Store = (*MockStore)(nil)

func NewMockStore() *MockStore {
	return &MockStore{
		Accounts:  make(map[string]*models.Account),
		Positions: make(map[string]*models.Position),
	}
}

// SeedAccount inserts an account directly, bypassing registration.
func (m *MockStore) SeedAccount(username, passwordHash string, balance float64) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.nextID++
	m.Accounts[username] = &models.Account{
		ID:           m.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		Balance:      balance,
	}
}

// Account returns the stored account state for assertions.
func (m *MockStore) Account(username string) *models.Account {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if a, ok := m.Accounts[username]; ok {
		cp := *a
		return &cp
	}
	return nil
}

// Position returns the stored position state for assertions, nil if absent.
func (m *MockStore) Position(username, symbol string) *models.Position {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if p, ok := m.Positions[username+"/"+symbol]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (m *MockStore) AccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return (&mockTx{m}).AccountByUsername(ctx, username)
}

func (m *MockStore) CreateAccount(ctx context.Context, username, passwordHash string, balance float64) (*models.Account, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return (&mockTx{m}).CreateAccount(ctx, username, passwordHash, balance)
}

func (m *MockStore) SaveAccount(ctx context.Context, account *models.Account) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return (&mockTx{m}).SaveAccount(ctx, account)
}

func (m *MockStore) PositionByUsername(ctx context.Context, username, symbol string) (*models.Position, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return (&mockTx{m}).PositionByUsername(ctx, username, symbol)
}

func (m *MockStore) SavePosition(ctx context.Context, position *models.Position) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return (&mockTx{m}).SavePosition(ctx, position)
}

func (m *MockStore) DeletePosition(ctx context.Context, position *models.Position) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return (&mockTx{m}).DeletePosition(ctx, position)
}

// ExecTx holds the store lock for the duration of fn and restores the
// pre-transaction snapshot when fn fails.
func (m *MockStore) ExecTx(ctx context.Context, fn func(repository.Store) error) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	accounts := make(map[string]*models.Account, len(m.Accounts))
	for k, v := range m.Accounts {
		cp := *v
		accounts[k] = &cp
	}
	positions := make(map[string]*models.Position, len(m.Positions))
	for k, v := range m.Positions {
		cp := *v
		positions[k] = &cp
	}

	if err := fn(&mockTx{m}); err != nil {
		m.Accounts = accounts
		m.Positions = positions
		return err
	}
	return nil
}

func (m *MockStore) Close() error { return nil }

// mockTx performs the actual state access without locking; MockStore holds
// the lock for it.
type mockTx struct{ s *MockStore }

var _ repository.Store = (*mockTx)(nil)

func (t *mockTx) AccountByUsername(_ context.Context, username string) (*models.Account, error) {
	a, ok := t.s.Accounts[username]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (t *mockTx) CreateAccount(_ context.Context, username, passwordHash string, balance float64) (*models.Account, error) {
	if _, ok := t.s.Accounts[username]; ok {
		return nil, repository.ErrDuplicateIdentity
	}
	t.s.nextID++
	account := &models.Account{
		ID:           t.s.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		Balance:      balance,
	}
	t.s.Accounts[username] = account
	cp := *account
	return &cp, nil
}

func (t *mockTx) SaveAccount(_ context.Context, account *models.Account) error {
	cp := *account
	t.s.Accounts[account.Username] = &cp
	return nil
}

func (t *mockTx) PositionByUsername(_ context.Context, username, symbol string) (*models.Position, error) {
	p, ok := t.s.Positions[username+"/"+symbol]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (t *mockTx) SavePosition(_ context.Context, position *models.Position) error {
	if position.ID == 0 {
		t.s.nextID++
		position.ID = t.s.nextID
	}
	cp := *position
	t.s.Positions[position.Username+"/"+position.Symbol] = &cp
	return nil
}

func (t *mockTx) DeletePosition(_ context.Context, position *models.Position) error {
	delete(t.s.Positions, position.Username+"/"+position.Symbol)
	return nil
}

func (t *mockTx) ExecTx(_ context.Context, fn func(repository.Store) error) error {
	return fn(t)
}

func (t *mockTx) Close() error { return nil }

// MockObserver simulates a connected websocket client
type MockObserver struct {
	IDVal    string
	Payloads []string
	Closed   bool
	Mu       sync.Mutex
}

func NewMockObserver(id string) *MockObserver {
	return &MockObserver{IDVal: id}
}

func (m *MockObserver) ID() string { return m.IDVal }

func (m *MockObserver) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockObserver) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Payloads = append(m.Payloads, string(b))
}

func (m *MockObserver) Received() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	out := make([]string, len(m.Payloads))
	copy(out, m.Payloads)
	return out
}

func (m *MockObserver) IsClosed() bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Closed
}

type MockKafkaWriter struct {
	Messages   []kafka.Message
	Mu         sync.Mutex
	ShouldFail bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("kafka error")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error { return nil }

type MockClock struct {
	CurrentTime time.Time
}

func (m *MockClock) Now() time.Time        { return m.CurrentTime }
func (m *MockClock) Sleep(d time.Duration) { m.CurrentTime = m.CurrentTime.Add(d) }

// MockRand cycles through Vals; an empty list always yields zero.
type MockRand struct {
	Vals []int
	i    int
}

func (m *MockRand) Intn(n int) int {
	if len(m.Vals) == 0 {
		return 0
	}
	v := m.Vals[m.i%len(m.Vals)]
	m.i++
	if v >= n {
		v = n - 1
	}
	return v
}
