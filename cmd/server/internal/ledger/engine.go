package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/repository"
	"github.com/realtime-trading-api/realtime-trading/pkg/models"
)

// Engine settles buy/sell orders against an account's cash balance and
// position, atomically. Orders for the same account are serialized by a
// per-account mutex; orders for different accounts proceed in parallel.
type Engine struct {
	store   repository.Store
	hub     Broadcaster
	journal Journal
	logger  *zap.Logger
	symbol  string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(store repository.Store, hub Broadcaster, journal Journal, logger *zap.Logger, symbol string) *Engine {
	return &Engine{
		store:   store,
		hub:     hub,
		journal: journal,
		logger:  logger,
		symbol:  symbol,
		locks:   make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing settlements for one account.
// Locks are never reclaimed; the account set is small and long-lived.
func (e *Engine) lockFor(username string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locks[username]
	if !ok {
		l = &sync.Mutex{}
		e.locks[username] = l
	}
	return l
}

// Holdings reports the account's cash and position valued at currentPrice.
// Pure read; an absent position reads as quantity 0 with avg cost 0. Both
// rows are read in one transaction scope so a settlement committing between
// them cannot yield pre-trade cash paired with a post-trade position.
func (e *Engine) Holdings(ctx context.Context, username string, currentPrice float64) (Holdings, error) {
	var account *models.Account
	var position *models.Position

	err := e.store.ExecTx(ctx, func(s repository.Store) error {
		var err error
		account, err = s.AccountByUsername(ctx, username)
		if err != nil {
			return err
		}
		position, err = s.PositionByUsername(ctx, username, e.symbol)
		if err != nil {
			return fmt.Errorf("load position: %w", err)
		}
		return nil
	})
	if err != nil {
		return Holdings{}, err
	}

	var amount int64
	var avgPrice float64
	if position != nil {
		amount = position.Amount
		avgPrice = position.AvgPrice
	}

	evaluation := float64(amount) * currentPrice
	profit := evaluation - float64(amount)*avgPrice

	return Holdings{
		Cash:       account.Balance,
		Holdings:   amount,
		Evaluation: evaluation,
		Profit:     profit,
		TotalAsset: account.Balance + evaluation,
	}, nil
}

// Execute validates and settles one order. All rejection paths leave state
// untouched; on success cash and position commit as a single unit and the
// trade is announced to all observers afterwards.
func (e *Engine) Execute(ctx context.Context, username string, order Order) error {
	if err := order.Validate(); err != nil {
		return err
	}

	lock := e.lockFor(username)
	lock.Lock()
	defer lock.Unlock()

	err := e.store.ExecTx(ctx, func(s repository.Store) error {
		account, err := s.AccountByUsername(ctx, username)
		if err != nil {
			return err
		}

		position, err := s.PositionByUsername(ctx, username, e.symbol)
		if err != nil {
			return fmt.Errorf("load position: %w", err)
		}

		switch order.Side {
		case SideBuy:
			return e.settleBuy(ctx, s, account, position, order)
		case SideSell:
			return e.settleSell(ctx, s, account, position, order)
		default:
			return ErrInvalidOrder
		}
	})
	if err != nil {
		return err
	}

	// The trade is committed; notification is best-effort and never rolls
	// it back.
	e.hub.Broadcast(models.TradeEvent{
		Type: models.TypeTradeEvent,
		Msg:  fmt.Sprintf("%s %s %d @ %.0f", username, order.Side, order.Quantity, order.Price),
	})
	if e.journal != nil {
		e.journal.Record(ctx, username, order.Side, order.Quantity, order.Price)
	}

	e.logger.Info("Trade settled",
		zap.String("username", username),
		zap.String("side", string(order.Side)),
		zap.Int64("quantity", order.Quantity),
		zap.Float64("price", order.Price))

	return nil
}

func (e *Engine) settleBuy(ctx context.Context, s repository.Store, account *models.Account, position *models.Position, order Order) error {
	cost := float64(order.Quantity) * order.Price
	if account.Balance < cost {
		return ErrInsufficientFunds
	}
	account.Balance -= cost

	if position != nil {
		// Weighted average cost, rounded to the nearest whole unit. The
		// rounding is part of the observable contract; do not "fix" it.
		total := float64(position.Amount)*position.AvgPrice + cost
		position.AvgPrice = math.Round(total / float64(position.Amount+order.Quantity))
		position.Amount += order.Quantity
	} else {
		// First buy seeds the avg cost at the order price: the degenerate
		// case of the weighted average with zero pre-existing quantity.
		position = &models.Position{
			Username: account.Username,
			Symbol:   e.symbol,
			Amount:   order.Quantity,
			AvgPrice: order.Price,
		}
	}

	if err := s.SavePosition(ctx, position); err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	if err := s.SaveAccount(ctx, account); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (e *Engine) settleSell(ctx context.Context, s repository.Store, account *models.Account, position *models.Position, order Order) error {
	if position == nil || position.Amount < order.Quantity {
		return ErrInsufficientHoldings
	}

	account.Balance += float64(order.Quantity) * order.Price
	position.Amount -= order.Quantity

	if position.Amount == 0 {
		// A zero-quantity position is removed outright so its stale avg
		// cost can never be observed.
		if err := s.DeletePosition(ctx, position); err != nil {
			return fmt.Errorf("delete position: %w", err)
		}
	} else {
		if err := s.SavePosition(ctx, position); err != nil {
			return fmt.Errorf("save position: %w", err)
		}
	}

	if err := s.SaveAccount(ctx, account); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}
