package feed

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/realtime-trading-api/realtime-trading/pkg/config"
	"github.com/realtime-trading-api/realtime-trading/pkg/models"
)

// Generator produces an unbounded random-walk price sequence and emits each
// tick to the hub. It has no termination condition of its own; it runs until
// its context is cancelled.
type Generator struct {
	logger   *zap.Logger
	hub      Broadcaster
	rand     Rand
	clock    Clock
	price    int64
	floor    int64
	maxDelta int64
	interval time.Duration
	seq      int64
}

func NewGenerator(logger *zap.Logger, hub Broadcaster, cfg config.FeedConfig, rnd Rand, clock Clock) *Generator {
	return &Generator{
		logger:   logger,
		hub:      hub,
		rand:     rnd,
		clock:    clock,
		price:    cfg.InitialPrice,
		floor:    cfg.FloorPrice,
		maxDelta: cfg.MaxDelta,
		interval: cfg.Interval(),
	}
}

func (g *Generator) Run(ctx context.Context) {
	g.logger.Info("Feed started",
		zap.Int64("initial_price", g.price),
		zap.Int64("floor", g.floor),
		zap.Duration("interval", g.interval))

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("Feed stopped", zap.Int64("last_price", g.price))
			return
		default:
			// Uniform step in [-maxDelta, +maxDelta], clamped at the floor
			// so the price never goes degenerate.
			delta := int64(g.rand.Intn(int(2*g.maxDelta+1))) - g.maxDelta
			g.price += delta
			if g.price < g.floor {
				g.price = g.floor
			}
			g.seq++

			g.hub.Broadcast(models.Tick{
				Type:  models.TypePriceUpdate,
				Price: g.price,
				Time:  g.clock.Now().Format("15:04:05"),
				SeqID: g.seq,
			})

			g.clock.Sleep(g.interval)
		}
	}
}
