// Package relay drives the poll/broadcast cycle: every interval it fans out
// one fetch per configured symbol, caches each successful snapshot and
// broadcasts it to all live subscribers.
package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketrelay/cache"
	"marketrelay/config"
	"marketrelay/logger"
	"marketrelay/models"
)

// Fetcher produces one normalized snapshot per symbol.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) (*models.TickerUpdate, error)
}

// Broadcaster fans a snapshot out to all current subscribers.
type Broadcaster interface {
	Broadcast(v interface{})
}

// Relay runs the producer loop for the process lifetime. Failures inside a
// cycle are contained per symbol and never stop the loop.
type Relay struct {
	config   *config.Config
	fetcher  Fetcher
	cache    *cache.SnapshotCache
	hub      Broadcaster
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
	symbols  []string
	interval time.Duration
}

func New(cfg *config.Config, fetcher Fetcher, snapshots *cache.SnapshotCache, hub Broadcaster) *Relay {
	log := logger.GetLogger()

	relay := &Relay{
		config:   cfg,
		fetcher:  fetcher,
		cache:    snapshots,
		hub:      hub,
		wg:       &sync.WaitGroup{},
		log:      log,
		symbols:  cfg.Source.Indodax.Symbols,
		interval: cfg.Source.Indodax.FetchInterval,
	}

	log.WithComponent("relay").WithFields(logger.Fields{
		"symbols":  relay.symbols,
		"interval": relay.interval,
	}).Info("relay initialized")

	return relay
}

// Start launches the producer loop in the background.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("relay already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run()

	r.log.WithComponent("relay").Info("relay started successfully")
	return nil
}

// Stop waits for the current cycle to finish. The loop itself exits through
// context cancellation.
func (r *Relay) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.log.WithComponent("relay").Info("stopping relay")
	r.wg.Wait()
	r.log.WithComponent("relay").Info("relay stopped")
}

func (r *Relay) run() {
	defer r.wg.Done()

	log := r.log.WithComponent("relay").WithFields(logger.Fields{"worker": "producer_loop"})
	log.Info("starting producer loop")

	for {
		r.runCycle()

		// Fixed sleep after full fan-in: an overrunning cycle starts the
		// next one this much later, with no catch-up and no skipping.
		select {
		case <-r.ctx.Done():
			log.Info("producer loop stopped due to context cancellation")
			return
		case <-time.After(r.interval):
		}
	}
}

// runCycle fetches all symbols concurrently and waits for every fetch to
// finish, successfully or not, before returning.
func (r *Relay) runCycle() {
	start := time.Now()

	var cycle sync.WaitGroup
	for _, symbol := range r.symbols {
		cycle.Add(1)
		go func(symbol string) {
			defer cycle.Done()
			r.fetchAndPublish(symbol)
		}(symbol)
	}
	cycle.Wait()

	duration := time.Since(start)
	if duration > r.interval {
		r.log.WithComponent("relay").WithFields(logger.Fields{
			"duration_ms": duration.Milliseconds(),
			"interval":    r.interval,
		}).Warn("cycle took longer than interval")
	}
}

// fetchAndPublish handles one symbol of one cycle. The cache is updated
// before the broadcast so subscribers never observe a publish without a
// corresponding cache entry.
func (r *Relay) fetchAndPublish(symbol string) {
	log := r.log.WithComponent("relay").WithFields(logger.Fields{"symbol": symbol})

	update, err := r.fetcher.Fetch(r.ctx, symbol)
	if err != nil {
		log.WithError(err).Warn("fetch failed, keeping previous snapshot")
		return
	}

	r.cache.Set(symbol, update)
	r.hub.Broadcast(update)

	log.WithFields(logger.Fields{
		"price": update.Price,
		"bids":  len(update.OrderBook.BuyOrders),
		"asks":  len(update.OrderBook.SellOrders),
	}).Debug("snapshot published")
}
