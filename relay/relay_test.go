package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketrelay/cache"
	"marketrelay/config"
	"marketrelay/models"
)

// fetcherFunc adapts a function to the Fetcher interface.
type fetcherFunc func(ctx context.Context, symbol string) (*models.TickerUpdate, error)

func (f fetcherFunc) Fetch(ctx context.Context, symbol string) (*models.TickerUpdate, error) {
	return f(ctx, symbol)
}

// recordingHub captures broadcast payloads and can verify that the cache was
// already updated when the broadcast happened.
type recordingHub struct {
	mu       sync.Mutex
	payloads []*models.TickerUpdate
	onCast   func(*models.TickerUpdate)
}

func (h *recordingHub) Broadcast(v interface{}) {
	upd := v.(*models.TickerUpdate)
	h.mu.Lock()
	h.payloads = append(h.payloads, upd)
	h.mu.Unlock()
	if h.onCast != nil {
		h.onCast(upd)
	}
}

func (h *recordingHub) bySymbol(symbol string) []*models.TickerUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*models.TickerUpdate
	for _, p := range h.payloads {
		if p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out
}

func relayConfig(symbols []string, interval time.Duration) *config.Config {
	return &config.Config{
		Marketrelay: config.MarketrelayConfig{Name: "MarketRelay", Version: "test"},
		Source: config.SourceConfig{
			Indodax: config.IndodaxSourceConfig{
				BaseURL:       "https://indodax.com/api",
				FetchInterval: interval,
				DepthLimit:    10,
				Symbols:       symbols,
			},
		},
	}
}

func TestTickerFailureIsolation(t *testing.T) {
	snapshots := cache.NewSnapshotCache()
	snapshots.Set("A/IDR", &models.TickerUpdate{Symbol: "A/IDR", Price: 50})

	fetch := fetcherFunc(func(ctx context.Context, symbol string) (*models.TickerUpdate, error) {
		if symbol == "A/IDR" {
			return nil, errors.New("upstream 502")
		}
		return &models.TickerUpdate{Symbol: symbol, Price: 110}, nil
	})

	h := &recordingHub{}
	r := New(relayConfig([]string{"A/IDR", "B/IDR"}, time.Hour), fetch, snapshots, h)
	r.ctx = context.Background()
	r.runCycle()

	prev, ok := snapshots.Get("A/IDR")
	if !ok || prev.Price != 50 {
		t.Errorf("failed symbol must keep previous snapshot, got %+v", prev)
	}
	updated, ok := snapshots.Get("B/IDR")
	if !ok || updated.Price != 110 {
		t.Errorf("successful symbol must update, got %+v", updated)
	}
	if got := h.bySymbol("A/IDR"); len(got) != 0 {
		t.Errorf("failed symbol must not publish, got %d messages", len(got))
	}
	if got := h.bySymbol("B/IDR"); len(got) != 1 {
		t.Errorf("successful symbol must publish once, got %d messages", len(got))
	}
}

func TestCacheUpdatedBeforeBroadcast(t *testing.T) {
	snapshots := cache.NewSnapshotCache()
	fetch := fetcherFunc(func(ctx context.Context, symbol string) (*models.TickerUpdate, error) {
		return &models.TickerUpdate{Symbol: symbol, Price: 42}, nil
	})

	h := &recordingHub{}
	h.onCast = func(upd *models.TickerUpdate) {
		cached, ok := snapshots.Get(upd.Symbol)
		if !ok {
			t.Errorf("broadcast for %s observed before cache update", upd.Symbol)
			return
		}
		if cached.Price != upd.Price {
			t.Errorf("cache holds %v at broadcast time, payload is %v", cached.Price, upd.Price)
		}
	}

	r := New(relayConfig([]string{"BTC/IDR", "ETH/IDR"}, time.Hour), fetch, snapshots, h)
	r.ctx = context.Background()
	r.runCycle()

	if snapshots.Len() != 2 {
		t.Errorf("expected 2 cached symbols, got %d", snapshots.Len())
	}
}

func TestCycleFansOutAllSymbols(t *testing.T) {
	symbols := []string{"A/IDR", "B/IDR", "C/IDR", "D/IDR"}

	var mu sync.Mutex
	inFlight, peak := 0, 0
	release := make(chan struct{})

	fetch := fetcherFunc(func(ctx context.Context, symbol string) (*models.TickerUpdate, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		<-release

		mu.Lock()
		inFlight--
		mu.Unlock()
		return &models.TickerUpdate{Symbol: symbol}, nil
	})

	snapshots := cache.NewSnapshotCache()
	r := New(relayConfig(symbols, time.Hour), fetch, snapshots, &recordingHub{})
	r.ctx = context.Background()

	done := make(chan struct{})
	go func() {
		r.runCycle()
		close(done)
	}()

	// All four fetches must be in flight together before any completes.
	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := inFlight
		mu.Unlock()
		if n == len(symbols) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("fetches not concurrent: %d in flight", n)
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(release)
	<-done

	if peak != len(symbols) {
		t.Errorf("peak concurrency %d, want %d", peak, len(symbols))
	}
	if snapshots.Len() != len(symbols) {
		t.Errorf("expected %d cached symbols, got %d", len(symbols), snapshots.Len())
	}
}

func TestStartStop(t *testing.T) {
	var calls int64
	var mu sync.Mutex
	fetch := fetcherFunc(func(ctx context.Context, symbol string) (*models.TickerUpdate, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return &models.TickerUpdate{Symbol: symbol}, nil
	})

	r := New(relayConfig([]string{"BTC/IDR"}, 10*time.Millisecond), fetch, cache.NewSnapshotCache(), &recordingHub{})

	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.Start(ctx); err == nil {
		t.Fatal("expected error on second start")
	}

	time.Sleep(60 * time.Millisecond)
	cancel()
	r.Stop()

	mu.Lock()
	n := calls
	mu.Unlock()
	if n < 2 {
		t.Errorf("expected repeated cycles, got %d fetches", n)
	}
}
