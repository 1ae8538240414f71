package indodax

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"marketrelay/config"
	"marketrelay/logger"
	"marketrelay/models"
)

// Reader fetches ticker and depth data from the Indodax public API and
// normalizes both into a single TickerUpdate per symbol.
type Reader struct {
	config     *config.Config
	client     *http.Client
	limiter    *rate.Limiter
	log        *logger.Log
	baseURL    string
	timeout    time.Duration
	depthLimit int
}

// NewReader creates a Reader with a pooled HTTP client. Each request stage
// (ticker, depth) runs under its own timeout taken from the source config.
func NewReader(cfg *config.Config) *Reader {
	log := logger.GetLogger()
	src := cfg.Source.Indodax

	transport := &http.Transport{
		MaxIdleConns:        src.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: src.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     src.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     src.ConnectionPool.IdleConnTimeout,
		DisableCompression:  false,
	}

	httpClient := &http.Client{
		Transport: userAgentTransport{
			agent: fmt.Sprintf("%s/%s", cfg.Marketrelay.Name, cfg.Marketrelay.Version),
			base:  transport,
		},
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if src.RateLimit.RequestsPerSecond > 0 {
		burst := src.RateLimit.BurstSize
		if burst <= 0 {
			burst = src.RateLimit.RequestsPerSecond
		}
		limiter = rate.NewLimiter(rate.Limit(src.RateLimit.RequestsPerSecond), burst)
	}

	reader := &Reader{
		config:     cfg,
		client:     httpClient,
		limiter:    limiter,
		log:        log,
		baseURL:    src.BaseURL,
		timeout:    src.Timeout,
		depthLimit: src.DepthLimit,
	}

	log.WithComponent("indodax_reader").WithFields(logger.Fields{
		"base_url":    src.BaseURL,
		"timeout":     src.Timeout,
		"depth_limit": src.DepthLimit,
	}).Info("indodax reader initialized")

	return reader
}

// Fetch retrieves the ticker and depth for one symbol. A ticker stage failure
// aborts with an error and no update is produced. A depth stage failure only
// degrades the order book to empty sides; the ticker fields still publish.
func (r *Reader) Fetch(ctx context.Context, symbol string) (*models.TickerUpdate, error) {
	start := time.Now()

	ticker, err := r.fetchTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}

	update, err := normalizeTicker(symbol, ticker)
	if err != nil {
		return nil, err
	}

	buy, sell := r.fetchDepth(ctx, symbol)
	update.OrderBook = models.OrderBook{BuyOrders: buy, SellOrders: sell}
	update.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	logger.IncrementSnapshotFetched()
	logger.LogPerformanceEntry(r.log.WithComponent("indodax_reader"), "indodax_reader", "fetch_snapshot", time.Since(start), logger.Fields{
		"symbol": symbol,
	})
	return update, nil
}

func (r *Reader) fetchTicker(ctx context.Context, symbol string) (*models.IndodaxTicker, error) {
	var resp models.IndodaxTickerResponse
	if err := r.getJSON(ctx, tickerURL(r.baseURL, symbol), &resp); err != nil {
		return nil, fmt.Errorf("ticker fetch for %s: %w", symbol, err)
	}
	if resp.Ticker == nil {
		return nil, fmt.Errorf("ticker fetch for %s: response has no ticker field", symbol)
	}
	return resp.Ticker, nil
}

// fetchDepth never fails the cycle. Both sides come back as empty, non-nil
// slices when the endpoint or either side is unusable.
func (r *Reader) fetchDepth(ctx context.Context, symbol string) ([]models.Level, []models.Level) {
	log := r.log.WithComponent("indodax_depth_reader").WithFields(logger.Fields{"symbol": symbol})

	buy := []models.Level{}
	sell := []models.Level{}

	var resp models.IndodaxDepthResponse
	if err := r.getJSON(ctx, depthURL(r.baseURL, symbol), &resp); err != nil {
		log.WithError(err).Warn("depth fetch failed, publishing empty order book")
		return buy, sell
	}

	if levels, err := models.ParseLevels(resp.Buy); err != nil {
		log.WithError(err).Warn("depth buy side missing or malformed")
	} else {
		buy = sortSide(levels, true, r.depthLimit)
	}

	if levels, err := models.ParseLevels(resp.Sell); err != nil {
		log.WithError(err).Warn("depth sell side missing or malformed")
	} else {
		sell = sortSide(levels, false, r.depthLimit)
	}

	return buy, sell
}

// getJSON performs one rate-limited GET under the per-stage timeout and
// decodes the body. Non-2xx statuses are hard failures.
func (r *Reader) getJSON(ctx context.Context, url string, out interface{}) error {
	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.limiter.Wait(reqCtx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func normalizeTicker(symbol string, ticker *models.IndodaxTicker) (*models.TickerUpdate, error) {
	last, err := parseDecimal("last", ticker.Last)
	if err != nil {
		return nil, err
	}
	high, err := parseDecimal("high", ticker.High)
	if err != nil {
		return nil, err
	}
	low, err := parseDecimal("low", ticker.Low)
	if err != nil {
		return nil, err
	}

	// Quote-currency volume wins over the generic volume field.
	volumeField := ticker.VolIDR
	volumeName := "vol_idr"
	if volumeField == "" {
		volumeField = ticker.Volume
		volumeName = "volume"
	}
	volume, err := parseDecimal(volumeName, volumeField)
	if err != nil {
		return nil, err
	}

	return &models.TickerUpdate{
		Symbol:           symbol,
		Price:            last,
		HighPrice:        high,
		LowPrice:         low,
		PercentageChange: fmt.Sprintf("%.2f", percentageChange(last, high, low)),
		Volume24h:        volume,
	}, nil
}

// percentageChange computes change against the 24h low, falling back to the
// 24h high as basis when the low is zero. This mirrors the upstream heuristic
// and is deliberately not a symmetric percent-change formula.
func percentageChange(last, high, low float64) float64 {
	if last > 0 && low > 0 {
		return (last - low) / low * 100
	}
	if last > 0 && high > 0 {
		return (last - high) / high * 100
	}
	return 0
}

// parseDecimal parses one stringified decimal from the ticker payload.
// Absent fields default to zero; present but unparsable values are errors.
func parseDecimal(name, value string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ticker field %s: %w", name, err)
	}
	return v, nil
}

func sortSide(levels []models.Level, descending bool, limit int) []models.Level {
	sort.SliceStable(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price() > levels[j].Price()
		}
		return levels[i].Price() < levels[j].Price()
	})
	if len(levels) > limit {
		levels = levels[:limit]
	}
	if levels == nil {
		levels = []models.Level{}
	}
	return levels
}
