// Package quotecache serves recent price/iNAV data per symbol, shielding the
// upstream site from repeat lookups and turning its failures into null
// fields instead of errors.
package quotecache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"etfwatch/internal/nse"
)

// Sessions yields a valid upstream session credential.
type Sessions interface {
	EnsureValid(ctx context.Context) (nse.Credential, error)
}

// Fetcher performs the authenticated quote call for one symbol.
type Fetcher interface {
	Quote(ctx context.Context, cred nse.Credential, symbol string) (nse.PriceInfo, error)
}

// Result is what callers get back for a symbol. On any session or upstream
// failure the prices are nil and Err carries the reason; Err is for logging
// only and must never abort the caller's response.
type Result struct {
	Symbol    string    `json:"symbol"`
	LastPrice *float64  `json:"lastPrice"`
	INavValue *float64  `json:"iNavValue"`
	FetchedAt time.Time `json:"fetchedAt"`
	Err       error     `json:"-"`
}

// entry stores one fetched quote with its fetch time. Entries older than
// the TTL are treated as absent; failed fetches are never stored.
type entry struct {
	lastPrice *float64
	iNav      *float64
	fetchedAt time.Time
}

// Cache caches quotes per symbol for a TTL and staggers the upstream calls
// a batch needs so they do not land at once.
type Cache struct {
	sessions Sessions
	fetcher  Fetcher
	ttl      time.Duration
	stagger  time.Duration
	log      zerolog.Logger

	mu    sync.RWMutex
	items map[string]entry
}

// Config configures a Cache.
type Config struct {
	// TTL is the freshness window for a cached quote.
	TTL time.Duration
	// Stagger delays the i-th upstream-bound fetch of a batch by i*Stagger.
	Stagger time.Duration
}

func New(cfg Config, sessions Sessions, fetcher Fetcher, log zerolog.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &Cache{
		sessions: sessions,
		fetcher:  fetcher,
		ttl:      cfg.TTL,
		stagger:  cfg.Stagger,
		log:      log.With().Str("component", "quotecache").Logger(),
		items:    make(map[string]entry),
	}
}

// Get returns the cached quote for symbol when fresh, otherwise fetches it
// upstream. It never returns an error to the caller: degraded results carry
// nil prices and the reason in Result.Err.
func (c *Cache) Get(ctx context.Context, symbol string) Result {
	return c.get(ctx, symbol, 0)
}

// GetBatch resolves each symbol independently. Results are positionally
// matched to symbols; one symbol's failure never affects another's result.
func (c *Cache) GetBatch(ctx context.Context, symbols []string) []Result {
	results := make([]Result, len(symbols))
	now := time.Now()

	var wg sync.WaitGroup
	misses := 0
	for i, s := range symbols {
		if e, ok := c.lookup(s, now); ok {
			results[i] = e.result(s)
			continue
		}
		delay := time.Duration(misses) * c.stagger
		misses++
		wg.Add(1)
		go func(i int, s string, delay time.Duration) {
			defer wg.Done()
			results[i] = c.get(ctx, s, delay)
		}(i, s, delay)
	}
	wg.Wait()
	return results
}

func (c *Cache) get(ctx context.Context, symbol string, delay time.Duration) Result {
	if e, ok := c.lookup(symbol, time.Now()); ok {
		return e.result(symbol)
	}

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Result{Symbol: symbol, Err: ctx.Err()}
		case <-t.C:
		}
	}

	cred, err := c.sessions.EnsureValid(ctx)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("session unavailable, degrading to nulls")
		return Result{Symbol: symbol, Err: err}
	}

	info, err := c.fetcher.Quote(ctx, cred, symbol)
	if err != nil {
		// Not cached: a later call should retry upstream.
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("quote fetch failed, degrading to nulls")
		return Result{Symbol: symbol, Err: err}
	}

	e := entry{lastPrice: info.LastPrice, iNav: info.INavValue, fetchedAt: time.Now()}
	c.mu.Lock()
	c.items[symbol] = e
	c.mu.Unlock()

	return e.result(symbol)
}

func (c *Cache) lookup(symbol string, now time.Time) (entry, bool) {
	c.mu.RLock()
	e, ok := c.items[symbol]
	c.mu.RUnlock()
	if !ok || now.Sub(e.fetchedAt) >= c.ttl {
		return entry{}, false
	}
	return e, true
}

func (e entry) result(symbol string) Result {
	return Result{
		Symbol:    symbol,
		LastPrice: e.lastPrice,
		INavValue: e.iNav,
		FetchedAt: e.fetchedAt,
	}
}
