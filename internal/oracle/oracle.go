// Package oracle resolves current unit prices for supported crypto
// currencies from the CoinGecko simple-price API, with a short-TTL Redis
// cache and a stale in-memory fallback when the upstream is unreachable.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"crash/internal/game"
)

const (
	PRICE_TTL       = 10 * time.Second
	REQUEST_TIMEOUT = 5 * time.Second

	REDIS_KEY_PRICE = "oracle:price:"
)

var symbolToID = map[string]string{
	"BTC": "bitcoin",
	"ETH": "ethereum",
}

// Client fetches USD unit prices. Fresh quotes are cached in Redis for
// PRICE_TTL; the last successfully fetched value is additionally kept
// in-process so a dead upstream degrades to stale prices instead of
// failing every request.
type Client struct {
	httpClient *http.Client
	rdb        *redis.Client
	baseURL    string

	mu    sync.RWMutex
	stale map[string]decimal.Decimal
}

// New creates a price client. rdb may be nil; caching then relies on the
// in-process stale map only.
func New(rdb *redis.Client) *Client {
	baseURL := os.Getenv("ORACLE_URL")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	return &Client{
		httpClient: &http.Client{Timeout: REQUEST_TIMEOUT},
		rdb:        rdb,
		baseURL:    baseURL,
		stale:      make(map[string]decimal.Decimal),
	}
}

// GetUnitPrice returns the USD price for a currency symbol. Resolution
// order: Redis cache, upstream fetch, stale fallback. Only an unsupported
// symbol is a validation error; everything else that fails with no fallback
// surfaces game.ErrOracleUnavailable.
func (c *Client) GetUnitPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	coinID, ok := symbolToID[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unsupported currency %s", game.ErrValidation, symbol)
	}

	if c.rdb != nil {
		cached, err := c.rdb.Get(ctx, REDIS_KEY_PRICE+symbol).Result()
		if err == nil {
			if price, perr := decimal.NewFromString(cached); perr == nil {
				return price, nil
			}
		}
	}

	price, err := c.fetch(ctx, coinID)
	if err != nil {
		c.mu.RLock()
		stale, ok := c.stale[symbol]
		c.mu.RUnlock()
		if ok {
			log.Printf("[ORACLE] Fetch failed for %s, using stale price: %v", symbol, err)
			return stale, nil
		}
		return decimal.Zero, fmt.Errorf("%w: %s: %v", game.ErrOracleUnavailable, symbol, err)
	}

	c.mu.Lock()
	c.stale[symbol] = price
	c.mu.Unlock()

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, REDIS_KEY_PRICE+symbol, price.String(), PRICE_TTL).Err(); err != nil {
			log.Printf("[ORACLE] Cache write failed for %s: %v", symbol, err)
		}
	}

	return price, nil
}

func (c *Client) fetch(ctx context.Context, coinID string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, coinID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("status %d", resp.StatusCode)
	}

	var body map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, err
	}

	price, ok := body[coinID]["usd"]
	if !ok || price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("invalid price data for %s", coinID)
	}
	return price, nil
}
