// Package rates converts amounts into the base currency using exchange rates
// from a Frankfurter-compatible HTTP service.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"prorata/internal/cache"
	"prorata/internal/core"
	applog "prorata/internal/log"
)

var ErrRateUnavailable = errors.New("exchange rate unavailable")

// Client looks up rates quoted as units of the foreign currency per one unit
// of the base currency, for the day an expense was issued.
type Client struct {
	baseURL    string
	base       string
	httpClient *http.Client
	cache      *cache.LRUCache[decimal.Decimal]
}

type ratesResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

func NewClient(baseURL, baseCurrency string, timeout time.Duration, rateCache *cache.LRUCache[decimal.Decimal]) *Client {
	if rateCache == nil {
		rateCache = cache.NewLRUCache[decimal.Decimal](256, 24*time.Hour)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		base:       strings.ToUpper(baseCurrency),
		httpClient: &http.Client{Timeout: timeout},
		cache:      rateCache,
	}
}

// Base returns the base currency identifier.
func (c *Client) Base() string {
	return c.base
}

// ToBase implements ports.RateConverter. Amounts already in the base currency
// are returned unchanged without a lookup.
func (c *Client) ToBase(ctx context.Context, cents int64, currency string, at time.Time) (int64, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == c.base {
		return cents, nil
	}
	rate, err := c.Rate(ctx, currency, at)
	if err != nil {
		return 0, err
	}
	return Convert(cents, rate)
}

// Rate returns the cached or freshly fetched rate for currency on at's date.
func (c *Client) Rate(ctx context.Context, currency string, at time.Time) (decimal.Decimal, error) {
	date := at.Format("2006-01-02")
	return c.cache.GetOrLoad(date+":"+currency, func() (decimal.Decimal, error) {
		return c.fetch(ctx, currency, date)
	})
}

func (c *Client) fetch(ctx context.Context, currency, date string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("from", c.base)
	q.Set("to", currency)
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, date, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("build rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: %s returned %s", ErrRateUnavailable, c.baseURL, resp.Status)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode rate response: %w", err)
	}
	rate, ok := body.Rates[currency]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no %s rate for %s", ErrRateUnavailable, currency, date)
	}

	slog.DebugContext(ctx, "Fetched exchange rate",
		applog.FieldComponent, applog.ComponentRates,
		applog.FieldOperation, applog.OpConvert,
		"base", c.base,
		applog.FieldCurrency, currency,
		"date", date,
		"rate", rate.String(),
		applog.FieldDuration, time.Since(start).Milliseconds())

	return rate, nil
}

// Convert divides a foreign amount by its rate and rounds half to even.
func Convert(cents int64, rate decimal.Decimal) (int64, error) {
	if !rate.IsPositive() {
		return 0, fmt.Errorf("%w: rate must be positive", ErrRateUnavailable)
	}
	v := decimal.NewFromInt(cents).DivRound(rate, 8).RoundBank(0)
	if v.Abs().GreaterThan(decimal.NewFromInt(core.MaxExactCents)) {
		return 0, core.ErrAmountOverflow
	}
	return v.IntPart(), nil
}
