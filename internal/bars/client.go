package bars

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/stockpool/internal/contracts"
	"github.com/wonny/stockpool/pkg/config"
	"github.com/wonny/stockpool/pkg/httputil"
	"github.com/wonny/stockpool/pkg/logger"
	"github.com/wonny/stockpool/pkg/redis"
)

// VendorClient fetches raw bars and fundamentals from the market data vendor.
// ⭐ SSOT: 벤더 API 호출은 여기서만
type VendorClient struct {
	http    *httputil.Client
	limiter *rate.Limiter
	shared  *redis.RateLimiter // optional cross-process limit
	baseURL string
	apiKey  string
	logger  *logger.Logger
}

// barPayload is the vendor wire format for one bar
type barPayload struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// barsResponse is the vendor wire format for a bar query
type barsResponse struct {
	Instrument string       `json:"instrument"`
	Timeframe  string       `json:"timeframe"`
	Bars       []barPayload `json:"bars"`
}

// fundamentalsResponse is the vendor wire format for a fundamentals query.
// Missing metrics are returned as null.
type fundamentalsResponse struct {
	PERatio       *float64 `json:"pe_ratio"`
	PBRatio       *float64 `json:"pb_ratio"`
	TurnoverRatio *float64 `json:"turnover_ratio"`
	MarketCap     *float64 `json:"market_cap"`
}

// NewVendorClient creates a vendor client from config
func NewVendorClient(cfg *config.Config, log *logger.Logger) *VendorClient {
	httpClient := httputil.NewWithTimeout(cfg, log, 15*time.Second).
		WithRetry(cfg.Vendor.MaxRetries, cfg.Vendor.InitialDelay)

	// 요청 간격을 로컬에서 제한 (윈도우당 요청 수)
	window := cfg.Vendor.RateWindow
	if window <= 0 {
		window = time.Second
	}
	limit := rate.Every(window / time.Duration(max(cfg.Vendor.RateLimit, 1)))

	return &VendorClient{
		http:    httpClient,
		limiter: rate.NewLimiter(limit, max(cfg.Vendor.RateLimit, 1)),
		baseURL: cfg.Vendor.BaseURL,
		apiKey:  cfg.Vendor.APIKey,
		logger:  log,
	}
}

// WithSharedLimiter adds a Redis-backed limit shared across processes.
// The local limiter still applies; the shared one is the vendor-wide cap.
func (c *VendorClient) WithSharedLimiter(limiter *redis.RateLimiter) *VendorClient {
	c.shared = limiter
	return c
}

// FetchBars retrieves bars for one instrument within [from, to]
func (c *VendorClient) FetchBars(ctx context.Context, instrument, timeframe string, from, to time.Time) (*contracts.BarSeries, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("vendor rate wait: %w", err)
	}
	if c.shared != nil {
		if err := c.shared.Wait(ctx, redis.VendorRateLimit); err != nil {
			return nil, fmt.Errorf("vendor shared rate wait: %w", err)
		}
	}

	query := url.Values{}
	query.Set("instrument", instrument)
	query.Set("timeframe", timeframe)
	query.Set("from", from.Format(time.RFC3339))
	query.Set("to", to.Format(time.RFC3339))
	query.Set("api_key", c.apiKey)

	endpoint := fmt.Sprintf("%s/v1/bars?%s", c.baseURL, query.Encode())

	resp, err := c.http.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch bars %s: %v", contracts.ErrTransient, instrument, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, instrument); err != nil {
		return nil, err
	}

	var payload barsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode bars %s: %v", contracts.ErrTransient, instrument, err)
	}

	series := &contracts.BarSeries{
		Instrument: instrument,
		Timeframe:  timeframe,
		Bars:       make([]contracts.Bar, 0, len(payload.Bars)),
		FetchedAt:  time.Now(),
	}
	for _, b := range payload.Bars {
		series.Bars = append(series.Bars, contracts.Bar{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("vendor bars %s: %w", instrument, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"instrument": instrument,
		"timeframe":  timeframe,
		"bars":       series.Len(),
	}).Debug("Fetched bars from vendor")

	return series, nil
}

// FetchFundamentals retrieves valuation metrics for one instrument
func (c *VendorClient) FetchFundamentals(ctx context.Context, instrument string, asOf time.Time) (contracts.Fundamentals, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return contracts.EmptyFundamentals(), fmt.Errorf("vendor rate wait: %w", err)
	}
	if c.shared != nil {
		if err := c.shared.Wait(ctx, redis.FundamentalsRateLimit); err != nil {
			return contracts.EmptyFundamentals(), fmt.Errorf("vendor shared rate wait: %w", err)
		}
	}

	query := url.Values{}
	query.Set("instrument", instrument)
	query.Set("as_of", asOf.Format("2006-01-02"))
	query.Set("api_key", c.apiKey)

	endpoint := fmt.Sprintf("%s/v1/fundamentals?%s", c.baseURL, query.Encode())

	resp, err := c.http.Get(ctx, endpoint)
	if err != nil {
		return contracts.EmptyFundamentals(), fmt.Errorf("%w: fetch fundamentals %s: %v", contracts.ErrTransient, instrument, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, instrument); err != nil {
		return contracts.EmptyFundamentals(), err
	}

	var payload fundamentalsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return contracts.EmptyFundamentals(), fmt.Errorf("%w: decode fundamentals %s: %v", contracts.ErrTransient, instrument, err)
	}

	return contracts.Fundamentals{
		PERatio:       deref(payload.PERatio),
		PBRatio:       deref(payload.PBRatio),
		TurnoverRatio: deref(payload.TurnoverRatio),
		MarketCap:     deref(payload.MarketCap),
	}, nil
}

// classifyStatus maps vendor HTTP status codes onto the error taxonomy
func classifyStatus(status int, instrument string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: instrument %s", contracts.ErrNotFound, instrument)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: instrument %s", contracts.ErrRateLimited, instrument)
	case status >= 500:
		return fmt.Errorf("%w: vendor returned %d for %s", contracts.ErrTransient, status, instrument)
	default:
		return fmt.Errorf("vendor returned %d for %s", status, instrument)
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
