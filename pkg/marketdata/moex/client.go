// Package moex is a client for the MOEX ISS HTTP API with the resilience
// controls a polling trading loop needs: a minimum-interval rate limiter, a
// circuit breaker and retries with exponential backoff.
package moex

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/iskra-lab/iskra-trading/internal/logger"
	"github.com/iskra-lab/iskra-trading/internal/types"
	"github.com/iskra-lab/iskra-trading/pkg/errors"
)

const (
	defaultBaseURL = "https://iss.moex.com/iss"
	issEngine      = "stock"
	issMarket      = "shares"

	issTimeLayout = "2006-01-02 15:04:05"
)

// Config holds the client settings.
type Config struct {
	BaseURL string `yaml:"base_url"`
	// Board is the MOEX trading board, e.g. TQBR for the main equity board.
	Board           string        `yaml:"board" validate:"required"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec" validate:"gt=0"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	// Retries is the number of attempts after the first failed request.
	Retries          int           `yaml:"retries" validate:"gte=0"`
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base" validate:"gt=0"`
	BreakerThreshold int           `yaml:"breaker_threshold" validate:"gt=0"`
	BreakerTimeout   time.Duration `yaml:"breaker_timeout" validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:          defaultBaseURL,
		Board:            "TQBR",
		RateLimitPerSec:  1.0,
		Timeout:          10 * time.Second,
		Retries:          3,
		RetryBackoffBase: 500 * time.Millisecond,
		BreakerThreshold: 5,
		BreakerTimeout:   60 * time.Second,
	}
}

// Metrics is a point-in-time snapshot of the client's counters.
type Metrics struct {
	RequestsTotal   int64
	ErrorsTotal     int64
	AvgLatency      time.Duration
	ErrorRate       float64
	LastRequestAt   time.Time
	BreakerState    string
	BreakerFailures int
}

// Client talks to the MOEX ISS API. All request paths go through the rate
// limiter and the circuit breaker; failed requests are retried with
// exponential backoff before a hard failure surfaces to the caller.
type Client struct {
	config  Config
	http    *resty.Client
	limiter *rateLimiter
	breaker *CircuitBreaker
	logger  *logger.Logger

	mu            sync.Mutex
	requestsTotal int64
	errorsTotal   int64
	latencySum    time.Duration
	lastRequestAt time.Time
}

func NewClient(config Config, log *logger.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}

	httpClient := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetHeader("Accept", "application/json")

	interval := time.Duration(float64(time.Second) / config.RateLimitPerSec)

	c := &Client{
		config:  config,
		http:    httpClient,
		limiter: newRateLimiter(interval),
		breaker: NewCircuitBreaker(config.BreakerThreshold, config.BreakerTimeout),
		logger:  log,
	}

	c.breaker.OnStateChange = func(from, to BreakerState) {
		log.Warn("circuit breaker state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	return c
}

// issTable is one tabular block of an ISS JSON payload.
type issTable struct {
	Columns []string        `json:"columns"`
	Data    [][]interface{} `json:"data"`
}

type issPayload map[string]issTable

// rows pivots the columnar table into per-row column maps.
func (t issTable) rows() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(t.Data))

	for _, row := range t.Data {
		m := make(map[string]interface{}, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		out = append(out, m)
	}

	return out
}

func floatField(row map[string]interface{}, col string) optional.Option[float64] {
	v, ok := row[col]
	if !ok || v == nil {
		return optional.None[float64]()
	}

	switch n := v.(type) {
	case float64:
		return optional.Some(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return optional.None[float64]()
		}
		return optional.Some(f)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return optional.None[float64]()
		}
		return optional.Some(f)
	default:
		return optional.None[float64]()
	}
}

func stringField(row map[string]interface{}, col string) string {
	if s, ok := row[col].(string); ok {
		return s
	}

	return ""
}

func (c *Client) recordRequest(latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestsTotal++
	c.latencySum += latency
	c.lastRequestAt = time.Now()
}

func (c *Client) recordError() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errorsTotal++
}

// requestJSON performs one GET against the ISS API with the full resilience
// chain: rate limit, circuit breaker, retry with exponential backoff.
func (c *Client) requestJSON(ctx context.Context, path string, params map[string]string) (issPayload, error) {
	var payload issPayload

	var lastErr error

	for attempt := 0; attempt <= c.config.Retries; attempt++ {
		if attempt > 0 {
			// base * 2^(attempt-1) after the attempt-th failure
			delay := c.config.RetryBackoffBase << (attempt - 1)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		err := c.breaker.Execute(func() error {
			start := time.Now()

			resp, err := c.http.R().
				SetContext(ctx).
				SetQueryParams(params).
				Get(path)

			c.recordRequest(time.Since(start))

			if err != nil {
				return errors.Wrapf(errors.ErrCodeRequestFailed, err, "GET %s failed", path)
			}

			if resp.StatusCode() != 200 {
				return errors.Newf(errors.ErrCodeUnexpectedResponse, "GET %s returned HTTP %d", path, resp.StatusCode())
			}

			if err := json.Unmarshal(resp.Body(), &payload); err != nil {
				return errors.Wrapf(errors.ErrCodeDecodeFailed, err, "GET %s returned malformed JSON", path)
			}

			return nil
		})

		if err == nil {
			return payload, nil
		}

		if errors.HasCode(err, errors.ErrCodeCircuitOpen) {
			// fail fast, retrying cannot help until the breaker resets
			return nil, err
		}

		c.recordError()
		c.logger.Warn("request attempt failed",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		lastErr = err
	}

	return nil, lastErr
}

// GetHistoricalCandles fetches candles for the ticker from the given date
// at the given interval in minutes, sorted by close time ascending.
func (c *Client) GetHistoricalCandles(ctx context.Context, ticker string, from time.Time, interval int) ([]types.Candle, error) {
	path := fmt.Sprintf("/engines/%s/markets/%s/boards/%s/securities/%s/candles.json",
		issEngine, issMarket, c.config.Board, ticker)

	payload, err := c.requestJSON(ctx, path, map[string]string{
		"interval": strconv.Itoa(interval),
		"from":     from.Format("2006-01-02"),
		"iss.meta": "off",
	})
	if err != nil {
		return nil, err
	}

	candles := make([]types.Candle, 0)

	for _, row := range payload["candles"].rows() {
		end := stringField(row, "end")

		ts, err := time.ParseInLocation(issTimeLayout, end, exchangeLocation())
		if err != nil {
			continue
		}

		open, errO := floatField(row, "open").Take()
		high, errH := floatField(row, "high").Take()
		low, errL := floatField(row, "low").Take()
		closePx, errC := floatField(row, "close").Take()
		if errO != nil || errH != nil || errL != nil || errC != nil {
			continue
		}

		volume := floatField(row, "volume").TakeOr(0)

		candles = append(candles, types.Candle{
			Time:   ts,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePx,
			Volume: volume,
		})
	}

	sortCandles(candles)

	return candles, nil
}

// GetQuote fetches the current L1 snapshot for the ticker. Price sides the
// venue omits outside the session come back as None.
func (c *Client) GetQuote(ctx context.Context, ticker string) (types.Quote, error) {
	path := fmt.Sprintf("/engines/%s/markets/%s/boards/%s/securities/%s.json",
		issEngine, issMarket, c.config.Board, ticker)

	payload, err := c.requestJSON(ctx, path, map[string]string{
		"iss.only": "marketdata",
		"iss.meta": "off",
	})
	if err != nil {
		return types.Quote{}, err
	}

	rows := payload["marketdata"].rows()
	if len(rows) == 0 {
		return types.Quote{}, errors.Newf(errors.ErrCodeNoDataFound, "no marketdata for %s", ticker)
	}

	row := rows[0]

	return types.Quote{
		Time:      time.Now().In(exchangeLocation()),
		Last:      floatField(row, "LAST"),
		Bid:       floatField(row, "BID"),
		Ask:       floatField(row, "OFFER"),
		DayVolume: floatField(row, "VOLTODAY").TakeOr(0),
		DayHigh:   floatField(row, "HIGH").TakeOr(0),
		DayLow:    floatField(row, "LOW").TakeOr(0),
		OpenPrice: floatField(row, "OPEN").TakeOr(0),
	}, nil
}

// GetSecurityInfo fetches instrument metadata, most importantly the lot size.
func (c *Client) GetSecurityInfo(ctx context.Context, ticker string) (types.SecurityInfo, error) {
	path := fmt.Sprintf("/engines/%s/markets/%s/boards/%s/securities/%s.json",
		issEngine, issMarket, c.config.Board, ticker)

	payload, err := c.requestJSON(ctx, path, map[string]string{
		"iss.only": "securities",
		"iss.meta": "off",
	})
	if err != nil {
		return types.SecurityInfo{}, err
	}

	rows := payload["securities"].rows()
	if len(rows) == 0 {
		return types.SecurityInfo{}, errors.Newf(errors.ErrCodeDataNotFound, "no security info for %s", ticker)
	}

	row := rows[0]
	for _, r := range rows {
		if stringField(r, "SECID") == ticker {
			row = r
			break
		}
	}

	lotSize := int64(floatField(row, "LOTSIZE").TakeOr(1))
	if lotSize <= 0 {
		lotSize = 1
	}

	return types.SecurityInfo{
		Ticker:    stringField(row, "SECID"),
		ShortName: stringField(row, "SHORTNAME"),
		LotSize:   lotSize,
	}, nil
}

// Metrics returns a snapshot of the client counters and breaker state.
func (c *Client) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := Metrics{
		RequestsTotal:   c.requestsTotal,
		ErrorsTotal:     c.errorsTotal,
		LastRequestAt:   c.lastRequestAt,
		BreakerState:    c.breaker.State().String(),
		BreakerFailures: c.breaker.Failures(),
	}

	if c.requestsTotal > 0 {
		m.AvgLatency = c.latencySum / time.Duration(c.requestsTotal)
		m.ErrorRate = float64(c.errorsTotal) / float64(c.requestsTotal)
	}

	return m
}
