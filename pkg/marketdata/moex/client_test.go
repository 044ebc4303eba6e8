package moex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/iskra-lab/iskra-trading/internal/logger"
	"github.com/iskra-lab/iskra-trading/pkg/errors"
)

const candlesPayload = `{
	"candles": {
		"columns": ["open", "close", "high", "low", "value", "volume", "begin", "end"],
		"data": [
			[160.5, 161.0, 161.2, 160.3, 1000000, 6200, "2026-03-02 10:00:00", "2026-03-02 10:05:00"],
			[161.0, 160.8, 161.5, 160.7, 900000, 5600, "2026-03-02 10:05:00", "2026-03-02 10:10:00"]
		]
	}
}`

const marketdataPayload = `{
	"marketdata": {
		"columns": ["SECID", "LAST", "BID", "OFFER", "VOLTODAY", "HIGH", "LOW", "OPEN"],
		"data": [["GAZP", 161.1, 161.0, 161.2, 1500000, 162.0, 160.0, 160.5]]
	}
}`

const securitiesPayload = `{
	"securities": {
		"columns": ["SECID", "SHORTNAME", "LOTSIZE"],
		"data": [["GAZP", "ГАЗПРОМ ао", 10]]
	}
}`

type ClientTestSuite struct {
	suite.Suite
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (suite *ClientTestSuite) newClient(server *httptest.Server) *Client {
	config := DefaultConfig()
	config.BaseURL = server.URL
	config.RateLimitPerSec = 1000
	config.Retries = 0
	config.RetryBackoffBase = time.Millisecond

	return NewClient(config, logger.NewNopLogger())
}

func (suite *ClientTestSuite) TestGetHistoricalCandles() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suite.Contains(r.URL.Path, "/boards/TQBR/securities/GAZP/candles.json")
		suite.Equal("5", r.URL.Query().Get("interval"))
		suite.Equal("2026-03-02", r.URL.Query().Get("from"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(candlesPayload))
	}))
	defer server.Close()

	client := suite.newClient(server)

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	candles, err := client.GetHistoricalCandles(context.Background(), "GAZP", from, 5)
	suite.Require().NoError(err)
	suite.Require().Len(candles, 2)

	suite.InDelta(161.0, candles[0].Close, 1e-9)
	suite.InDelta(6200.0, candles[0].Volume, 1e-9)
	suite.True(candles[0].Time.Before(candles[1].Time))
	suite.Equal(5, candles[0].Time.Minute())
}

func (suite *ClientTestSuite) TestGetQuote() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suite.Equal("marketdata", r.URL.Query().Get("iss.only"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(marketdataPayload))
	}))
	defer server.Close()

	client := suite.newClient(server)

	quote, err := client.GetQuote(context.Background(), "GAZP")
	suite.Require().NoError(err)

	last, takeErr := quote.Last.Take()
	suite.Require().NoError(takeErr)
	suite.InDelta(161.1, last, 1e-9)

	ask, takeErr := quote.Ask.Take()
	suite.Require().NoError(takeErr)
	suite.InDelta(161.2, ask, 1e-9)

	suite.InDelta(1500000.0, quote.DayVolume, 1e-9)
}

func (suite *ClientTestSuite) TestGetQuoteMissingSidesAreNone() {
	payload := `{
		"marketdata": {
			"columns": ["SECID", "LAST", "BID", "OFFER"],
			"data": [["GAZP", 161.1, null, null]]
		}
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	client := suite.newClient(server)

	quote, err := client.GetQuote(context.Background(), "GAZP")
	suite.Require().NoError(err)
	suite.True(quote.Bid.IsNone())
	suite.True(quote.Ask.IsNone())
	suite.False(quote.Last.IsNone())
}

func (suite *ClientTestSuite) TestGetSecurityInfo() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suite.Equal("securities", r.URL.Query().Get("iss.only"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(securitiesPayload))
	}))
	defer server.Close()

	client := suite.newClient(server)

	info, err := client.GetSecurityInfo(context.Background(), "GAZP")
	suite.Require().NoError(err)
	suite.Equal("GAZP", info.Ticker)
	suite.Equal(int64(10), info.LotSize)
}

func (suite *ClientTestSuite) TestRetriesThenSucceeds() {
	var attempts int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(securitiesPayload))
	}))
	defer server.Close()

	config := DefaultConfig()
	config.BaseURL = server.URL
	config.RateLimitPerSec = 1000
	config.Retries = 3
	config.RetryBackoffBase = time.Millisecond

	client := NewClient(config, logger.NewNopLogger())

	_, err := client.GetSecurityInfo(context.Background(), "GAZP")
	suite.Require().NoError(err)
	suite.Equal(3, attempts)

	metrics := client.Metrics()
	suite.Equal(int64(3), metrics.RequestsTotal)
	suite.Equal(int64(2), metrics.ErrorsTotal)
}

func (suite *ClientTestSuite) TestHardFailureAfterRetriesExhausted() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	config := DefaultConfig()
	config.BaseURL = server.URL
	config.RateLimitPerSec = 1000
	config.Retries = 2
	config.RetryBackoffBase = time.Millisecond
	config.BreakerThreshold = 100

	client := NewClient(config, logger.NewNopLogger())

	_, err := client.GetQuote(context.Background(), "GAZP")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeUnexpectedResponse))
}

func (suite *ClientTestSuite) TestBreakerOpensAndFailsFast() {
	var attempts int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	config := DefaultConfig()
	config.BaseURL = server.URL
	config.RateLimitPerSec = 1000
	config.Retries = 0
	config.RetryBackoffBase = time.Millisecond
	config.BreakerThreshold = 2
	config.BreakerTimeout = time.Hour

	client := NewClient(config, logger.NewNopLogger())

	for i := 0; i < 2; i++ {
		_, err := client.GetQuote(context.Background(), "GAZP")
		suite.Require().Error(err)
	}
	suite.Equal(2, attempts)

	_, err := client.GetQuote(context.Background(), "GAZP")
	suite.True(errors.HasCode(err, errors.ErrCodeCircuitOpen))
	suite.Equal(2, attempts, "open breaker must reject without a network call")
	suite.Equal("open", client.Metrics().BreakerState)
}

func (suite *ClientTestSuite) TestMalformedJSONIsDecodeError() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := suite.newClient(server)

	_, err := client.GetQuote(context.Background(), "GAZP")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDecodeFailed))
}
