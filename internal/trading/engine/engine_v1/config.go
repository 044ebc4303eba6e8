package engine

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	backtestv1 "github.com/iskra-lab/iskra-trading/internal/backtest/engine/engine_v1"
	"github.com/iskra-lab/iskra-trading/internal/indicator"
	"github.com/iskra-lab/iskra-trading/internal/risk"
	"github.com/iskra-lab/iskra-trading/internal/strategy"
	"github.com/iskra-lab/iskra-trading/pkg/errors"
)

// LiveTradingEngineV1Config configures the live polling engine.
type LiveTradingEngineV1Config struct {
	Ticker string `yaml:"ticker" json:"ticker" jsonschema:"title=Ticker,description=Instrument ticker" validate:"required"`

	// PollIntervalSec is the trading-loop tick in seconds.
	PollIntervalSec int `yaml:"poll_interval_sec" json:"poll_interval_sec" jsonschema:"title=Poll Interval,description=Trading loop tick in seconds,minimum=1" validate:"required,gt=0"`
	// CandleIntervalMin is the candle bucket size in minutes.
	CandleIntervalMin int `yaml:"candle_interval_min" json:"candle_interval_min" jsonschema:"title=Candle Interval,description=Candle bucket size in minutes,minimum=1" validate:"required,gt=0"`
	// HealthCheckIntervalSec is the health-check tick in seconds.
	HealthCheckIntervalSec int `yaml:"health_check_interval_sec" json:"health_check_interval_sec" jsonschema:"title=Health Check Interval,description=Health check tick in seconds,minimum=1" validate:"required,gt=0"`

	// SessionOpen and SessionClose bound the trading session, HH:MM in
	// exchange local time.
	SessionOpen  string `yaml:"session_open" json:"session_open" jsonschema:"title=Session Open,description=Session open HH:MM exchange local time" validate:"required"`
	SessionClose string `yaml:"session_close" json:"session_close" jsonschema:"title=Session Close,description=Session close HH:MM exchange local time" validate:"required"`

	// MaxCandles bounds the in-memory candle history.
	MaxCandles int `yaml:"max_candles" json:"max_candles" jsonschema:"title=Max Candles,description=In-memory candle history bound,minimum=1" validate:"required,gt=0"`
	// HistorySeedHours is how far back to seed candles on start.
	HistorySeedHours int `yaml:"history_seed_hours" json:"history_seed_hours" jsonschema:"title=History Seed Hours,description=Hours of history loaded on start,minimum=0" validate:"gte=0"`

	Execution  backtestv1.ExecutionParams `yaml:"execution" json:"execution" jsonschema:"title=Execution"`
	Risk       risk.Limits                `yaml:"risk" json:"risk" jsonschema:"title=Risk Limits"`
	Strategy   strategy.Params            `yaml:"strategy" json:"strategy" jsonschema:"title=Strategy"`
	Indicators indicator.Params           `yaml:"indicators" json:"indicators" jsonschema:"title=Indicators"`
}

// PollInterval returns the trading-loop tick.
func (c *LiveTradingEngineV1Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// CandleInterval returns the candle bucket size.
func (c *LiveTradingEngineV1Config) CandleInterval() time.Duration {
	return time.Duration(c.CandleIntervalMin) * time.Minute
}

// HealthCheckInterval returns the health-check tick.
func (c *LiveTradingEngineV1Config) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckIntervalSec) * time.Second
}

// Validate checks the config against its struct tags.
func (c *LiveTradingEngineV1Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid live trading config", err)
	}

	return nil
}

// GenerateSchema generates a JSON schema for the LiveTradingEngineV1Config.
func (c *LiveTradingEngineV1Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}

	schema := reflector.Reflect(c)
	schema.Title = "live-trading-engine-v1-config"
	schema.Description = "Configuration schema for LiveTradingEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the
// LiveTradingEngineV1Config.
func (c *LiveTradingEngineV1Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// DefaultConfig returns the stock GAZP live configuration.
func DefaultConfig() LiveTradingEngineV1Config {
	return LiveTradingEngineV1Config{
		Ticker:                 "GAZP",
		PollIntervalSec:        5,
		CandleIntervalMin:      5,
		HealthCheckIntervalSec: 60,
		SessionOpen:            "10:00",
		SessionClose:           "18:45",
		MaxCandles:             200,
		HistorySeedHours:       8,
		Execution: backtestv1.ExecutionParams{
			CommissionPct:    0.0003,
			SlippagePct:      0.0005,
			MaxPositionValue: 100000,
		},
		Risk:       risk.DefaultLimits(),
		Strategy:   strategy.DefaultParams(),
		Indicators: indicator.DefaultParams(),
	}
}
