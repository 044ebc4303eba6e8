package engine

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/iskra-lab/iskra-trading/internal/indicator"
	"github.com/iskra-lab/iskra-trading/internal/risk"
	"github.com/iskra-lab/iskra-trading/internal/strategy"
	"github.com/iskra-lab/iskra-trading/pkg/errors"
)

// ExecutionParams holds the fill-model settings shared by backtest and live
// trading.
type ExecutionParams struct {
	CommissionPct    float64 `yaml:"commission_pct" json:"commission_pct" jsonschema:"title=Commission,description=Commission rate charged per side,minimum=0" validate:"gte=0"`
	SlippagePct      float64 `yaml:"slippage_pct" json:"slippage_pct" jsonschema:"title=Slippage,description=Relative slippage applied to the fill price,minimum=0" validate:"gte=0"`
	MaxPositionValue float64 `yaml:"max_position_value" json:"max_position_value" jsonschema:"title=Max Position Value,description=Position notional cap in account currency,minimum=0" validate:"required,gt=0"`
}

// BacktestEngineV1Config configures one backtest run.
type BacktestEngineV1Config struct {
	Ticker     string           `yaml:"ticker" json:"ticker" jsonschema:"title=Ticker,description=Instrument ticker" validate:"required"`
	LotSize    int64            `yaml:"lot_size" json:"lot_size" jsonschema:"title=Lot Size,description=Shares per lot,minimum=1" validate:"required,gt=0"`
	Execution  ExecutionParams  `yaml:"execution" json:"execution" jsonschema:"title=Execution"`
	Risk       risk.Limits      `yaml:"risk" json:"risk" jsonschema:"title=Risk Limits"`
	Strategy   strategy.Params  `yaml:"strategy" json:"strategy" jsonschema:"title=Strategy"`
	Indicators indicator.Params `yaml:"indicators" json:"indicators" jsonschema:"title=Indicators"`
}

// Validate checks the config against its struct tags.
func (c *BacktestEngineV1Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid backtest config", err)
	}

	return nil
}

// GenerateSchema generates a JSON schema for the BacktestEngineV1Config.
func (c *BacktestEngineV1Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}

	schema := reflector.Reflect(c)
	schema.Title = "backtest-engine-v1-config"
	schema.Description = "Configuration schema for BacktestEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the
// BacktestEngineV1Config.
func (c *BacktestEngineV1Config) GenerateSchemaJSON() (string, error) {
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

// DefaultConfig returns the stock GAZP backtest configuration.
func DefaultConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		Ticker:  "GAZP",
		LotSize: 10,
		Execution: ExecutionParams{
			CommissionPct:    0.0003,
			SlippagePct:      0.0005,
			MaxPositionValue: 100000,
		},
		Risk:       risk.DefaultLimits(),
		Strategy:   strategy.DefaultParams(),
		Indicators: indicator.DefaultParams(),
	}
}
