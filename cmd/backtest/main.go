package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v2"

	backtestengine "github.com/iskra-lab/iskra-trading/internal/backtest/engine"
	enginev1 "github.com/iskra-lab/iskra-trading/internal/backtest/engine/engine_v1"
	"github.com/iskra-lab/iskra-trading/internal/logger"
	"github.com/iskra-lab/iskra-trading/internal/version"
	"github.com/iskra-lab/iskra-trading/pkg/marketdata/moex"
)

// backtestAction fetches candles from MOEX ISS and replays them through the
// backtest engine.
func backtestAction(ctx context.Context, cmd *cli.Command) error {
	ticker := cmd.String("ticker")
	board := cmd.String("board")
	from := cmd.Timestamp("from")
	interval := cmd.Int("interval")
	configPath := cmd.String("config")
	resultsFolder := cmd.String("results")

	defaults, err := yaml.Marshal(enginev1.DefaultConfig())
	if err != nil {
		return err
	}

	config := string(defaults)

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		config = string(data)
	}

	zapLogger, err := logger.NewLogger()
	if err != nil {
		return err
	}

	clientConfig := moex.DefaultConfig()
	clientConfig.Board = board

	client := moex.NewClient(clientConfig, zapLogger)

	candles, err := client.GetHistoricalCandles(ctx, ticker, from, int(interval))
	if err != nil {
		return fmt.Errorf("failed to fetch candles: %w", err)
	}

	backtester := enginev1.NewBacktestEngineV1()

	if err := backtester.Initialize(config); err != nil {
		return err
	}

	if err := backtester.SetCandles(candles); err != nil {
		return err
	}

	if err := backtester.SetResultsFolder(resultsFolder); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	onStart := backtestengine.OnRunStartCallback(func(runID string, totalBars int) error {
		bar = progressbar.Default(int64(totalBars))
		bar.Describe(fmt.Sprintf("Replaying %s (%s)", ticker, runID[:8]))

		return nil
	})
	onProcess := backtestengine.OnProcessDataCallback(func(current, total int) error {
		return bar.Add(1)
	})
	onEnd := backtestengine.OnRunEndCallback(func(runID, resultFolderPath string) {
		fmt.Printf("\nrun %s finished, results in %s\n", runID, resultFolderPath)
	})

	if err := backtester.Run(ctx, backtestengine.LifecycleCallbacks{
		OnRunStart:    &onStart,
		OnProcessData: &onProcess,
		OnRunEnd:      &onEnd,
	}); err != nil {
		return err
	}

	result, err := backtester.Result()
	if err != nil {
		return err
	}

	fmt.Printf("trades=%d pnl=%.2f win_rate=%.2f sharpe=%.3f max_drawdown=%.2f\n",
		result.Stats.TradesCount,
		result.Stats.RealizedPnL,
		result.Stats.WinRate,
		result.Stats.Sharpe,
		result.Stats.MaxDrawdown,
	)

	return nil
}

// schemaAction prints the engine configuration JSON schema.
func schemaAction(_ context.Context, _ *cli.Command) error {
	backtester := enginev1.NewBacktestEngineV1()

	schema, err := backtester.GetConfigSchema()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func main() {
	// .env is optional, flags and defaults cover everything
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:    "backtest",
		Usage:   "Replay MOEX candles through the trading strategy",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "ticker",
				Aliases: []string{"t"},
				Usage:   "Instrument ticker",
				Value:   "GAZP",
			},
			&cli.StringFlag{
				Name:  "board",
				Usage: "MOEX trading board",
				Value: "TQBR",
			},
			&cli.TimestampFlag{
				Name:    "from",
				Aliases: []string{"f"},
				Usage:   "Start date in `YYYY-MM-DD` format",
				Value:   time.Now().AddDate(0, 0, -30),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.IntFlag{
				Name:  "interval",
				Usage: "Candle interval in minutes",
				Value: 5,
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to engine config YAML (defaults apply when omitted)",
			},
			&cli.StringFlag{
				Name:    "results",
				Aliases: []string{"r"},
				Usage:   "Results output folder",
				Value:   "results",
			},
		},
		Action: backtestAction,
		Commands: []*cli.Command{
			{
				Name:   "schema",
				Usage:  "Print the engine configuration JSON schema",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("backtest failed: %v", err)
	}
}
