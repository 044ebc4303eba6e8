package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v2"

	"github.com/iskra-lab/iskra-trading/internal/logger"
	tradingengine "github.com/iskra-lab/iskra-trading/internal/trading/engine"
	enginev1 "github.com/iskra-lab/iskra-trading/internal/trading/engine/engine_v1"
	"github.com/iskra-lab/iskra-trading/internal/types"
	"github.com/iskra-lab/iskra-trading/internal/version"
	"github.com/iskra-lab/iskra-trading/pkg/marketdata/moex"
)

// tradingAction runs the live polling engine until interrupted.
func tradingAction(ctx context.Context, cmd *cli.Command) error {
	board := cmd.String("board")
	configPath := cmd.String("config")

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

	if baseURL := os.Getenv("MOEX_ISS_BASE_URL"); baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	client := moex.NewClient(clientConfig, zapLogger)

	engine := enginev1.NewLiveTradingEngineV1()

	if err := engine.Initialize(config); err != nil {
		return err
	}

	if err := engine.SetMarketDataClient(client); err != nil {
		return err
	}

	// external signals only request a lifecycle transition
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	onAlert := tradingengine.OnAlertCallback(func(alert types.Alert) {
		fmt.Printf("[%s] %s %s\n", alert.Time.Format(time.RFC3339), alert.Level, alert.Message)
	})
	onTrade := tradingengine.OnTradeExecutedCallback(func(trade types.ExecutedTrade) {
		fmt.Printf("%s %s %d @ %.2f (%s)\n",
			trade.Time.Format(time.RFC3339), trade.Side, trade.QtyShares, trade.ExecPrice, trade.Reason)
	})

	if err := engine.Start(runCtx, tradingengine.LiveTradingCallbacks{
		OnAlert:         &onAlert,
		OnTradeExecuted: &onTrade,
	}); err != nil {
		return err
	}

	<-runCtx.Done()

	if err := engine.Stop(); err != nil {
		return err
	}

	status := engine.Status()
	fmt.Printf("stopped: iterations=%d trades=%d errors=%d pnl=%.2f\n",
		status.Stats.Iterations,
		status.Stats.TradesExecuted,
		status.Stats.Errors,
		status.Stats.TotalPnL,
	)

	return nil
}

// schemaAction prints the engine configuration JSON schema.
func schemaAction(_ context.Context, _ *cli.Command) error {
	engine := enginev1.NewLiveTradingEngineV1()

	schema, err := engine.GetConfigSchema()
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
		Name:    "trading",
		Usage:   "Run the live intraday trading engine against MOEX ISS",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "board",
				Usage: "MOEX trading board",
				Value: "TQBR",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to engine config YAML (defaults apply when omitted)",
			},
		},
		Action: tradingAction,
		Commands: []*cli.Command{
			{
				Name:   "schema",
				Usage:  "Print the engine configuration JSON schema",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("trading failed: %v", err)
	}
}
