package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"PolyChannel/internal/di"
	"PolyChannel/pkg/config"
	applogger "PolyChannel/pkg/logger"
	"PolyChannel/pkg/util"
)

func main() {
	app := &cli.App{
		Name:  "polychannel",
		Usage: "polynomial regression channel optimizer and signal engine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "configs/config.yaml", Usage: "config file path", EnvVars: []string{"POLYCHANNEL_CONFIG"}},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "analyze one batch of assets and write the export bundle",
				Flags:  runFlags(),
				Action: runOnce,
			},
			{
				Name:   "daemon",
				Usage:  "run on the configured schedule and serve the health and trigger API",
				Action: runDaemon,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "symbols", Usage: "comma separated symbols, overrides --top"},
		&cli.IntFlag{Name: "top", Usage: "analyze the top N symbols by quote volume"},
		&cli.IntFlag{Name: "days", Usage: "lookback in days"},
		&cli.StringFlag{Name: "interval", Usage: "candle interval (1h, 4h, 1d, ...)"},
		&cli.IntFlag{Name: "degree", Usage: "first polynomial degree tried by the optimizer"},
		&cli.Float64Flag{Name: "kstd", Usage: "first band width tried by the optimizer"},
		&cli.StringFlag{Name: "objective", Usage: "sharpe_adjusted, simple_return or sharpe"},
		&cli.Int64Flag{Name: "seed", Usage: "search seed"},
		&cli.IntFlag{Name: "workers", Usage: "concurrent assets, 0 for one per CPU"},
		&cli.StringFlag{Name: "output", Usage: "export directory"},
		&cli.BoolFlag{Name: "charts", Usage: "add the channel workbook to the bundle"},
		&cli.BoolFlag{Name: "correlation", Usage: "compute the correlation matrix"},
	}
}

// loadConfig applies command flags on top of the file and environment.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadWithEnv(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	if c.IsSet("symbols") {
		cfg.Engine.Symbols = util.SplitSymbols(c.String("symbols"))
	}
	if c.IsSet("top") {
		cfg.Engine.TopN = c.Int("top")
		if !c.IsSet("symbols") {
			cfg.Engine.Symbols = nil
		}
	}
	if c.IsSet("days") {
		cfg.Engine.Days = c.Int("days")
	}
	if c.IsSet("interval") {
		cfg.Engine.Interval = c.String("interval")
	}
	if c.IsSet("degree") {
		cfg.Engine.Degree = c.Int("degree")
	}
	if c.IsSet("kstd") {
		cfg.Engine.KStd = c.Float64("kstd")
	}
	if c.IsSet("objective") {
		cfg.Engine.Objective = c.String("objective")
	}
	if c.IsSet("seed") {
		cfg.Engine.Search.Seed = c.Int64("seed")
	}
	if c.IsSet("workers") {
		cfg.Engine.Workers = c.Int("workers")
	}
	if c.IsSet("output") {
		cfg.Export.OutputDirectory = c.String("output")
	}
	if c.IsSet("charts") {
		cfg.Export.Charts = c.Bool("charts")
	}
	if c.IsSet("correlation") {
		cfg.Correlation.Enabled = c.Bool("correlation")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate flags: %w", err)
	}
	return cfg, nil
}

func runOnce(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	runner, cleanup, err := di.InitializeRunner(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := runner.UseCase.Execute(ctx, runner.Request)
	if err != nil {
		return err
	}

	s := out.Run.Summary
	runner.Logger.Info("run complete",
		applogger.String("run_id", s.RunID),
		applogger.Int("analyzed", s.TotalAssetsAnalyzed),
		applogger.Int("failed", s.TotalAssetsFailed),
		applogger.Int("buy", s.BuySignals),
		applogger.Int("sell", s.SellSignals),
		applogger.Int("hold", s.HoldSignals),
		applogger.Int("correlated_pairs", s.CorrelatedPairs),
		applogger.String("bundle", out.Manifest.Directory),
	)
	return nil
}

func runDaemon(c *cli.Context) error {
	cfg, err := config.LoadWithEnv(c.String("config"))
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	return app.Run(c.Context)
}
