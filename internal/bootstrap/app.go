// Package bootstrap wires configuration, logging, telemetry and the trading
// components into a runnable application.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"paper_trader/internal/core"
	"paper_trader/internal/inbound"
	"paper_trader/internal/infrastructure/metrics"
	"paper_trader/internal/notify"
	"paper_trader/internal/quote"
	"paper_trader/internal/storage"
	"paper_trader/internal/trader"
	phttp "paper_trader/pkg/http"
	"paper_trader/pkg/telemetry"
)

// App holds the wired application.
type App struct {
	Cfg    *Config
	Logger core.Logger
	Trader *trader.Trader

	states    core.StateStore
	notifyMgr *notify.Manager
	telemetry *telemetry.Telemetry
	metrics   *metrics.Server
}

// NewApp bootstraps every dependency from the config file.
func NewApp(configPath string) (*App, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := InitLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	tel, err := telemetry.Setup("paper_trader")
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	requestTimeout := time.Duration(cfg.Timing.RequestTimeoutSeconds) * time.Second

	states, err := storage.NewStateStore(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		return nil, fmt.Errorf("state store: %w", err)
	}

	notifyMgr := notify.NewManager(logger)

	var source core.Source
	switch cfg.App.Source {
	case "github":
		client := inbound.NewGitHubClient(cfg.GitHub, requestTimeout)
		source = inbound.NewGitHubSource(client, states, cfg.GitHub, cfg.Trading.CommandSigil, logger)
	default:
		client := inbound.NewDiscordClient(cfg.Discord, requestTimeout)
		source = inbound.NewDiscordSource(client, states, cfg.Discord, logger)
		notifyMgr.AddRequired(notify.NewBotChannel(client, cfg.Discord.ChannelID))
	}
	if cfg.Discord.WebhookURL.Value() != "" {
		notifyMgr.AddOptional(notify.NewWebhookChannel(cfg.Discord.WebhookURL.Value(), requestTimeout))
	}

	quoteClient := phttp.NewClient(cfg.Quotes.BaseURL, requestTimeout, cfg.Quotes.RequestsPerSecond, nil)
	quotes := quote.NewYahooProvider(quoteClient, logger)

	defaultCash := decimal.NewFromFloat(cfg.Trading.DefaultCash)
	portfolios := storage.NewJSONPortfolioStore(cfg.Trading.PortfolioFile, defaultCash, logger)
	ledger := storage.NewCSVLedger(cfg.Trading.LedgerFile)
	allowlistFile := cfg.Trading.AllowlistFile

	tr := trader.New(cfg, trader.Deps{
		Source:     source,
		Quotes:     quotes,
		Portfolios: portfolios,
		Ledger:     ledger,
		Notifier:   notifyMgr,
		Allowlist:  func() (core.Allowlist, error) { return storage.LoadAllowlist(allowlistFile) },
		Logger:     logger,
	})

	app := &App{
		Cfg:       cfg,
		Logger:    logger,
		Trader:    tr,
		states:    states,
		notifyMgr: notifyMgr,
		telemetry: tel,
	}
	if cfg.Telemetry.EnableMetrics {
		app.metrics = metrics.NewServer(cfg.Telemetry.MetricsPort, logger)
	}
	return app, nil
}

// Run executes the trader until a termination signal arrives. With once set
// it runs a single cycle and exits, which suits cron-style scheduling.
func (a *App) Run(once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.close()

	if a.metrics != nil {
		a.metrics.Start()
	}

	a.Logger.Info("starting paper trader",
		"source", a.Cfg.App.Source,
		"mode", a.Cfg.App.Mode,
		"once", once,
	)

	if once {
		return a.Trader.RunCycle(ctx)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Trader.RunLoop(ctx)
	})

	err := g.Wait()
	if err != nil && err != context.Canceled {
		a.Logger.Error("application stopped with error", "error", err.Error())
		return err
	}
	a.Logger.Info("application shut down gracefully")
	return nil
}

func (a *App) close() {
	a.notifyMgr.Close()

	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metrics.Stop(ctx); err != nil {
			a.Logger.Warn("metrics server stop failed", "error", err.Error())
		}
		cancel()
	}

	if err := a.states.Close(); err != nil {
		a.Logger.Warn("state store close failed", "error", err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.Logger.Warn("telemetry shutdown failed", "error", err.Error())
	}
}
