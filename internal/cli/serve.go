package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rampantspark/gridwatch/internal/config"
	"github.com/rampantspark/gridwatch/internal/dashboard"
	"github.com/rampantspark/gridwatch/internal/journal"
	"github.com/rampantspark/gridwatch/internal/ratelimit"
	"github.com/rampantspark/gridwatch/internal/server"
	"github.com/rampantspark/gridwatch/internal/sysstats"
	"github.com/rampantspark/gridwatch/internal/trader"
	"github.com/rampantspark/gridwatch/internal/tradelog"
	"github.com/rampantspark/gridwatch/internal/ui"
	"github.com/rampantspark/gridwatch/internal/visitor"
)

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	c.applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.run(ctx, cfg, newLogger(cfg), nil)
}

// applyOverrides copies the command-line overrides onto cfg.
func (c *ServeCommand) applyOverrides(cfg *config.Config) {
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != "" {
		cfg.Server.Port = c.Port
	}
	if c.HomePrefix != "" {
		cfg.Dashboard.HomePrefix = c.HomePrefix
	}
	if c.TradeLog != "" {
		cfg.TradeLog.Path = c.TradeLog
	}
	if c.StateFile != "" {
		cfg.Trader.StateFile = c.StateFile
	}
	if c.Journal != "" {
		cfg.Journal.Path = c.Journal
	}
	if c.NoWatch {
		cfg.TradeLog.Watch = false
	}
	cfg.Normalize()
}

// run serves until ctx is cancelled. A nil ln makes the server listen on the
// configured address itself.
func (c *ServeCommand) run(ctx context.Context, cfg *config.Config, logger *slog.Logger, ln net.Listener) error {
	var sink visitor.Sink
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path, logger)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer j.Close()
		sink = j
	}

	visitors := visitor.NewManager(
		visitor.NewResolver(),
		visitor.NewStore(visitor.NewFrequencyTracker()),
		sink,
		logger,
	)

	limiter := ratelimit.NewLimiter(cfg.LimiterSettings())
	defer limiter.Stop()

	logs := tradelog.NewReader(cfg.TradeLog.Path, cfg.TradeLog.CacheTTL, logger)

	h := dashboard.NewHandler(dashboard.Options{
		HomePath:       cfg.HomePath(),
		RecentVisitors: cfg.Dashboard.RecentVisitors,
		PushInterval:   cfg.Dashboard.PushInterval,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Token:          cfg.Dashboard.Token,
		SecureCookie:   cfg.Dashboard.SecureCookie,
		Location:       time.Local,
	}, dashboard.Deps{
		Visitors: visitors,
		Status:   trader.NewFileSource(cfg.Trader.StateFile),
		Logs:     logs,
		System:   sysstats.NewSampler(),
		Limiter:  limiter,
	}, logger)

	srvCfg := cfg.ServerSettings()
	srv := server.New(&srvCfg, logger)
	srv.RegisterHandler(h.Routes())

	addr := srvCfg.Addr()
	if ln != nil {
		addr = ln.Addr().String()
	}
	if !c.Quiet {
		ui.PrintBanner(c.out)
		ui.PrintStartupInfo(c.out, ui.StartupInfo{
			Version:      c.version,
			Addr:         addr,
			DashboardURL: ui.BuildDashboardURL(addr, cfg.HomePath(), cfg.Dashboard.Token),
			TokenEnabled: cfg.Dashboard.Token != "",
			RateLimit:    ui.BuildRateLimitSummary(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
			TradeLog:     ui.BuildTradeLogSummary(cfg.TradeLog.Path, cfg.TradeLog.Watch, cfg.TradeLog.CacheTTL),
			StateFile:    cfg.Trader.StateFile,
			JournalMode:  ui.BuildJournalSummary(cfg.Journal.Path),
		})
	}
	logger.Info("Dashboard listening", "addr", addr, "home", cfg.HomePath())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if ln != nil {
			return srv.Serve(gctx, ln)
		}
		return srv.Run(gctx)
	})
	g.Go(func() error {
		return h.Hub().Run(gctx)
	})
	if cfg.TradeLog.Watch {
		g.Go(func() error {
			return logs.Watch(gctx)
		})
	}

	err := g.Wait()
	if !c.Quiet {
		ui.PrintShutdown(c.out)
	}
	if err != nil {
		return err
	}
	logger.Info("Dashboard stopped")
	return nil
}
