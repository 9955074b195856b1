package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/0xayot/davids-sling/internal/api"
	"github.com/0xayot/davids-sling/internal/audit"
	"github.com/0xayot/davids-sling/internal/config"
	"github.com/0xayot/davids-sling/internal/dexscreener"
	"github.com/0xayot/davids-sling/internal/execution"
	"github.com/0xayot/davids-sling/internal/jobs"
	"github.com/0xayot/davids-sling/internal/launch"
	"github.com/0xayot/davids-sling/internal/lock"
	"github.com/0xayot/davids-sling/internal/notify"
	"github.com/0xayot/davids-sling/internal/observability"
	"github.com/0xayot/davids-sling/internal/pricecache"
	"github.com/0xayot/davids-sling/internal/pricefeed"
	"github.com/0xayot/davids-sling/internal/raydium"
	"github.com/0xayot/davids-sling/internal/solana"
	"github.com/0xayot/davids-sling/internal/stoploss"
	"github.com/0xayot/davids-sling/internal/storage"
	"github.com/0xayot/davids-sling/internal/storage/memory"
	"github.com/0xayot/davids-sling/internal/storage/migrations"
	"github.com/0xayot/davids-sling/internal/storage/postgres"
	"github.com/0xayot/davids-sling/internal/vault"
	"github.com/0xayot/davids-sling/internal/watchlist"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (defaults apply when empty)")
	useMemory := flag.Bool("memory", false, "use in-memory stores regardless of config")
	flag.Parse()

	// Best effort: a missing .env is normal in production.
	_ = godotenv.Load()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			setupLogging(cfg.General)
			log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
		}
		cfg = loaded
	}
	if *useMemory {
		cfg.Storage.Driver = "memory"
	}
	setupLogging(cfg.General)

	log.Info().
		Str("instance_id", cfg.General.InstanceID).
		Str("environment", cfg.General.Environment).
		Bool("dry_run", cfg.General.DryRun).
		Str("storage", cfg.Storage.Driver).
		Msg("Configuration loaded")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("sling exited with error")
	}
	log.Info().Msg("sling: shutdown complete")
}

func setupLogging(g config.GeneralConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	level, err := zerolog.ParseLevel(strings.ToLower(g.LogLevel))
	if err != nil || g.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var base zerolog.Logger
	if g.LogFormat == "console" {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		base = zerolog.New(os.Stdout)
	}
	log.Logger = base.With().
		Timestamp().
		Str("service", "sling").
		Str("instance", g.InstanceID).
		Logger()
}

func run(ctx context.Context, cfg *config.Config) error {
	reg := observability.SlingMetrics()
	health := observability.NewHealthMonitor(5 * time.Second)
	tuning := config.EnvTuning{}

	t, err := tuning.Tuning()
	if err != nil {
		return err
	}
	if t.WebhookKey == "" {
		log.Warn().Msg("DAVIDS_SIGHT_KEY is not set; the webhook rejects every request")
	}

	// ---- storage ----
	stores, closeStores, err := openStores(ctx, cfg.Storage, health)
	if err != nil {
		return err
	}
	defer closeStores()

	// ---- chain + market data ----
	rpc := solana.NewLiveRPCClient(solana.RPCConfig{
		Endpoint:     cfg.Solana.RPCEndpoint,
		WSEndpoint:   cfg.Solana.WSEndpoint,
		Timeout:      cfg.Solana.Timeout,
		MaxRetries:   cfg.Solana.MaxRetries,
		RateLimitRPS: float64(cfg.Solana.RateLimitRPS),
	})
	defer rpc.Close()
	health.Register("rpc", observability.ErrorCheck(observability.StatusUnhealthy, rpc.Health))

	cache := pricecache.New(nil)
	rcfg := raydium.DefaultConfig()
	rcfg.APIURL = cfg.Raydium.APIURL
	rcfg.SwapURL = cfg.Raydium.SwapURL
	rcfg.Timeout = cfg.Raydium.Timeout
	ray := raydium.New(rcfg, cache, nil)
	ray.SetFeeFallback(rpc)
	dex := dexscreener.New(cfg.Dexscreener.BaseURL, cfg.Dexscreener.Timeout)

	// ---- execution ----
	keys := vault.New(func() (string, error) {
		t, err := tuning.Tuning()
		return t.WalletSecret, err
	})

	var (
		sender   execution.Sender       = rpc
		statuses execution.StatusSource = rpc
		confirm  execution.Confirmer
	)
	if cfg.General.DryRun {
		paper := execution.NewPaperSender()
		sender, statuses = paper, paper
		log.Warn().Msg("dry run: transactions are signed but never broadcast")
	}
	switch {
	case cfg.Execution.ConfirmMode == "websocket" && !cfg.General.DryRun:
		confirm = solana.NewSignatureSubscriber(cfg.Solana.WSEndpoint, cfg.Execution.ConfirmTimeout)
	default:
		confirm = execution.NewPollingConfirmer(statuses, cfg.Execution.PollInterval, cfg.Execution.ConfirmTimeout)
	}
	submitter := execution.NewSubmitter(sender, execution.SubmitterConfig{
		MaxAttempts: cfg.Execution.MaxAttempts,
		RetryDelay:  cfg.Execution.RetryDelay,
	}, reg)
	trail := audit.NewTrail(stores.Transactions, 1024)
	executor := execution.NewExecutor(ray, keys, submitter, confirm, trail, reg)

	// ---- coordination + notifications ----
	var locker lock.Locker = lock.NewMemory()
	if cfg.Redis.Enabled {
		rl := lock.NewRedis(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rl.Ping(ctx); err != nil {
			return err
		}
		defer rl.Close()
		health.Register("redis", observability.ErrorCheck(observability.StatusDegraded, rl.Ping))
		locker = rl
	}

	var notifier notify.Notifier = notify.Log{}
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram.Token)
		if err != nil {
			return err
		}
		notifier = tg
	}

	// ---- engine ----
	evaluator := stoploss.New(stoploss.Config{
		Concurrency:     cfg.StopLoss.Concurrency,
		LockTTL:         cfg.StopLoss.LockTTL,
		SellSlippageBps: cfg.Execution.SellSlippageBps,
	}, stoploss.Deps{
		Orders:   stores.Orders,
		Tokens:   stores.Tokens,
		Prices:   stores.Prices,
		Launches: stores.Launches,
		Users:    stores.Users,
		Quotes:   ray,
		Balances: rpc,
		Trader:   executor,
		Notifier: notifier,
		Locker:   locker,
		Tuning:   tuning,
		Metrics:  reg,
	})

	lcfg := launch.DefaultConfig()
	lcfg.MetadataRetryDelay = cfg.Launch.MetadataRetryDelay
	lcfg.BuyConcurrency = cfg.Launch.BuyConcurrency
	lcfg.BuySlippageBps = cfg.Execution.BuySlippageBps
	launches := launch.New(lcfg, launch.Deps{
		Launches: stores.Launches,
		Users:    stores.Users,
		Wallets:  stores.Wallets,
		Prices:   ray,
		Meta:     dex,
		Balances: rpc,
		Trader:   executor,
		Orders:   evaluator,
		Notifier: notifier,
		Tuning:   tuning,
		Metrics:  reg,
	})

	registrar := watchlist.New(stores.Wallets, rpc, ray, evaluator, tuning, cfg.StopLoss.Concurrency)
	feed := pricefeed.New(pricefeed.Deps{
		Orders:   stores.Orders,
		Launches: stores.Launches,
		Tokens:   stores.Tokens,
		Prices:   stores.Prices,
		Lister:   ray,
		Guard:    evaluator,
		Sweeper:  evaluator,
		Metrics:  reg,
	})

	// Launch handling and jobs outlive the signal until they drain or the
	// shutdown deadline passes.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	// ---- jobs ----
	runner := jobs.New(workCtx)
	for _, j := range []struct {
		name, spec string
		job        jobs.Job
	}{
		{"pricefeed", cfg.Jobs.PriceFeed, func(ctx context.Context) error { _, err := feed.Refresh(ctx); return err }},
		{"stoploss", cfg.Jobs.StopLoss, func(ctx context.Context) error { _, err := evaluator.Sweep(ctx); return err }},
		{"watchlist", cfg.Jobs.Watchlist, func(ctx context.Context) error { _, err := registrar.RunAll(ctx); return err }},
		{"metadata", cfg.Jobs.Metadata, func(ctx context.Context) error { _, err := launches.BackfillMetadata(ctx); return err }},
		{"rugwatch", cfg.Jobs.RugWatcher, func(ctx context.Context) error { _, err := launches.WatchRugs(ctx); return err }},
	} {
		if err := runner.Add(j.name, j.spec, j.job); err != nil {
			return err
		}
	}
	runner.Start()

	// ---- http ----
	server := api.New(workCtx, api.Deps{
		Launches: launches,
		Tuning:   tuning,
		Health:   health,
		Metrics:  reg,
		Audit:    trail,
		Jobs:     runner,
	})
	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("sling: http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Warn().Msg("sling: shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	// Stop intake first, then drain launch handling and jobs.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("sling: http shutdown")
	}
	if err := server.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("sling: launch events still running at shutdown, cancelling")
		cancelWork()
	}
	runner.Stop(shutdownCtx)
	return nil
}

func openStores(ctx context.Context, sc config.StorageConfig, health *observability.HealthMonitor) (storage.Stores, func(), error) {
	if sc.Driver == "memory" {
		log.Warn().Msg("storage: using in-memory stores; nothing survives a restart")
		return memory.NewStores().Bundle(), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, sc.PostgresDSN)
	if err != nil {
		return storage.Stores{}, nil, err
	}
	if sc.Migrate {
		if err := postgres.Migrate(ctx, pool, migrations.PostgresFS, "postgres"); err != nil {
			pool.Close()
			return storage.Stores{}, nil, err
		}
	}
	health.Register("storage", observability.ErrorCheck(observability.StatusUnhealthy, pool.Ping))
	return postgres.NewStores(pool), pool.Close, nil
}
