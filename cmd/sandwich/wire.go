package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"solana-sandwich-bot/internal/bundle"
	cacheredis "solana-sandwich-bot/internal/cache/redis"
	"solana-sandwich-bot/internal/config"
	"solana-sandwich-bot/internal/evaluator"
	"solana-sandwich-bot/internal/executor"
	"solana-sandwich-bot/internal/gateway"
	"solana-sandwich-bot/internal/journal"
	"solana-sandwich-bot/internal/notify"
	"solana-sandwich-bot/internal/pool"
	"solana-sandwich-bot/internal/solana"
	"solana-sandwich-bot/internal/storage"
	chstore "solana-sandwich-bot/internal/storage/clickhouse"
	"solana-sandwich-bot/internal/storage/memory"
	"solana-sandwich-bot/internal/storage/migrations"
	pgstore "solana-sandwich-bot/internal/storage/postgres"
	"solana-sandwich-bot/internal/wallet"
)

// app holds the long-lived clients of one command invocation.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	gw      *gateway.Gateway
	redis   *cacheredis.Client
	closers []func()
}

// newApp connects the gateway. The WebSocket client is only dialled for the
// stream source.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, stream bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	rpc := solana.NewHTTPClient(cfg.RPC.URL,
		solana.WithTimeout(cfg.RPC.Timeout),
		solana.WithCommitment(cfg.RPC.Commitment),
	)
	throttle, err := gateway.NewThrottle(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst)
	if err != nil {
		return nil, fmt.Errorf("throttle: %w", err)
	}

	var ws solana.WSClient
	if stream {
		wsCfg := solana.DefaultWSConfig()
		wsCfg.Logger = logger
		client, err := solana.NewWSClient(ctx, cfg.RPC.WSURL, &wsCfg)
		if err != nil {
			return nil, fmt.Errorf("connect websocket: %w", err)
		}
		a.onClose(func() { _ = client.Close() })
		ws = client
	}

	a.gw = gateway.New(rpc, ws, throttle, gateway.Config{
		ProgramID:   cfg.Monitor.ProgramID,
		WaitTimeout: cfg.RPC.WaitTimeout,
		Commitment:  cfg.RPC.Commitment,
	}, logger)

	if cfg.Redis.Addr != "" {
		client, err := cacheredis.New(ctx, cacheredis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		a.onClose(func() { _ = client.Close() })
	}
	return a, nil
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases clients in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// stores are the persistence backends selected by configuration.
type stores struct {
	outcomes    storage.OutcomeStore
	transitions storage.TransitionStore
	cursors     storage.CursorStore
	evaluations storage.EvaluationStore
	database    string
}

func (a *app) openStores(ctx context.Context) (*stores, error) {
	cfg := a.cfg.Storage
	s := &stores{}

	switch cfg.Driver {
	case "postgres":
		p, err := pgstore.NewPoolWithOptions(ctx, cfg.PostgresDSN, pgstore.PoolOptions{
			MaxConns:        cfg.PostgresMaxConns,
			MaxConnLifetime: cfg.PostgresConnLife,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.onClose(p.Close)
		if cfg.RunMigrations {
			if _, err := migrations.RunPostgresMigrations(ctx, p, a.logger); err != nil {
				return nil, err
			}
		}
		s.outcomes = pgstore.NewOutcomeStore(p)
		s.transitions = pgstore.NewTransitionStore(p)
		s.cursors = pgstore.NewCursorStore(p)
		s.database = "postgres"
	default:
		s.outcomes = memory.NewOutcomeStore()
		s.transitions = memory.NewTransitionStore()
		s.cursors = memory.NewCursorStore()
		s.database = "memory"
	}

	if cfg.ClickhouseDSN != "" {
		var (
			conn *chstore.Conn
			err  error
		)
		if cfg.RunMigrations {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, a.logger)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
		}
		if err != nil {
			return nil, fmt.Errorf("connect clickhouse: %w", err)
		}
		a.onClose(func() { _ = conn.Close() })
		s.evaluations = chstore.NewEvaluationStore(conn)
	}
	return s, nil
}

// poolProvider reads reserves through the gateway behind a Redis or
// in-process snapshot cache.
func (a *app) poolProvider() pool.Provider {
	var cache pool.Cache = pool.NewMemoryCache()
	if a.redis != nil {
		cache = cacheredis.NewPoolCache(a.redis, a.cfg.Redis.PoolCacheTTL)
	}
	return pool.NewCachedProvider(pool.NewFetcher(a.gw), cache, a.cfg.Monitor.PoolMaxAge, a.logger)
}

// walletLock is shared through Redis when configured, otherwise nil so the
// coordinator falls back to its in-process lock.
func (a *app) walletLock() executor.WalletLock {
	if a.redis == nil {
		return nil
	}
	return cacheredis.NewWalletLock(a.redis)
}

// signer loads the trading wallet. Dry runs without a configured key sign
// with a throwaway keypair.
func (a *app) signer() (*wallet.Wallet, error) {
	w, err := wallet.Load(wallet.Source{KeygenFile: a.cfg.Wallet.KeygenFile, Base58: a.cfg.Wallet.Base58})
	if errors.Is(err, wallet.ErrNoKey) && a.cfg.Execution.DryRun {
		w, err = wallet.Generate()
		if err == nil {
			a.logger.Warn("no wallet configured, dry run signs with an ephemeral key", zap.String("wallet", w.String()))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	return w, nil
}

func (a *app) builder() (*bundle.Builder, error) {
	s := a.cfg.Strategy
	return bundle.NewBuilder(bundle.Config{
		ProgramID:        a.cfg.Monitor.ProgramID,
		SlippageBps:      s.SlippageBps,
		ComputeUnitLimit: s.ComputeUnitLimit,
		ComputeUnitPrice: s.ComputeUnitPrice,
	})
}

// alerter fans outcome alerts out to the log and any configured chat.
func (a *app) alerter() *notify.OutcomeAlerter {
	n := a.cfg.Notify
	senders := []notify.Sender{notify.NewLogSender(a.logger)}
	if n.TelegramToken != "" {
		senders = append(senders, notify.NewTelegramSender(n.TelegramToken, n.TelegramChatID, n.TelegramBaseURL))
	}
	if n.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(n.DiscordWebhookURL))
	}
	notifier := notify.NewNotifier(senders, n.Events, a.logger, notify.WithRetry(n.RetryAttempts, n.RetryBackoff))
	return notify.NewOutcomeAlerter(notifier)
}

// journal opens the event journal, or returns nil when disabled.
func (a *app) journal(ctx context.Context) (*journal.Writer, error) {
	j := a.cfg.Journal
	if j.Dir == "" {
		return nil, nil
	}
	opts := journal.Options{Dir: j.Dir, MaxBytes: j.MaxBytes, MaxAge: j.MaxAge, Logger: a.logger}
	if j.S3.Bucket != "" {
		archiver, err := journal.NewS3Archiver(ctx, journal.S3Config{
			Endpoint:       j.S3.Endpoint,
			Region:         j.S3.Region,
			Bucket:         j.S3.Bucket,
			Prefix:         j.S3.Prefix,
			AccessKey:      j.S3.AccessKey,
			SecretKey:      j.S3.SecretKey,
			UseSSL:         j.S3.UseSSL,
			ForcePathStyle: j.S3.ForcePathStyle,
			RemoveLocal:    j.S3.RemoveLocal,
		})
		if err != nil {
			return nil, err
		}
		opts.Archiver = archiver
	}
	return journal.NewWriter(opts)
}

func strategyParams(s config.StrategyConfig) evaluator.Params {
	return evaluator.Params{
		MaxTradeSize: s.MaxTradeSize,
		MinMargin:    s.MinMargin,
		FeeBps:       s.FeeBps,
		TxFee:        s.TxFee,
		ToleranceBps: s.ToleranceBps,
		GridSteps:    s.GridSteps,
	}
}

func executorConfig(cfg *config.Config) executor.Config {
	e := cfg.Execution
	return executor.Config{
		MaxInFlight:    e.MaxInFlight,
		PollInterval:   e.PollInterval,
		ConfirmTimeout: e.ConfirmTimeout,
		MaxSlotLag:     e.MaxSlotLag,
		TxFee:          cfg.Strategy.TxFee,
		DryRun:         e.DryRun,
		LockTTL:        e.LockTTL,
	}
}
