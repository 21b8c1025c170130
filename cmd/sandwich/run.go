package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-sandwich-bot/internal/decoder"
	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/events"
	"solana-sandwich-bot/internal/executor"
	"solana-sandwich-bot/internal/monitor"
	"solana-sandwich-bot/internal/observability"
	"solana-sandwich-bot/internal/storage"
)

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream := cfg.Monitor.Source == "stream"
	a, err := newApp(ctx, cfg, logger, stream)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}

	signer, err := a.signer()
	if err != nil {
		return err
	}
	builder, err := a.builder()
	if err != nil {
		return err
	}
	jw, err := a.journal(ctx)
	if err != nil {
		return err
	}

	recorder := storage.NewRecorder(storage.RecorderOptions{
		Evaluations:   st.evaluations,
		Transitions:   st.transitions,
		BatchSize:     cfg.Storage.BatchSize,
		FlushInterval: cfg.Storage.FlushInterval,
		Database:      st.database,
		Logger:        logger,
	})

	sinks := []domain.EventSink{
		observability.NewLogSink(logger),
		observability.NewMetricsSink(nil),
		recorder,
	}
	if jw != nil {
		sinks = append(sinks, journalSink(jw, cfg.Journal.Kinds))
	}
	sink := events.NewMulti(sinks...)

	var chain executor.Chain = a.gw
	if cfg.Execution.DryRun {
		chain = executor.NewDryRunChain(a.gw, logger)
	}
	coord, err := executor.New(executor.Options{
		Config:   executorConfig(cfg),
		Chain:    chain,
		Builder:  builder,
		Signer:   signer,
		Lock:     a.walletLock(),
		Outcomes: st.outcomes,
		Alerter:  a.alerter(),
		Sink:     sink,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	var source monitor.Source
	if stream {
		source = monitor.NewStreamSource(a.gw, logger)
	} else {
		source = monitor.NewPollSource(a.gw, monitor.PollSourceOptions{
			Interval: cfg.Monitor.PollInterval,
			Limit:    cfg.Monitor.PollLimit,
			Cursors:  st.cursors,
			Logger:   logger,
		})
	}
	mon, err := monitor.New(monitor.Options{
		Source:       source,
		Decoder:      decoder.NewForProgram(cfg.Monitor.ProgramID),
		Pools:        a.poolProvider(),
		Params:       strategyParams(cfg.Strategy),
		Dispatcher:   coord,
		Sink:         sink,
		Logger:       logger,
		ErrorBackoff: cfg.Monitor.ErrorBackoff,
		SeenSize:     cfg.Monitor.SeenSize,
	})
	if err != nil {
		return err
	}

	logger.Info("sandwich bot starting",
		zap.String("rpc", cfg.RPC.URL),
		zap.String("source", cfg.Monitor.Source),
		zap.String("storage", st.database),
		zap.Bool("dry_run", cfg.Execution.DryRun),
		zap.String("wallet", signer.String()),
		zap.Bool("redis", a.redis != nil),
		zap.Bool("journal", jw != nil),
	)

	// The recorder outlives the pipeline so events emitted while bundles
	// finish are still persisted.
	recCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	recDone := make(chan error, 1)
	go func() { recDone <- recorder.Run(recCtx) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return coord.Run(gctx) })
	g.Go(func() error { return mon.Run(gctx) })
	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.Metrics.Addr, logger) })
	}
	runErr := g.Wait()

	stopRecorder()
	<-recDone
	if jw != nil {
		if err := jw.Close(); err != nil {
			logger.Warn("close journal", zap.Error(err))
		}
	}
	if n := recorder.Dropped(); n > 0 {
		logger.Warn("recorder dropped events", zap.Int("dropped", n))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("sandwich bot stopped", zap.Error(runErr))
		return runErr
	}
	logger.Info("sandwich bot stopped")
	return nil
}

// journalSink restricts the journal to kinds when any are configured.
func journalSink(jw domain.EventSink, kinds []string) domain.EventSink {
	if len(kinds) == 0 {
		return jw
	}
	ks := make([]domain.EventKind, len(kinds))
	for i, k := range kinds {
		ks[i] = domain.EventKind(k)
	}
	return events.Only(jw, ks...)
}
