package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"solana-sandwich-bot/internal/config"
	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/evaluator"
	"solana-sandwich-bot/internal/journal"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"run", "decode", "evaluate", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %s not registered: %v", name, err)
		}
	}
	if root.PersistentFlags().Lookup("dry-run") == nil {
		t.Error("dry-run flag not registered")
	}
}

func TestMetricsMux(t *testing.T) {
	srv := httptest.NewServer(newMetricsMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("/health = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "go_goroutines") {
		t.Errorf("/metrics = %d", resp.StatusCode)
	}
}

func TestServeMetrics_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveMetrics(ctx, "127.0.0.1:0", zap.NewNop()) }()
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("serveMetrics returned %v", err)
	}
}

type fixedPools struct {
	state domain.PoolState
	err   error
}

func (p fixedPools) Snapshot(context.Context, domain.SwapRecord) (domain.PoolState, error) {
	return p.state, p.err
}

func victim(sig string, minOut uint64) domain.SwapRecord {
	return domain.SwapRecord{
		Pool: "pool", InputMint: "COIN", OutputMint: "PC",
		AmountIn: 10_000, MinimumOut: minOut, Signature: sig, Slot: 100, Kind: domain.SwapBaseIn,
	}
}

func TestEvaluateSwaps(t *testing.T) {
	pools := fixedPools{state: domain.PoolState{
		Pool: "pool", CoinMint: "COIN", PCMint: "PC",
		CoinReserve: 1_000_000, PCReserve: 1_000_000, FeeBps: 30, Slot: 100, Blockhash: "blockhash",
	}}
	params := evaluator.Params{MaxTradeSize: 50_000, MinMargin: 5, TxFee: 5}

	got := evaluateSwaps(context.Background(), pools, []domain.SwapRecord{victim("ok", 9_800), victim("tight", 9_872)}, params)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Plan == nil || got[0].Plan.NetProfit <= 0 || got[0].Pool == nil {
		t.Errorf("expected a profitable plan, got %+v", got[0])
	}
	if got[1].Plan != nil || got[1].Reason != domain.RejectVictimSlippage {
		t.Errorf("expected victim_slippage, got %+v", got[1])
	}

	failing := fixedPools{err: errors.New("rpc down")}
	got = evaluateSwaps(context.Background(), failing, []domain.SwapRecord{victim("ok", 9_800)}, params)
	if got[0].Reason != domain.RejectNoReserves || got[0].Error != "rpc down" || got[0].Pool != nil {
		t.Errorf("expected no_reserves with error, got %+v", got[0])
	}
}

func TestJournalSink_FiltersKinds(t *testing.T) {
	jw, err := journal.NewWriter(journal.Options{Dir: filepath.Join(t.TempDir(), "journal")})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer jw.Close()

	if sink := journalSink(jw, nil); sink != domain.EventSink(jw) {
		t.Error("no kinds must return the writer itself")
	}

	sink := journalSink(jw, []string{"outcome"})
	sink.Emit(context.Background(), domain.Event{Kind: domain.EventSwapDecoded})
	if jw.Path() != "" {
		t.Error("filtered event opened a journal file")
	}
	sink.Emit(context.Background(), domain.Event{Kind: domain.EventOutcome, Outcome: &domain.ExecutionOutcome{BundleID: "b"}})
	if jw.Path() == "" {
		t.Error("outcome event not journaled")
	}
}

func TestConfigMapping(t *testing.T) {
	cfg, err := config.Load(config.LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Strategy.MaxTradeSize = 50_000
	cfg.Strategy.TxFee = 7
	cfg.Execution.MaxInFlight = 2

	p := strategyParams(cfg.Strategy)
	if p.MaxTradeSize != 50_000 || p.TxFee != 7 || !p.Validate() {
		t.Errorf("params %+v", p)
	}
	e := executorConfig(cfg)
	if e.MaxInFlight != 2 || e.TxFee != 7 || !e.DryRun {
		t.Errorf("executor config %+v", e)
	}
}

func TestSigner_DryRunGeneratesKey(t *testing.T) {
	cfg, err := config.Load(config.LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	a := &app{cfg: cfg, logger: zap.NewNop()}
	w, err := a.signer()
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	if w.String() == "" {
		t.Error("expected a wallet address")
	}

	cfg.Execution.DryRun = false
	if _, err := a.signer(); err == nil {
		t.Error("live mode without a key must fail")
	}
}
