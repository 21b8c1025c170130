package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-sandwich-bot/internal/decoder"
	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/evaluator"
	"solana-sandwich-bot/internal/pool"
)

// evaluation is one line of `sandwich evaluate` output.
type evaluation struct {
	Swap   domain.SwapRecord    `json:"swap"`
	Pool   *domain.PoolState    `json:"pool,omitempty"`
	Plan   *domain.SandwichPlan `json:"plan,omitempty"`
	Reason domain.RejectReason  `json:"reason,omitempty"`
	Error  string               `json:"error,omitempty"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(cmd.Context(), cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	swaps, err := decodeSignature(cmd.Context(), a, args[0])
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), swaps)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(cmd.Context(), cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	swaps, err := decodeSignature(cmd.Context(), a, args[0])
	if err != nil {
		return err
	}
	results := evaluateSwaps(cmd.Context(), pool.NewFetcher(a.gw), swaps, strategyParams(cfg.Strategy))
	for _, r := range results {
		if r.Plan != nil {
			logger.Info("sandwich plan",
				zap.Uint64("front_in", r.Plan.FrontIn),
				zap.Int64("net_profit", r.Plan.NetProfit),
				zap.String("victim_price", r.Plan.VictimPrice().String()),
			)
		}
	}
	return writeJSON(cmd.OutOrStdout(), results)
}

func decodeSignature(ctx context.Context, a *app, signature string) ([]domain.SwapRecord, error) {
	tx, err := a.gw.FetchTransaction(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", signature, err)
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction %s not found", signature)
	}
	swaps, err := decoder.NewForProgram(a.cfg.Monitor.ProgramID).Decode(tx)
	if err != nil {
		if len(swaps) == 0 {
			return nil, err
		}
		a.logger.Warn("some swap instructions did not decode", zap.String("signature", signature), zap.Error(err))
	}
	return swaps, nil
}

// evaluateSwaps sizes a sandwich around each swap against a fresh snapshot.
// Failures are reported per swap.
func evaluateSwaps(ctx context.Context, pools pool.Provider, swaps []domain.SwapRecord, params evaluator.Params) []evaluation {
	out := make([]evaluation, 0, len(swaps))
	for _, swap := range swaps {
		res := evaluation{Swap: swap}
		state, err := pools.Snapshot(ctx, swap)
		if err != nil {
			res.Reason = domain.RejectNoReserves
			res.Error = err.Error()
			out = append(out, res)
			continue
		}
		res.Pool = &state
		res.Plan, res.Reason = evaluator.Evaluate(swap, state, params)
		out = append(out, res)
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
