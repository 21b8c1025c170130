package executor

import (
	"context"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"solana-sandwich-bot/internal/bundle"
	"solana-sandwich-bot/internal/decoder"
	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/gateway"
	"solana-sandwich-bot/internal/solana/stub"
	"solana-sandwich-bot/internal/wallet"
)

func key() string { return solanago.NewWallet().PublicKey().String() }

func signablePlan() *domain.SandwichPlan {
	keys := &domain.PoolKeys{
		AmmID: key(), Authority: key(), OpenOrders: key(), TargetOrders: key(),
		CoinVault: key(), PCVault: key(), SerumProgram: key(), Market: key(),
		Bids: key(), Asks: key(), EventQueue: key(),
		MarketCoinVault: key(), MarketPCVault: key(), VaultSigner: key(),
		CoinMint: key(), PCMint: key(),
	}
	plan := testPlan()
	plan.Swap.Program = decoder.RaydiumAMMV4
	plan.Swap.Pool = keys.AmmID
	plan.Swap.Accounts = keys
	plan.Pool.Blockhash = key()
	plan.BaseMint = keys.CoinMint
	plan.QuoteMint = keys.PCMint
	return plan
}

func TestDryRun_SimulatesWithoutSubmitting(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Slot = 101
	throttle, err := gateway.NewThrottle(100, time.Second, 10)
	if err != nil {
		t.Fatalf("NewThrottle: %v", err)
	}
	gw := gateway.New(rpc, nil, throttle, gateway.Config{ProgramID: decoder.RaydiumAMMV4}, nil)

	b, err := bundle.NewBuilder(bundle.DefaultConfig())
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	w, err := wallet.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	chain := NewDryRunChain(gw, nil)
	sink := &recordingSink{}
	coord, err := New(Options{
		Config:  Config{DryRun: true, PollInterval: time.Millisecond, TxFee: 5},
		Chain:   chain,
		Builder: b,
		Signer:  w,
		Sink:    sink,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	plan := signablePlan()
	o := coord.Execute(context.Background(), plan)
	if o == nil {
		t.Fatal("expected an outcome")
	}
	if o.Kind != domain.OutcomeBothLandedProfitable || !o.DryRun {
		t.Errorf("outcome %s (dry run %v)", o.Kind, o.DryRun)
	}
	if !o.RealizedKnown || o.RealizedProfit != plan.NetProfit {
		t.Errorf("realized %d, want expected %d", o.RealizedProfit, plan.NetProfit)
	}
	assertStates(t, sink.states(),
		domain.StateFrontSubmitted, domain.StateFrontConfirmed,
		domain.StateBackSubmitted, domain.StateBackConfirmed)

	if n := rpc.Calls("sendTransaction"); n != 0 {
		t.Errorf("dry run made %d real submissions", n)
	}
	if n := rpc.Calls("getSlot"); n != 1 {
		t.Errorf("expected one slot read for the staleness check, got %d", n)
	}

	sigs := chain.Submitted()
	if len(sigs) != 2 || sigs[0] != o.FrontSignature || sigs[1] != o.BackSignature {
		t.Errorf("simulated submissions %v, outcome %s/%s", sigs, o.FrontSignature, o.BackSignature)
	}
}

func TestDryRunChain_RejectsGarbage(t *testing.T) {
	c := NewDryRunChain(nil, nil)
	if _, err := c.Submit(context.Background(), []byte("not a transaction")); err == nil {
		t.Error("expected decode error")
	}
	if status, _ := c.GetStatus(context.Background(), "unknown"); status != domain.TxUnknown {
		t.Errorf("status %s", status)
	}
	if slot, _ := c.CurrentSlot(context.Background()); slot != 0 {
		t.Errorf("slot %d", slot)
	}
}
