// Package bundle turns sandwich plans into signed front/back transactions.
package bundle

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"solana-sandwich-bot/internal/decoder"
	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/solana"
)

// Signer signs transactions for one wallet. Key material stays behind it.
type Signer interface {
	PublicKey() solanago.PublicKey
	SignTransaction(tx *solanago.Transaction) error
}

// Compute budget instruction tags.
const (
	computeUnitLimitTag byte = 2
	computeUnitPriceTag byte = 3
)

// Config configures a Builder.
type Config struct {
	// ProgramID is the only AMM program plans may target.
	ProgramID string
	// SlippageBps derates the expected output of each leg into its minimum.
	SlippageBps uint64
	// ComputeUnitLimit is set on both legs when non-zero.
	ComputeUnitLimit uint32
	// ComputeUnitPrice is the priority fee in micro-lamports per unit.
	ComputeUnitPrice uint64
}

// DefaultConfig returns the builder defaults for Raydium AMM v4.
func DefaultConfig() Config {
	return Config{
		ProgramID:        decoder.RaydiumAMMV4,
		SlippageBps:      50,
		ComputeUnitLimit: 200_000,
	}
}

// Builder builds TransactionBundles.
type Builder struct {
	cfg     Config
	program solanago.PublicKey
	now     func() time.Time
}

// NewBuilder creates a Builder.
func NewBuilder(cfg Config) (*Builder, error) {
	if cfg.ProgramID == "" {
		cfg.ProgramID = decoder.RaydiumAMMV4
	}
	if cfg.SlippageBps >= 10_000 {
		return nil, fmt.Errorf("slippage %d bps out of range", cfg.SlippageBps)
	}
	program, err := solanago.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	return &Builder{cfg: cfg, program: program, now: time.Now}, nil
}

// Build produces the front and back transactions for plan, both stamped
// with the blockhash sampled alongside the pool reserves.
func (b *Builder) Build(plan *domain.SandwichPlan, signer Signer) (*domain.TransactionBundle, error) {
	if plan == nil || plan.FrontIn == 0 {
		return nil, &domain.BuildError{Reason: "zero front-run size"}
	}
	if plan.FrontOut == 0 {
		return nil, &domain.BuildError{Reason: "zero front-run output"}
	}
	if plan.Swap.Program != b.cfg.ProgramID {
		return nil, &domain.BuildError{Reason: fmt.Sprintf("unknown program %q", plan.Swap.Program)}
	}
	if plan.Pool.Blockhash == "" {
		return nil, &domain.BuildError{Reason: "missing blockhash"}
	}
	blockhash, err := solanago.HashFromBase58(plan.Pool.Blockhash)
	if err != nil {
		return nil, &domain.BuildError{Reason: "invalid blockhash", Err: err}
	}
	if signer == nil {
		return nil, &domain.BuildError{Reason: "no signer"}
	}

	pool, err := poolAccounts(plan.Swap.Accounts)
	if err != nil {
		return nil, &domain.BuildError{Reason: "pool accounts", Err: err}
	}

	owner := signer.PublicKey()
	baseATA, err := associatedTokenAccount(owner, plan.BaseMint)
	if err != nil {
		return nil, &domain.BuildError{Reason: "base token account", Err: err}
	}
	quoteATA, err := associatedTokenAccount(owner, plan.QuoteMint)
	if err != nil {
		return nil, &domain.BuildError{Reason: "quote token account", Err: err}
	}

	// The back leg spends no more than the front leg is guaranteed to deliver.
	frontMin := b.minimum(plan.FrontOut)
	backIn, backOut := scaleBack(frontMin, plan.FrontOut, plan.BackOut)

	front, err := b.leg(pool, owner, baseATA, quoteATA, plan.FrontIn, frontMin, blockhash, signer)
	if err != nil {
		return nil, err
	}
	back, err := b.leg(pool, owner, quoteATA, baseATA, backIn, b.minimum(backOut), blockhash, signer)
	if err != nil {
		return nil, err
	}

	return &domain.TransactionBundle{
		ID:              uuid.NewString(),
		PlanID:          plan.ID,
		VictimSignature: plan.Swap.Signature,
		Wallet:          owner.String(),
		Blockhash:       plan.Pool.Blockhash,
		Front:           front,
		Back:            back,
		BuiltAt:         b.now().UTC(),
	}, nil
}

// scaleBack sizes the back leg to spend in instead of planned. The linearly
// scaled output is a lower bound on the concave curve's output for in.
func scaleBack(in, planned, plannedOut uint64) (uint64, uint64) {
	if in >= planned {
		return planned, plannedOut
	}
	hi, lo := bits.Mul64(plannedOut, in)
	out, _ := bits.Div64(hi, lo, planned)
	return in, out
}

// minimum applies the slippage allowance, never going below 1.
func (b *Builder) minimum(expected uint64) uint64 {
	bps := b.cfg.SlippageBps
	cut := expected/10_000*bps + expected%10_000*bps/10_000
	m := expected - cut
	if m == 0 {
		return 1
	}
	return m
}

func (b *Builder) leg(
	pool []*solanago.AccountMeta,
	owner, source, dest solanago.PublicKey,
	amountIn, minimumOut uint64,
	blockhash solanago.Hash,
	signer Signer,
) (domain.SignedTx, error) {
	var ixs []solanago.Instruction
	ixs = append(ixs, b.computeBudget()...)

	accounts := make(solanago.AccountMetaSlice, 0, len(pool)+3)
	accounts = append(accounts, pool...)
	accounts = append(accounts,
		solanago.NewAccountMeta(source, true, false),
		solanago.NewAccountMeta(dest, true, false),
		solanago.NewAccountMeta(owner, false, true),
	)
	ixs = append(ixs, solanago.NewInstruction(b.program, accounts, swapBaseInData(amountIn, minimumOut)))

	tx, err := solanago.NewTransaction(ixs, blockhash, solanago.TransactionPayer(owner))
	if err != nil {
		return domain.SignedTx{}, &domain.BuildError{Reason: "compile transaction", Err: err}
	}
	if err := signer.SignTransaction(tx); err != nil {
		return domain.SignedTx{}, &domain.BuildError{Reason: "sign transaction", Err: err}
	}
	if len(tx.Signatures) == 0 {
		return domain.SignedTx{}, &domain.BuildError{Reason: "signer produced no signature"}
	}
	payload, err := tx.MarshalBinary()
	if err != nil {
		return domain.SignedTx{}, &domain.BuildError{Reason: "serialize transaction", Err: err}
	}
	return domain.SignedTx{Signature: tx.Signatures[0].String(), Payload: payload}, nil
}

func (b *Builder) computeBudget() []solanago.Instruction {
	program := solanago.MustPublicKeyFromBase58(solana.ComputeBudgetProgramID)
	var ixs []solanago.Instruction
	if b.cfg.ComputeUnitLimit > 0 {
		data := make([]byte, 5)
		data[0] = computeUnitLimitTag
		binary.LittleEndian.PutUint32(data[1:], b.cfg.ComputeUnitLimit)
		ixs = append(ixs, solanago.NewInstruction(program, solanago.AccountMetaSlice{}, data))
	}
	if b.cfg.ComputeUnitPrice > 0 {
		data := make([]byte, 9)
		data[0] = computeUnitPriceTag
		binary.LittleEndian.PutUint64(data[1:], b.cfg.ComputeUnitPrice)
		ixs = append(ixs, solanago.NewInstruction(program, solanago.AccountMetaSlice{}, data))
	}
	return ixs
}

func swapBaseInData(amountIn, minimumOut uint64) []byte {
	data := make([]byte, 17)
	data[0] = decoder.TagSwapBaseIn
	binary.LittleEndian.PutUint64(data[1:], amountIn)
	binary.LittleEndian.PutUint64(data[9:], minimumOut)
	return data
}

// poolAccounts returns the first 14 (or 15 with target orders) swap accounts
// in Raydium order.
func poolAccounts(k *domain.PoolKeys) ([]*solanago.AccountMeta, error) {
	if k == nil {
		return nil, fmt.Errorf("plan carries no pool accounts")
	}

	type entry struct {
		name     string
		addr     string
		writable bool
	}
	entries := []entry{
		{"token program", solana.TokenProgramID, false},
		{"amm", k.AmmID, true},
		{"authority", k.Authority, false},
		{"open orders", k.OpenOrders, true},
	}
	if k.TargetOrders != "" {
		entries = append(entries, entry{"target orders", k.TargetOrders, true})
	}
	entries = append(entries,
		entry{"coin vault", k.CoinVault, true},
		entry{"pc vault", k.PCVault, true},
		entry{"serum program", k.SerumProgram, false},
		entry{"market", k.Market, true},
		entry{"bids", k.Bids, true},
		entry{"asks", k.Asks, true},
		entry{"event queue", k.EventQueue, true},
		entry{"market coin vault", k.MarketCoinVault, true},
		entry{"market pc vault", k.MarketPCVault, true},
		entry{"vault signer", k.VaultSigner, false},
	)

	metas := make([]*solanago.AccountMeta, 0, len(entries))
	for _, e := range entries {
		if e.addr == "" {
			return nil, fmt.Errorf("missing %s", e.name)
		}
		pk, err := solanago.PublicKeyFromBase58(e.addr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.name, err)
		}
		metas = append(metas, solanago.NewAccountMeta(pk, e.writable, false))
	}
	return metas, nil
}

func associatedTokenAccount(owner solanago.PublicKey, mint string) (solanago.PublicKey, error) {
	if mint == "" {
		return solanago.PublicKey{}, fmt.Errorf("empty mint")
	}
	addr, err := solana.AssociatedTokenAddress(owner.String(), mint)
	if err != nil {
		return solanago.PublicKey{}, err
	}
	return solanago.PublicKeyFromBase58(addr)
}
