// Package decoder turns confirmed Raydium AMM v4 transactions into swap records.
package decoder

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/solana"
)

// RaydiumAMMV4 is the Raydium AMM v4 program ID.
const RaydiumAMMV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

// Raydium instruction tags.
const (
	TagSwapBaseIn  byte = 9
	TagSwapBaseOut byte = 11
)

const swapDataLen = 1 + 8 + 8

// Decoder extracts swap records for one AMM program.
type Decoder struct {
	programID string
}

// New creates a Decoder for Raydium AMM v4.
func New() *Decoder {
	return &Decoder{programID: RaydiumAMMV4}
}

// NewForProgram creates a Decoder for a Raydium-compatible program deployment.
func NewForProgram(programID string) *Decoder {
	return &Decoder{programID: programID}
}

// ProgramID returns the program this decoder matches.
func (d *Decoder) ProgramID() string {
	return d.programID
}

// swapInstruction is a Raydium swap call located in a transaction.
type swapInstruction struct {
	ix      solana.CompiledInstruction
	kind    domain.SwapKind
	amount  uint64 // amount_in or max_in
	limit   uint64 // minimum_out or amount_out
	decoded error
}

// Decode returns one SwapRecord per Raydium swap instruction in tx,
// top-level and inner, in execution order. A failed transaction yields none.
// Per-instruction problems are returned as joined *domain.DecodeError values
// alongside the records that did decode.
func (d *Decoder) Decode(tx *solana.Transaction) ([]domain.SwapRecord, error) {
	if tx == nil || tx.Meta == nil || tx.Message == nil {
		sig := ""
		if tx != nil {
			sig = tx.Signature
		}
		return nil, &domain.DecodeError{Signature: sig, Reason: "transaction without meta or message"}
	}
	if tx.Failed() {
		return nil, nil
	}

	keys := tx.AllAccountKeys()
	ixs := d.swapInstructions(tx, keys)
	entries := scanLogs(tx.Meta.LogMessages)

	if len(ixs) == 0 {
		if len(entries) > 0 {
			return nil, &domain.DecodeError{Signature: tx.Signature, Reason: "swap ray_log without swap instruction"}
		}
		return nil, nil
	}
	if len(entries) != len(ixs) {
		return nil, &domain.DecodeError{
			Signature: tx.Signature,
			Reason:    fmt.Sprintf("%d swap instructions but %d swap logs", len(ixs), len(entries)),
		}
	}

	mints := tokenMints(tx.Meta, keys)

	var (
		records []domain.SwapRecord
		errs    []error
	)
	for i, si := range ixs {
		rec, err := d.record(tx, keys, mints, si, entries[i], i)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, rec)
	}
	return records, errors.Join(errs...)
}

func (d *Decoder) swapInstructions(tx *solana.Transaction, keys []string) []swapInstruction {
	inner := make(map[int][]solana.CompiledInstruction, len(tx.Meta.InnerInstructions))
	for _, set := range tx.Meta.InnerInstructions {
		inner[set.Index] = append(inner[set.Index], set.Instructions...)
	}

	var out []swapInstruction
	visit := func(ix solana.CompiledInstruction) {
		if ix.ProgramIDIndex < 0 || ix.ProgramIDIndex >= len(keys) || keys[ix.ProgramIDIndex] != d.programID {
			return
		}
		si, ok := parseSwapInstruction(ix)
		if ok {
			out = append(out, si)
		}
	}

	for i, ix := range tx.Message.Instructions {
		visit(ix)
		for _, cpi := range inner[i] {
			visit(cpi)
		}
	}
	return out
}

// parseSwapInstruction reports ok=false for non-swap Raydium instructions.
// Swap tags with bad data are kept so the error reaches the caller.
func parseSwapInstruction(ix solana.CompiledInstruction) (swapInstruction, bool) {
	data, err := base58.Decode(ix.Data)
	if err != nil || len(data) == 0 {
		return swapInstruction{}, false
	}

	si := swapInstruction{ix: ix}
	switch data[0] {
	case TagSwapBaseIn:
		si.kind = domain.SwapBaseIn
	case TagSwapBaseOut:
		si.kind = domain.SwapBaseOut
	default:
		return swapInstruction{}, false
	}

	if len(data) < swapDataLen {
		si.decoded = fmt.Errorf("swap data length %d, want %d", len(data), swapDataLen)
		return si, true
	}
	si.amount = binary.LittleEndian.Uint64(data[1:9])
	si.limit = binary.LittleEndian.Uint64(data[9:17])
	return si, true
}

func (d *Decoder) record(tx *solana.Transaction, keys []string, mints map[string]string, si swapInstruction, entry logEntry, ordinal int) (domain.SwapRecord, error) {
	fail := func(reason string, err error) (domain.SwapRecord, error) {
		return domain.SwapRecord{}, &domain.DecodeError{
			Signature: tx.Signature,
			Reason:    fmt.Sprintf("swap %d: %s", ordinal, reason),
			Err:       err,
		}
	}

	if si.decoded != nil {
		return fail("instruction data", si.decoded)
	}
	if entry.err != nil {
		return fail("ray_log", entry.err)
	}
	log := entry.log
	if log.Kind != si.kind {
		return fail(fmt.Sprintf("instruction %s paired with %s log", si.kind, log.Kind), nil)
	}
	if log.AmountIn != si.amount || log.AmountOut != si.limit {
		return fail("instruction amounts differ from ray_log", nil)
	}

	accounts, err := resolveAccounts(si.ix.Accounts, keys)
	if err != nil {
		return fail("accounts", err)
	}
	pk, user, err := poolKeys(accounts)
	if err != nil {
		return fail("accounts", err)
	}

	pk.CoinMint = mints[pk.CoinVault]
	pk.PCMint = mints[pk.PCVault]
	if pk.CoinMint == "" || pk.PCMint == "" {
		// Fall back to the user's token accounts.
		src, dst := mints[user.source], mints[user.dest]
		if src != "" && dst != "" {
			if log.Direction == domain.DirectionCoinToPC {
				pk.CoinMint, pk.PCMint = src, dst
			} else {
				pk.CoinMint, pk.PCMint = dst, src
			}
		}
	}
	if pk.CoinMint == "" || pk.PCMint == "" {
		return fail("unresolved pool mints", nil)
	}

	in, out := pk.CoinMint, pk.PCMint
	if log.Direction == domain.DirectionPCToCoin {
		in, out = pk.PCMint, pk.CoinMint
	}

	return domain.SwapRecord{
		Program:          d.programID,
		Pool:             pk.AmmID,
		InputMint:        in,
		OutputMint:       out,
		AmountIn:         log.AmountIn,
		MinimumOut:       log.AmountOut,
		Trader:           user.owner,
		Signature:        tx.Signature,
		Slot:             tx.Slot,
		InstructionIndex: ordinal,
		Kind:             log.Kind,
		Direction:        log.Direction,
		ObservedOut:      log.Settled,
		ReserveCoin:      log.PoolCoin,
		ReservePC:        log.PoolPC,
		Accounts:         &pk,
	}, nil
}

func resolveAccounts(idx []int, keys []string) ([]string, error) {
	out := make([]string, len(idx))
	for i, k := range idx {
		if k < 0 || k >= len(keys) {
			return nil, fmt.Errorf("account index %d out of range (%d keys)", k, len(keys))
		}
		out[i] = keys[k]
	}
	return out, nil
}

type userAccounts struct {
	source, dest, owner string
}

// poolKeys maps the 18-account swap layout, or the 17-account layout that
// omits target orders.
func poolKeys(a []string) (domain.PoolKeys, userAccounts, error) {
	var pk domain.PoolKeys
	switch len(a) {
	case 18:
		pk = domain.PoolKeys{
			AmmID: a[1], Authority: a[2], OpenOrders: a[3], TargetOrders: a[4],
			CoinVault: a[5], PCVault: a[6], SerumProgram: a[7], Market: a[8],
			Bids: a[9], Asks: a[10], EventQueue: a[11],
			MarketCoinVault: a[12], MarketPCVault: a[13], VaultSigner: a[14],
		}
		return pk, userAccounts{source: a[15], dest: a[16], owner: a[17]}, nil
	case 17:
		pk = domain.PoolKeys{
			AmmID: a[1], Authority: a[2], OpenOrders: a[3],
			CoinVault: a[4], PCVault: a[5], SerumProgram: a[6], Market: a[7],
			Bids: a[8], Asks: a[9], EventQueue: a[10],
			MarketCoinVault: a[11], MarketPCVault: a[12], VaultSigner: a[13],
		}
		return pk, userAccounts{source: a[14], dest: a[15], owner: a[16]}, nil
	default:
		return pk, userAccounts{}, fmt.Errorf("swap has %d accounts, want 17 or 18", len(a))
	}
}

// tokenMints maps token account address to mint using pre/post balances.
func tokenMints(meta *solana.TransactionMeta, keys []string) map[string]string {
	mints := make(map[string]string, len(meta.PostTokenBalances))
	for _, set := range [][]solana.TokenBalance{meta.PreTokenBalances, meta.PostTokenBalances} {
		for _, b := range set {
			if b.AccountIndex < 0 || b.AccountIndex >= len(keys) || b.Mint == "" {
				continue
			}
			mints[keys[b.AccountIndex]] = b.Mint
		}
	}
	return mints
}
