package solana

import "context"

// RPCClient defines the Solana JSON-RPC methods the bot uses.
type RPCClient interface {
	// GetTransaction retrieves a confirmed transaction by signature.
	// Returns nil, nil if the node does not know the transaction.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSignaturesForAddress retrieves signatures for an address, newest first.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetMultipleAccounts retrieves several accounts at one slot.
	// Missing accounts are nil entries.
	GetMultipleAccounts(ctx context.Context, pubkeys []string) (*MultipleAccounts, error)

	// GetLatestBlockhash retrieves the most recent blockhash.
	GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)

	// SendTransaction submits a signed, serialized transaction.
	SendTransaction(ctx context.Context, payload []byte, opts *SendOpts) (string, error)

	// GetSignatureStatuses retrieves confirmation statuses, one entry per
	// signature (nil for unknown signatures).
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)
}

// Transaction represents a confirmed Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err               interface{}
	Fee               uint64
	LogMessages       []string
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	InnerInstructions []InnerInstructions
	LoadedAddresses   LoadedAddresses
}

// TransactionMessage contains the parsed transaction message.
type TransactionMessage struct {
	AccountKeys     []string
	RecentBlockhash string
	Instructions    []CompiledInstruction
}

// CompiledInstruction references accounts by index into the full key list.
// Data is base58 encoded, as returned by the "json" encoding.
type CompiledInstruction struct {
	ProgramIDIndex int
	Accounts       []int
	Data           string
}

// InnerInstructions are the CPIs made by the top-level instruction at Index.
type InnerInstructions struct {
	Index        int
	Instructions []CompiledInstruction
}

// LoadedAddresses are keys loaded from address lookup tables (v0 messages).
type LoadedAddresses struct {
	Writable []string
	Readonly []string
}

// TokenBalance is one entry of pre/postTokenBalances.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       uint64 // raw amount in smallest units
	Decimals     uint8
}

// AllAccountKeys returns static keys followed by lookup-table keys, which is
// the index space instructions and token balances refer to.
func (tx *Transaction) AllAccountKeys() []string {
	if tx.Message == nil {
		return nil
	}
	keys := append([]string(nil), tx.Message.AccountKeys...)
	if tx.Meta != nil {
		keys = append(keys, tx.Meta.LoadedAddresses.Writable...)
		keys = append(keys, tx.Meta.LoadedAddresses.Readonly...)
	}
	return keys
}

// Failed reports whether the transaction executed with an error.
func (tx *Transaction) Failed() bool {
	return tx.Meta != nil && tx.Meta.Err != nil
}
