package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	solanago "github.com/gagliardetto/solana-go"

	"solana-sandwich-bot/internal/solana"
)

// ErrNotFound is returned when a transaction is not found.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing. Safe for concurrent use.
type RPCClient struct {
	mu sync.Mutex

	Transactions map[string]*solana.Transaction
	Signatures   map[string][]solana.SignatureInfo
	Accounts     map[string]*solana.AccountInfo
	Slot         int64
	Blockhash    solana.LatestBlockhash

	// Statuses scripts getSignatureStatuses per signature; each call consumes
	// one entry and the last entry repeats. Missing signatures report nil.
	Statuses map[string][]*solana.SignatureStatus

	// Errors injects a failure for every call of a method.
	Errors map[string]error

	// Sent records every payload passed to SendTransaction.
	Sent [][]byte

	calls map[string]int
	order []string
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions: make(map[string]*solana.Transaction),
		Signatures:   make(map[string][]solana.SignatureInfo),
		Accounts:     make(map[string]*solana.AccountInfo),
		Statuses:     make(map[string][]*solana.SignatureStatus),
		Errors:       make(map[string]error),
		calls:        make(map[string]int),
	}
}

func (c *RPCClient) record(method string) error {
	c.calls[method]++
	c.order = append(c.order, method)
	return c.Errors[method]
}

// Calls returns how many times method was invoked.
func (c *RPCClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// Order returns the method names in invocation order.
func (c *RPCClient) Order() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// AddSignatures adds signatures for an address to the stub store.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Signatures[address] = sigs
}

// SetStatuses scripts the statuses returned for signature.
func (c *RPCClient) SetStatuses(signature string, statuses ...*solana.SignatureStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statuses[signature] = statuses
}

// GetTransaction retrieves a transaction by signature from the stub store.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("getTransaction"); err != nil {
		return nil, err
	}
	tx, ok := c.Transactions[signature]
	if !ok {
		return nil, ErrNotFound
	}
	return tx, nil
}

// GetSignaturesForAddress returns the stored signatures newest first, stopping
// at opts.Until.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("getSignaturesForAddress"); err != nil {
		return nil, err
	}

	var out []solana.SignatureInfo
	for _, s := range c.Signatures[address] {
		if opts != nil && opts.Until != "" && s.Signature == opts.Until {
			break
		}
		out = append(out, s)
	}
	if opts != nil && opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// GetMultipleAccounts returns stored accounts at Slot.
func (c *RPCClient) GetMultipleAccounts(_ context.Context, pubkeys []string) (*solana.MultipleAccounts, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("getMultipleAccounts"); err != nil {
		return nil, err
	}

	res := &solana.MultipleAccounts{Slot: c.Slot, Accounts: make([]*solana.AccountInfo, len(pubkeys))}
	for i, k := range pubkeys {
		res.Accounts[i] = c.Accounts[k]
	}
	return res, nil
}

// GetLatestBlockhash returns Blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.LatestBlockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("getLatestBlockhash"); err != nil {
		return nil, err
	}
	bh := c.Blockhash
	return &bh, nil
}

// GetSlot returns Slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("getSlot"); err != nil {
		return 0, err
	}
	return c.Slot, nil
}

// SendTransaction records the payload and returns its first signature.
func (c *RPCClient) SendTransaction(_ context.Context, payload []byte, _ *solana.SendOpts) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("sendTransaction"); err != nil {
		return "", err
	}
	c.Sent = append(c.Sent, payload)

	tx, err := solanago.TransactionFromBytes(payload)
	if err != nil || len(tx.Signatures) == 0 {
		return fmt.Sprintf("stub-sig-%d", len(c.Sent)), nil
	}
	return tx.Signatures[0].String(), nil
}

// GetSignatureStatuses pops the scripted status of each signature.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("getSignatureStatuses"); err != nil {
		return nil, err
	}

	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		script := c.Statuses[sig]
		if len(script) == 0 {
			continue
		}
		out[i] = script[0]
		if len(script) > 1 {
			c.Statuses[sig] = script[1:]
		}
	}
	return out, nil
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)
