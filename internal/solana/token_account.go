package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// TokenAccountSize is the length of an SPL token account.
const TokenAccountSize = 165

// TokenAccount is the decoded head of an SPL token account.
type TokenAccount struct {
	Mint   string
	Owner  string
	Amount uint64
}

// ParseTokenAccount decodes mint (0..32), owner (32..64) and amount (64..72).
func ParseTokenAccount(data []byte) (TokenAccount, error) {
	if len(data) < 72 {
		return TokenAccount{}, fmt.Errorf("token account data too short: %d", len(data))
	}
	return TokenAccount{
		Mint:   base58.Encode(data[0:32]),
		Owner:  base58.Encode(data[32:64]),
		Amount: binary.LittleEndian.Uint64(data[64:72]),
	}, nil
}
