// Package wallet loads the trading keypair and signs transactions with it.
package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
)

// Wallet holds one ed25519 keypair.
type Wallet struct {
	key solanago.PrivateKey
}

// ErrNoKey is returned when no key source is configured.
var ErrNoKey = errors.New("wallet: no key configured")

// Source names where the secret key comes from. The first non-empty field wins.
type Source struct {
	// KeygenFile is a solana-keygen JSON array file.
	KeygenFile string
	// Base58 is the secret key encoded as base58 (64 bytes).
	Base58 string
}

// Load opens the wallet described by src.
func Load(src Source) (*Wallet, error) {
	switch {
	case src.KeygenFile != "":
		return FromKeygenFile(src.KeygenFile)
	case src.Base58 != "":
		return FromBase58(src.Base58)
	default:
		return nil, ErrNoKey
	}
}

// FromKeygenFile reads a key written by solana-keygen.
func FromKeygenFile(path string) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keygen file: %w", err)
	}
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, fmt.Errorf("parse keygen file %s: %w", path, err)
	}
	secret := make([]byte, 0, len(ints))
	for _, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("parse keygen file %s: byte %d out of range", path, v)
		}
		secret = append(secret, byte(v))
	}
	return fromBytes(secret)
}

// FromBase58 decodes a base58 secret key.
func FromBase58(secret string) (*Wallet, error) {
	key, err := solanago.PrivateKeyFromBase58(strings.TrimSpace(secret))
	if err != nil {
		return nil, fmt.Errorf("decode base58 key: %w", err)
	}
	return fromBytes(key)
}

func fromBytes(b []byte) (*Wallet, error) {
	if len(b) != 64 {
		return nil, fmt.Errorf("secret key must be 64 bytes, got %d", len(b))
	}
	if !bytes.Equal(ed25519.NewKeyFromSeed(b[:32]), b) {
		return nil, errors.New("secret key public half does not match its seed")
	}
	return &Wallet{key: solanago.PrivateKey(b)}, nil
}

// Generate creates a fresh random wallet, used for dry runs.
func Generate() (*Wallet, error) {
	key, err := solanago.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Wallet{key: key}, nil
}

// PublicKey returns the wallet address.
func (w *Wallet) PublicKey() solanago.PublicKey {
	return w.key.PublicKey()
}

// SignTransaction signs every signature slot that belongs to this wallet.
// It fails if the transaction requires another signer.
func (w *Wallet) SignTransaction(tx *solanago.Transaction) error {
	pub := w.key.PublicKey()
	_, err := tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(pub) {
			return &w.key
		}
		return nil
	})
	return err
}

// String returns the address, never the secret.
func (w *Wallet) String() string {
	return w.PublicKey().String()
}
