// Package pool reads Raydium AMM v4 reserve snapshots.
package pool

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// AmmInfoSize is the length of a Raydium AMM v4 AmmInfo account.
const AmmInfoSize = 752

// OpenOrdersSize is the length of a Serum/OpenBook OpenOrders account.
const OpenOrdersSize = 3228

// AmmInfo is the subset of the AmmInfo account needed to price a swap.
type AmmInfo struct {
	Status       uint64
	CoinDecimals uint64
	PCDecimals   uint64

	TradeFeeNumerator   uint64
	TradeFeeDenominator uint64
	SwapFeeNumerator    uint64
	SwapFeeDenominator  uint64

	// PnL owed to the protocol, still sitting in the vaults.
	NeedTakePnlCoin uint64
	NeedTakePnlPC   uint64

	CoinVault     string
	PCVault       string
	CoinMint      string
	PCMint        string
	LPMint        string
	OpenOrders    string
	Market        string
	MarketProgram string
	TargetOrders  string
}

// AmmInfo field offsets.
const (
	offStatus        = 0
	offCoinDecimals  = 32
	offPCDecimals    = 40
	offTradeFeeNum   = 144
	offTradeFeeDen   = 152
	offSwapFeeNum    = 176
	offSwapFeeDen    = 184
	offNeedTakePnlC  = 192
	offNeedTakePnlPC = 200
	offCoinVault     = 336
	offPCVault       = 368
	offCoinMint      = 400
	offPCMint        = 432
	offLPMint        = 464
	offOpenOrders    = 496
	offMarket        = 528
	offMarketProgram = 560
	offTargetOrders  = 592
)

// ParseAmmInfo decodes a Raydium AMM v4 AmmInfo account.
func ParseAmmInfo(data []byte) (*AmmInfo, error) {
	if len(data) != AmmInfoSize {
		return nil, fmt.Errorf("amm info: expected %d bytes, got %d", AmmInfoSize, len(data))
	}
	u64 := func(off int) uint64 { return binary.LittleEndian.Uint64(data[off : off+8]) }
	key := func(off int) string { return base58.Encode(data[off : off+32]) }

	info := &AmmInfo{
		Status:              u64(offStatus),
		CoinDecimals:        u64(offCoinDecimals),
		PCDecimals:          u64(offPCDecimals),
		TradeFeeNumerator:   u64(offTradeFeeNum),
		TradeFeeDenominator: u64(offTradeFeeDen),
		SwapFeeNumerator:    u64(offSwapFeeNum),
		SwapFeeDenominator:  u64(offSwapFeeDen),
		NeedTakePnlCoin:     u64(offNeedTakePnlC),
		NeedTakePnlPC:       u64(offNeedTakePnlPC),
		CoinVault:           key(offCoinVault),
		PCVault:             key(offPCVault),
		CoinMint:            key(offCoinMint),
		PCMint:              key(offPCMint),
		LPMint:              key(offLPMint),
		OpenOrders:          key(offOpenOrders),
		Market:              key(offMarket),
		MarketProgram:       key(offMarketProgram),
		TargetOrders:        key(offTargetOrders),
	}
	if info.SwapFeeDenominator == 0 || info.SwapFeeNumerator >= info.SwapFeeDenominator {
		return nil, fmt.Errorf("amm info: invalid swap fee %d/%d", info.SwapFeeNumerator, info.SwapFeeDenominator)
	}
	return info, nil
}

// OpenOrders holds the token totals an AMM keeps on the order book.
type OpenOrders struct {
	NativeCoinTotal uint64
	NativePCTotal   uint64
}

// ParseOpenOrders decodes the native totals of an OpenOrders account.
func ParseOpenOrders(data []byte) (OpenOrders, error) {
	if len(data) < 109 {
		return OpenOrders{}, fmt.Errorf("open orders: data too short: %d", len(data))
	}
	return OpenOrders{
		NativeCoinTotal: binary.LittleEndian.Uint64(data[85:93]),
		NativePCTotal:   binary.LittleEndian.Uint64(data[101:109]),
	}, nil
}
