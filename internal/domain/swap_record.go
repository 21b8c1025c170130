package domain

// SwapKind distinguishes exact-input from exact-output swaps.
type SwapKind string

const (
	SwapBaseIn  SwapKind = "swap_base_in"
	SwapBaseOut SwapKind = "swap_base_out"
)

// SwapDirection is the Raydium trade direction as encoded in ray_log.
type SwapDirection uint64

const (
	DirectionPCToCoin SwapDirection = 1
	DirectionCoinToPC SwapDirection = 2
)

func (d SwapDirection) String() string {
	switch d {
	case DirectionPCToCoin:
		return "pc_to_coin"
	case DirectionCoinToPC:
		return "coin_to_pc"
	default:
		return "unknown"
	}
}

// PoolKeys are the accounts a Raydium AMM v4 swap instruction references.
// Addresses are base58 strings copied from the victim transaction.
type PoolKeys struct {
	AmmID           string
	Authority       string
	OpenOrders      string
	TargetOrders    string // empty for 17-account swaps
	CoinVault       string
	PCVault         string
	SerumProgram    string
	Market          string
	Bids            string
	Asks            string
	EventQueue      string
	MarketCoinVault string
	MarketPCVault   string
	VaultSigner     string
	CoinMint        string
	PCMint          string
}

// SwapRecord is one decoded AMM swap instruction.
// Immutable once produced by the decoder.
type SwapRecord struct {
	Program          string
	Pool             string
	InputMint        string
	OutputMint       string
	AmountIn         uint64 // exact input (base in) or max input (base out)
	MinimumOut       uint64 // minimum output (base in) or exact output (base out)
	Trader           string
	Signature        string
	Slot             int64
	InstructionIndex int
	Kind             SwapKind
	Direction        SwapDirection

	// Values reported by the program in ray_log.
	ObservedOut uint64 // out_amount (base in) or deduct_in (base out)
	ReserveCoin uint64
	ReservePC   uint64

	Accounts *PoolKeys
}
