package decoder

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"

	"solana-sandwich-bot/internal/domain"
)

// LogType is the first byte of a Raydium ray_log payload.
type LogType uint8

const (
	LogInit        LogType = 0
	LogDeposit     LogType = 1
	LogWithdraw    LogType = 2
	LogSwapBaseIn  LogType = 3
	LogSwapBaseOut LogType = 4
)

// swapLogLen is log_type(1) + seven u64 fields.
const swapLogLen = 1 + 7*8

// ErrNotSwap marks a well-formed ray_log that does not describe a swap.
var ErrNotSwap = errors.New("not a swap log")

var rayLogPattern = regexp.MustCompile(`ray_log: ([A-Za-z0-9+/=]+)`)

// SwapLog is a decoded SwapBaseIn or SwapBaseOut ray_log.
//
//	SwapBaseIn:  amount_in, minimum_out, direction, user_source, pool_coin, pool_pc, out_amount
//	SwapBaseOut: max_in,    amount_out,  direction, user_source, pool_coin, pool_pc, deduct_in
type SwapLog struct {
	Kind       domain.SwapKind
	AmountIn   uint64 // amount_in or max_in
	AmountOut  uint64 // minimum_out or amount_out
	Direction  domain.SwapDirection
	UserSource uint64 // user source balance before the swap
	PoolCoin   uint64
	PoolPC     uint64
	Settled    uint64 // out_amount or deduct_in
}

// ParseRayLog decodes one base64 ray_log payload. Non-swap log types return
// ErrNotSwap; anything malformed returns a *domain.DecodeError.
func ParseRayLog(payload string) (SwapLog, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return SwapLog{}, &domain.DecodeError{Reason: "invalid ray_log base64", Err: err}
	}
	if len(data) == 0 {
		return SwapLog{}, &domain.DecodeError{Reason: "empty ray_log"}
	}

	var kind domain.SwapKind
	switch LogType(data[0]) {
	case LogInit, LogDeposit, LogWithdraw:
		return SwapLog{}, ErrNotSwap
	case LogSwapBaseIn:
		kind = domain.SwapBaseIn
	case LogSwapBaseOut:
		kind = domain.SwapBaseOut
	default:
		return SwapLog{}, &domain.DecodeError{Reason: fmt.Sprintf("unknown ray_log type %d", data[0])}
	}

	if len(data) != swapLogLen {
		return SwapLog{}, &domain.DecodeError{Reason: fmt.Sprintf("swap ray_log length %d, want %d", len(data), swapLogLen)}
	}

	log := SwapLog{
		Kind:       kind,
		AmountIn:   readUint64LE(data, 1),
		AmountOut:  readUint64LE(data, 9),
		Direction:  domain.SwapDirection(readUint64LE(data, 17)),
		UserSource: readUint64LE(data, 25),
		PoolCoin:   readUint64LE(data, 33),
		PoolPC:     readUint64LE(data, 41),
		Settled:    readUint64LE(data, 49),
	}
	if log.Direction != domain.DirectionCoinToPC && log.Direction != domain.DirectionPCToCoin {
		return SwapLog{}, &domain.DecodeError{Reason: fmt.Sprintf("invalid swap direction %d", log.Direction)}
	}
	return log, nil
}

// EncodeRayLog is the inverse of ParseRayLog for swap logs.
func EncodeRayLog(log SwapLog) string {
	data := make([]byte, swapLogLen)
	data[0] = byte(LogSwapBaseIn)
	if log.Kind == domain.SwapBaseOut {
		data[0] = byte(LogSwapBaseOut)
	}
	for i, v := range []uint64{log.AmountIn, log.AmountOut, uint64(log.Direction), log.UserSource, log.PoolCoin, log.PoolPC, log.Settled} {
		binary.LittleEndian.PutUint64(data[1+8*i:], v)
	}
	return base64.StdEncoding.EncodeToString(data)
}

// logEntry is one swap ray_log, or the error for one that could not be read.
type logEntry struct {
	log SwapLog
	err error
}

// scanLogs extracts swap ray_logs in emission order. Unrelated lines and
// non-swap ray_logs are skipped.
func scanLogs(logs []string) []logEntry {
	var entries []logEntry
	for _, line := range logs {
		m := rayLogPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		log, err := ParseRayLog(m[1])
		if errors.Is(err, ErrNotSwap) {
			continue
		}
		entries = append(entries, logEntry{log: log, err: err})
	}
	return entries
}

// DecodeLogs decodes every swap ray_log in a transaction's log lines. Malformed
// payloads are reported in the joined error and do not stop the scan.
func DecodeLogs(logs []string) ([]SwapLog, error) {
	var (
		out  []SwapLog
		errs []error
	)
	for _, e := range scanLogs(logs) {
		if e.err != nil {
			errs = append(errs, e.err)
			continue
		}
		out = append(out, e.log)
	}
	return out, errors.Join(errs...)
}

// readUint64LE reads a little-endian uint64 at offset.
func readUint64LE(data []byte, offset int) uint64 {
	return binary.LittleEndian.Uint64(data[offset : offset+8])
}
