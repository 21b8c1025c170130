package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrRateLimitTimeout is returned when a throttle permit was not granted
// within the caller's wait timeout.
var ErrRateLimitTimeout = errors.New("rate limit wait timeout")

// ErrLockHeld is returned when the wallet is owned by another in-flight bundle.
var ErrLockHeld = errors.New("wallet lock held")

// DecodeError reports a log or instruction that does not match a known
// AMM swap layout. The record is skipped; the batch continues.
type DecodeError struct {
	Signature string
	Reason    string
	Err       error
}

func (e *DecodeError) Error() string {
	msg := "decode"
	if e.Signature != "" {
		msg += " " + e.Signature
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RpcError is an upstream RPC failure: transport error, non-200 status
// (including 429) or a JSON-RPC error object. It is never retried by the gateway.
type RpcError struct {
	Method     string
	StatusCode int // HTTP status, 0 if the request never got a response
	Code       int // JSON-RPC error code, 0 if none
	Message    string
	Err        error
}

func (e *RpcError) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("rpc %s: code %d: %s", e.Method, e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("rpc %s: http %d: %s", e.Method, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("rpc %s: %v", e.Method, e.Err)
	default:
		return fmt.Sprintf("rpc %s: %s", e.Method, e.Message)
	}
}

func (e *RpcError) Unwrap() error { return e.Err }

// IsRateLimited reports an upstream 429.
func (e *RpcError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsBlockhashNotFound reports the chain rejecting a transaction whose
// blockhash expired or was never seen.
func (e *RpcError) IsBlockhashNotFound() bool {
	return strings.Contains(strings.ToLower(e.Message), "blockhash not found")
}

// BuildError reports a plan that cannot be turned into valid transactions.
// Fatal for the opportunity; never retried.
type BuildError struct {
	Reason string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return "build: " + e.Reason + ": " + e.Err.Error()
	}
	return "build: " + e.Reason
}

func (e *BuildError) Unwrap() error { return e.Err }
