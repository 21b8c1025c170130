package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputePlanID computes a deterministic plan_id using SHA256.
// Formula: SHA256(victim_signature|instruction_index|front_in|blockhash)
// Returns hex-encoded hash (64 characters).
func ComputePlanID(
	victimSignature string,
	instructionIndex int,
	frontIn uint64,
	blockhash string,
) string {
	data := fmt.Sprintf("%s|%d|%d|%s",
		victimSignature,
		instructionIndex,
		frontIn,
		blockhash,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeEvaluationID computes a deterministic evaluation_id using SHA256.
// Formula: SHA256(victim_signature|instruction_index|slot)
// One swap is evaluated at most once, so the ID deduplicates analytics rows.
func ComputeEvaluationID(
	victimSignature string,
	instructionIndex int,
	slot int64,
) string {
	data := fmt.Sprintf("%s|%d|%d",
		victimSignature,
		instructionIndex,
		slot,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
