package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputePositionID computes a deterministic position id using SHA256.
// Formula: SHA256(correlation_id|token|entry_time)
// Returns hex-encoded hash (64 characters).
func ComputePositionID(correlationID, token string, entryTime int64) string {
	data := fmt.Sprintf("%s|%s|%d", correlationID, token, entryTime)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeSignalKey computes a deterministic dedup key for a signal.
// Formula: SHA256(wallet|token|created_at)
func ComputeSignalKey(wallet, token string, createdAt int64) string {
	data := fmt.Sprintf("%s|%s|%d", wallet, token, createdAt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
