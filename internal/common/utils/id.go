package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateJobID generates a unique analysis job ID scoped to a user.
// Format: "userID-YYYYMMDDTHHMMSSZ-suffix" where suffix is 4 random hex bytes
// to disambiguate submissions within the same second.
func GenerateJobID(userID string) string {
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	return fmt.Sprintf("%s-%s-%s", userID, timestamp, GenerateRandomID(4))
}

// GenerateRandomID generates a cryptographically secure random hex string of
// n bytes (2n hex characters). Falls back to a timestamp on entropy failure.
func GenerateRandomID(n int) string {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
