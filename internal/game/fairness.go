package game

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
)

const (
	MIN_MULTIPLIER = 1.00
	MAX_MULTIPLIER = 100.00

	// First 13 hex chars of the digest (52 bits), same width as a float64
	// mantissa so the mapping loses no precision.
	HASH_PREFIX_LEN = 13
)

// FairnessProof is the commitment published with a round. The seed stays
// secret until the round crashes; salt and hash are public from the start.
type FairnessProof struct {
	Seed string `json:"seed,omitempty"`
	Salt string `json:"salt"`
	Hash string `json:"hash"`
}

// DeriveCrashPoint maps a (seed, salt) pair to a crash multiplier and the
// SHA-256 digest of their concatenation. Deterministic: the same pair always
// yields the same multiplier and hash.
//
// The digest prefix becomes r in [0,1); the multiplier is 1/(1-r) floored to
// two decimals and clamped to [MIN_MULTIPLIER, max]. Flooring is deliberate:
// the engine compares this value against two-decimal multiplier ticks, so the
// crash point must itself sit on the two-decimal grid.
func DeriveCrashPoint(seed, salt string, max float64) (float64, string) {
	sum := sha256.Sum256([]byte(seed + salt))
	hash := hex.EncodeToString(sum[:])

	v, _ := strconv.ParseUint(hash[:HASH_PREFIX_LEN], 16, 64)
	r := float64(v) / float64(0xFFFFFFFFFFFFF)

	if r >= 1 {
		return MIN_MULTIPLIER, hash
	}

	crash := math.Floor(100.0/(1.0-r)) / 100.0

	if crash < MIN_MULTIPLIER {
		crash = MIN_MULTIPLIER
	}
	if crash > max {
		crash = max
	}

	return crash, hash
}

// GenerateSeed creates a cryptographically secure random seed
func GenerateSeed() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// VerifyCrashPoint lets a third party recompute a revealed round: it checks
// that the published hash commits to (seed, salt) and that the pair derives
// the claimed multiplier.
func VerifyCrashPoint(seed, salt, hash string, claimedMultiplier, max float64) bool {
	derived, derivedHash := DeriveCrashPoint(seed, salt, max)
	if derivedHash != hash {
		return false
	}
	diff := derived - claimedMultiplier
	if diff < 0 {
		diff = -diff
	}
	return diff < 0.005
}
