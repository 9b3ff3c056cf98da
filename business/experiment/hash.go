package experiment

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// normalizedHash maps a seed string into [0, 1) using the first four bytes
// of its SHA-256 digest (big-endian). Stable across processes and restarts,
// which is what makes repeated assignment calls idempotent.
func normalizedHash(seed string) float64 {
	sum := sha256.Sum256([]byte(seed))
	v := binary.BigEndian.Uint32(sum[:4])

	return float64(v) / float64(uint64(1)<<32)
}

// trafficSeed gates whether a user participates in an experiment at all.
func trafficSeed(userID uint, experimentID string) string {
	return fmt.Sprintf("%d%s", userID, experimentID)
}

// groupSeed picks the group among participating users. Uses a different
// seed than the traffic gate so the two decisions are independent.
func groupSeed(userID uint, experimentID string) string {
	return fmt.Sprintf("%d%s:group", userID, experimentID)
}
