// Package entropy derives deterministic random sources for a turn.
// The same (campaign, turn, stream) always yields the same sequence, so a turn
// replayed from identical inputs produces identical outcomes.
package entropy

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
)

// Stream names keep each pipeline stage on its own sequence.
const (
	StreamMechanics     = "mechanics"
	StreamPresence      = "presence"
	StreamWorld         = "world"
	StreamRelationships = "relationships"
	StreamFallback      = "fallback"
)

// Seed derives a stable seed from a campaign id, turn number and stream name.
func Seed(campaignID string, turn int64, stream string) int64 {
	h := fnv.New64a()
	h.Write([]byte(campaignID))
	h.Write([]byte{0})
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(turn))
	h.Write(buf[:])
	h.Write([]byte{0})
	h.Write([]byte(stream))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

// New returns a rand source seeded for (campaign, turn, stream).
func New(campaignID string, turn int64, stream string) *rand.Rand {
	return rand.New(rand.NewSource(Seed(campaignID, turn, stream)))
}

// FromSeed returns a rand source for an explicit seed.
func FromSeed(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// D20 rolls a twenty-sided die.
func D20(rng *rand.Rand) int {
	return rng.Intn(20) + 1
}

// Pick returns a deterministic element of options, or "" when empty.
func Pick(rng *rand.Rand, options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[rng.Intn(len(options))]
}
