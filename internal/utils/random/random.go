// Package random provides cryptographically secure randomness for winner
// selection. Fairness of the draw is a product guarantee, so nothing in here
// may ever fall back to a non-cryptographic generator.
package random

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
)

// UniformInt returns a uniformly distributed integer in [min, max] using
// crypto/rand. Rejection sampling over the minimal byte-width removes the
// modulo bias of the naive bytes%range approach.
func UniformInt(min, max int64) (int64, error) {
	if min > max {
		return 0, fmt.Errorf("invalid range: min %d > max %d", min, max)
	}
	rng := uint64(max-min) + 1
	if rng == 1 {
		return min, nil
	}

	// Minimal number of bytes able to represent rng-1.
	nBytes := (bits.Len64(rng-1) + 7) / 8

	// maxValid is the largest value below which a whole number of copies of
	// rng fits, so v % rng stays uniform for accepted v.
	var maxValid uint64
	if nBytes == 8 {
		maxValid = math.MaxUint64 - (math.MaxUint64%rng+1)%rng
	} else {
		span := uint64(1) << (8 * nBytes)
		maxValid = span - span%rng - 1
	}

	buf := make([]byte, 8)
	for {
		if _, err := rand.Read(buf[8-nBytes:]); err != nil {
			return 0, fmt.Errorf("failed to read random bytes: %w", err)
		}
		v := binary.BigEndian.Uint64(buf)
		if v > maxValid {
			continue
		}
		return min + int64(v%rng), nil
	}
}

// Shuffle performs a cryptographically secure Fisher-Yates shuffle of the slice.
func Shuffle[T any](slice []T) error {
	for i := len(slice) - 1; i > 0; i-- {
		j, err := UniformInt(0, int64(i))
		if err != nil {
			return fmt.Errorf("failed to generate random number: %w", err)
		}
		slice[i], slice[j] = slice[j], slice[i]
	}
	return nil
}
