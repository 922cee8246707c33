package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// LaneCount is the number of hash lanes produced from one key.
const LaneCount = 4

var ErrShortKey = errors.New("key too short to split into lanes")

// HashLaneSet holds four independently hashed quarters of a derived key,
// in order. Lanes 1+2 rebuild the first inner key, lanes 3+4 the second.
type HashLaneSet [LaneCount][]byte

// SplitIntoLanes splits key into halves, each half into quarters, and hashes
// every quarter with strategy. The quarters are hashed concurrently since slow
// strategies dominate the cost of unlocking.
func SplitIntoLanes(key []byte, strategy HashStrategy) (HashLaneSet, error) {
	var lanes HashLaneSet
	if len(key) < LaneCount {
		return lanes, ErrShortKey
	}

	first, second := splitHalf(key)
	q1, q2 := splitHalf(first)
	q3, q4 := splitHalf(second)
	quarters := [LaneCount][]byte{q1, q2, q3, q4}

	var g errgroup.Group
	for i := range quarters {
		i := i
		g.Go(func() error {
			sum, err := strategy.Sum(quarters[i])
			if err != nil {
				return fmt.Errorf("lane %d: %w", i+1, err)
			}
			lanes[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		lanes.Destroy()
		return HashLaneSet{}, err
	}
	return lanes, nil
}

// splitHalf splits b in two; for odd lengths the first part is shorter.
func splitHalf(b []byte) ([]byte, []byte) {
	mid := len(b) / 2
	return b[:mid], b[mid:]
}

// Complete reports whether all four lanes are present.
func (l *HashLaneSet) Complete() bool {
	for _, lane := range l {
		if len(lane) == 0 {
			return false
		}
	}
	return true
}

// InnerKeys combines lanes 1+2 and 3+4 into the two second-level keys.
func (l *HashLaneSet) InnerKeys() (inner1, inner2 []byte, err error) {
	if !l.Complete() {
		return nil, nil, errors.New("incomplete lane set")
	}
	return combine(l[0], l[1]), combine(l[2], l[3]), nil
}

func combine(a, b []byte) []byte {
	h := sha256.New()
	h.Write(a)
	h.Write(b)
	return h.Sum(nil)
}

// Destroy zeroes every lane.
func (l *HashLaneSet) Destroy() {
	for i := range l {
		ClearBytes(l[i])
		l[i] = nil
	}
}
