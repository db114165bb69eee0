package dice

import (
	"math/rand"
	"time"
)

// Source supplies the randomness for dice. Implementations return a
// uniformly distributed integer in [min, max] inclusive, min <= max.
type Source interface {
	IntN(min, max int) int
}

// SourceFunc adapts a function to the Source interface. Useful for
// scripted values in tests and for callers with their own generator.
type SourceFunc func(min, max int) int

func (f SourceFunc) IntN(min, max int) int { return f(min, max) }

type randSource struct {
	rng *rand.Rand
}

func (s *randSource) IntN(min, max int) int {
	if max <= min {
		return min
	}
	return min + s.rng.Intn(max-min+1)
}

// NewSource returns a Source seeded from the given seed. The same seed
// replays the same roll sequence, which is how reproducible rolls work
// throughout dicecup.
func NewSource(seed int64) Source {
	return &randSource{rng: rand.New(rand.NewSource(seed))}
}

// DefaultSource returns a time-seeded Source.
func DefaultSource() Source {
	return NewSource(time.Now().UnixNano())
}

func orDefault(src Source) Source {
	if src == nil {
		return DefaultSource()
	}
	return src
}
