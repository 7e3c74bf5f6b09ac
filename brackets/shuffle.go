package brackets

import (
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand"
)

// Shuffler produces the random permutations used for bracket seeding. It is
// injected so tests can fix the seed and assert exact pairings; production
// wiring uses NewSystemShuffler.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type randShuffler struct {
	r *mathrand.Rand
}

// Shuffle runs the Fisher-Yates permutation of math/rand.
func (s *randShuffler) Shuffle(n int, swap func(i, j int)) {
	s.r.Shuffle(n, swap)
}

// NewSystemShuffler returns a shuffler seeded from the system entropy source.
func NewSystemShuffler() Shuffler {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("brackets: failed to read system entropy: " + err.Error())
	}
	seed := int64(binary.LittleEndian.Uint64(b[:]))
	return &randShuffler{r: mathrand.New(mathrand.NewSource(seed))}
}

// NewSeededShuffler returns a deterministic shuffler for tests.
func NewSeededShuffler(seed int64) Shuffler {
	return &randShuffler{r: mathrand.New(mathrand.NewSource(seed))}
}
