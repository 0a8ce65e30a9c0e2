package ulid

import (
	"io"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     io.Reader
	entropyOnce sync.Once

	generatorMu sync.RWMutex
	generator   = DefaultGenerator
)

// DefaultEntropy returns a reader that generates monotonic ULID entropy.
// It is safe for concurrent use.
func DefaultEntropy() io.Reader {
	entropyOnce.Do(func() {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))

		entropy = &ulid.LockedMonotonicReader{
			MonotonicReader: ulid.Monotonic(rng, 0),
		}
	})
	return entropy
}

// ValidID reports whether id is a canonical, upper-case ULID.
//
//	 01AN4Z07BY      79KA1307SR9X4MV3
//	|----------|    |----------------|
//	 Timestamp          Randomness
func ValidID(id string) bool {
	if len(id) != ulid.EncodedSize {
		return false
	}
	if _, err := ulid.ParseStrict(id); err != nil {
		return false
	}
	for _, r := range id {
		if r >= 'a' && r <= 'z' {
			return false
		}
	}
	return true
}

// GenerateID generates a new block ID.
func GenerateID() string {
	generatorMu.RLock()
	gen := generator
	generatorMu.RUnlock()
	return gen()
}

func DefaultGenerator() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), DefaultEntropy()).String()
}

// MockGenerator replaces the generator. Tests use it to get
// predictable IDs; restore with ResetGenerator.
func MockGenerator(gen func() string) {
	generatorMu.Lock()
	generator = gen
	generatorMu.Unlock()
}

// SequenceGenerator returns a generator yielding prefix-1, prefix-2, ...
func SequenceGenerator(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

func ResetGenerator() {
	MockGenerator(DefaultGenerator)
}
