package identity

import (
	"fmt"

	"github.com/stateful/triptych/internal/ulid"
	"github.com/stateful/triptych/pkg/document"
)

const maxGenerateAttempts = 8

// Resolver keeps block IDs unique across a block tree.
type Resolver struct {
	generate func() string
}

type Option func(*Resolver)

// WithGenerator overrides the ID source, which defaults to ULIDs.
func WithGenerator(fn func() string) Option {
	return func(r *Resolver) {
		r.generate = fn
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{generate: ulid.GenerateID}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewID returns an ID that is not present in taken and records it there.
func (r *Resolver) NewID(taken map[string]struct{}) string {
	var id string
	for i := 0; i < maxGenerateAttempts; i++ {
		id = r.generate()
		if _, ok := taken[id]; !ok && id != "" {
			taken[id] = struct{}{}
			return id
		}
	}

	// The generator keeps colliding, which only happens with a mocked
	// generator. Disambiguate with a counter.
	base := id
	for n := 2; ; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
		if _, ok := taken[id]; !ok {
			taken[id] = struct{}{}
			return id
		}
	}
}

// Assign gives every block in the tree a unique ID, in place. A block
// keeps its ID unless it is empty or was already used by a block
// earlier in pre-order. Generated IDs never collide with any ID present
// in the tree. It returns the number of IDs assigned.
func (r *Resolver) Assign(blocks []*document.Block) int {
	taken := document.IDs(blocks)
	seen := make(map[string]struct{}, len(taken))
	assigned := 0

	document.Walk(blocks, func(b *document.Block, _ int) bool {
		if _, dup := seen[b.ID]; b.ID == "" || dup {
			b.ID = r.NewID(taken)
			assigned++
		}
		seen[b.ID] = struct{}{}
		return true
	})

	return assigned
}

// Unique reports whether all IDs in the tree are non-empty and distinct.
func Unique(blocks []*document.Block) bool {
	seen := make(map[string]struct{})
	ok := true
	document.Walk(blocks, func(b *document.Block, _ int) bool {
		if _, dup := seen[b.ID]; b.ID == "" || dup {
			ok = false
		}
		seen[b.ID] = struct{}{}
		return ok
	})
	return ok
}
