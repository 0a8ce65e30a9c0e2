package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stateful/triptych/internal/ulid"
	"github.com/stateful/triptych/pkg/document"
)

func TestResolver(t *testing.T) {
	t.Run("AssignsMissingIDs", func(t *testing.T) {
		resolver := NewResolver(WithGenerator(ulid.SequenceGenerator("gen")))
		blocks := []*document.Block{
			{Type: document.ParagraphType},
			{ID: "keep", Type: document.CoverType, Children: []*document.Block{
				{Type: document.ParagraphType},
			}},
		}

		n := resolver.Assign(blocks)

		assert.Equal(t, 2, n)
		assert.Equal(t, "gen-1", blocks[0].ID)
		assert.Equal(t, "keep", blocks[1].ID)
		assert.Equal(t, "gen-2", blocks[1].Children[0].ID)
		assert.True(t, Unique(blocks))
	})

	t.Run("ReplacesLaterDuplicate", func(t *testing.T) {
		resolver := NewResolver(WithGenerator(ulid.SequenceGenerator("gen")))
		blocks := []*document.Block{
			{ID: "a", Type: document.ParagraphType},
			{ID: "a", Type: document.ParagraphType},
		}

		assert.False(t, Unique(blocks))
		assert.Equal(t, 1, resolver.Assign(blocks))
		assert.Equal(t, "a", blocks[0].ID)
		assert.Equal(t, "gen-1", blocks[1].ID)
	})

	t.Run("AvoidsExistingIDs", func(t *testing.T) {
		resolver := NewResolver(WithGenerator(ulid.SequenceGenerator("gen")))
		blocks := []*document.Block{
			{Type: document.ParagraphType},
			{ID: "gen-1", Type: document.ParagraphType},
		}

		resolver.Assign(blocks)

		assert.Equal(t, "gen-2", blocks[0].ID)
		assert.True(t, Unique(blocks))
	})

	t.Run("CollidingGenerator", func(t *testing.T) {
		resolver := NewResolver(WithGenerator(func() string { return "same" }))
		blocks := []*document.Block{
			{Type: document.ParagraphType},
			{Type: document.ParagraphType},
			{Type: document.ParagraphType},
		}

		resolver.Assign(blocks)

		assert.Equal(t, "same", blocks[0].ID)
		assert.Equal(t, "same-2", blocks[1].ID)
		assert.Equal(t, "same-3", blocks[2].ID)
	})

	t.Run("DefaultGeneratesULIDs", func(t *testing.T) {
		blocks := []*document.Block{{Type: document.ParagraphType}}
		NewResolver().Assign(blocks)
		assert.True(t, ulid.ValidID(blocks[0].ID))
	})
}
