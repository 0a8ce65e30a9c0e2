package lru

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	id    string
	value int
}

func (i *item) Identifier() string { return i.id }

func TestCache(t *testing.T) {
	t.Run("EvictsLeastRecentlyUsed", func(t *testing.T) {
		var evicted []string
		c := NewCache(2, WithEvictHandler(func(i *item) { evicted = append(evicted, i.id) }))

		c.Add(&item{id: "a"})
		c.Add(&item{id: "b"})
		_, ok := c.GetByID("a")
		require.True(t, ok)
		c.Add(&item{id: "c"})

		assert.Equal(t, 2, c.Size())
		assert.Equal(t, []string{"b"}, evicted)

		_, ok = c.GetByID("b")
		assert.False(t, ok)
	})

	t.Run("AddReplaces", func(t *testing.T) {
		c := NewCache[*item](2)
		c.Add(&item{id: "a", value: 1})
		c.Add(&item{id: "a", value: 2})

		got, ok := c.GetByID("a")
		require.True(t, ok)
		assert.Equal(t, 2, got.value)
		assert.Equal(t, 1, c.Size())
	})

	t.Run("GetOrCreate", func(t *testing.T) {
		c := NewCache[*item](2)
		calls := 0
		gen := func() (*item, error) {
			calls++
			return &item{id: "x", value: calls}, nil
		}

		first, err := c.GetOrCreate("x", gen)
		require.NoError(t, err)
		second, err := c.GetOrCreate("x", gen)
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, 1, calls)

		_, err = c.GetOrCreate("y", func() (*item, error) { return nil, errors.New("boom") })
		require.Error(t, err)
		assert.Equal(t, 1, c.Size())
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		c := NewCache[*item](3)
		c.Add(&item{id: "a"})
		c.Add(&item{id: "b"})
		c.Add(&item{id: "c"})

		assert.True(t, c.DeleteByID("b"))
		assert.False(t, c.DeleteByID("b"))

		var ids []string
		for _, i := range c.List() {
			ids = append(ids, i.id)
		}
		assert.Equal(t, []string{"a", "c"}, ids)
	})
}
