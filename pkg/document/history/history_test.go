package history

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stateful/triptych/pkg/document"
)

func snapshotN(n int) Snapshot {
	return Snapshot{
		Blocks: []*document.Block{
			{ID: "p", Type: document.ParagraphType, Content: strconv.Itoa(n)},
		},
		Settings: document.DefaultSettings(),
	}
}

func content(t *testing.T, s Snapshot) string {
	t.Helper()
	require.Len(t, s.Blocks, 1)
	return s.Blocks[0].Content
}

func TestStackEmpty(t *testing.T) {
	s := New(0)
	assert.Equal(t, DefaultCapacity, s.Capacity())
	assert.False(t, s.CanUndo())
	assert.False(t, s.CanRedo())

	_, ok := s.Undo()
	assert.False(t, ok)
	_, ok = s.Redo()
	assert.False(t, ok)
}

func TestStackUndoRedo(t *testing.T) {
	s := New(10)
	s.Push(snapshotN(0))
	s.Push(snapshotN(1))
	s.Push(snapshotN(2))

	assert.True(t, s.CanUndo())
	assert.False(t, s.CanRedo())

	snap, ok := s.Undo()
	require.True(t, ok)
	assert.Equal(t, "1", content(t, snap))
	assert.True(t, s.CanRedo())

	snap, ok = s.Redo()
	require.True(t, ok)
	assert.Equal(t, "2", content(t, snap))

	_, ok = s.Redo()
	assert.False(t, ok)
}

func TestStackPushDiscardsFuture(t *testing.T) {
	s := New(10)
	for i := 0; i < 4; i++ {
		s.Push(snapshotN(i))
	}

	_, _ = s.Undo()
	_, _ = s.Undo()
	s.Push(snapshotN(9))

	assert.Equal(t, 3, s.Len())
	assert.False(t, s.CanRedo())

	snap, ok := s.Undo()
	require.True(t, ok)
	assert.Equal(t, "1", content(t, snap))
}

func TestStackCapacity(t *testing.T) {
	s := New(DefaultCapacity)
	for i := 0; i < 60; i++ {
		s.Push(snapshotN(i))
	}

	assert.Equal(t, DefaultCapacity, s.Len())
	assert.Equal(t, DefaultCapacity-1, s.Cursor())

	var last Snapshot
	undos := 0
	for {
		snap, ok := s.Undo()
		if !ok {
			break
		}
		last = snap
		undos++
	}

	assert.Equal(t, DefaultCapacity-1, undos)
	// The oldest retained snapshot, not the first one pushed.
	assert.Equal(t, "10", content(t, last))
}

func TestStackCopies(t *testing.T) {
	s := New(5)
	snap := snapshotN(0)
	s.Push(snap)
	s.Push(snapshotN(1))

	snap.Blocks[0].Content = "mutated"

	restored, ok := s.Undo()
	require.True(t, ok)
	assert.Equal(t, "0", content(t, restored))

	restored.Blocks[0].Content = "mutated again"
	_, _ = s.Redo()
	again, _ := s.Undo()
	assert.Equal(t, "0", content(t, again))
}

func TestStackReset(t *testing.T) {
	s := New(5)
	s.Push(snapshotN(0))
	s.Push(snapshotN(1))
	s.Reset()

	assert.Equal(t, 0, s.Len())
	assert.False(t, s.CanUndo())
}
