package state

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stateful/triptych/internal/frame"
	"github.com/stateful/triptych/internal/ulid"
	"github.com/stateful/triptych/pkg/document"
	"github.com/stateful/triptych/pkg/document/history"
	"github.com/stateful/triptych/pkg/document/identity"
	"github.com/stateful/triptych/pkg/document/markup"
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, *frame.Manual) {
	t.Helper()

	sched := frame.NewManual(time.Unix(0, 0))
	resolver := identity.NewResolver(identity.WithGenerator(ulid.SequenceGenerator("gen")))
	codec := markup.New(markup.WithResolver(resolver))

	m, err := New(codec, sched, append([]Option{WithResolver(resolver)}, opts...)...)
	require.NoError(t, err)
	return m, sched
}

func paragraphs(texts ...string) []*document.Block {
	var result []*document.Block
	for i, text := range texts {
		result = append(result, &document.Block{
			ID:      "p" + strconv.Itoa(i),
			Type:    document.ParagraphType,
			Content: text,
		})
	}
	return result
}

func TestManagerInitialState(t *testing.T) {
	m, _ := newTestManager(t)
	snap := m.Snapshot()

	assert.Empty(t, snap.Blocks)
	assert.Equal(t, document.DefaultSettings(), snap.Settings)
	assert.Equal(t, document.BlocksSide, snap.Side)
	assert.Equal(t, document.VisualMode, snap.Mode)
	assert.False(t, snap.CanUndo)
	assert.False(t, snap.CanRedo)
	assert.Contains(t, snap.Source, "captions:")
}

func TestManagerSetBlocks(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.SetBlocks(paragraphs("hello")))

	snap := m.Snapshot()
	assert.Equal(t, paragraphs("hello"), snap.Blocks)
	assert.Equal(t, document.BlocksSide, snap.Side)
	assert.Contains(t, snap.Source, "hello\n")
	assert.True(t, snap.CanUndo)
}

func TestManagerSetBlocksRejectsInvalid(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.SetBlocks(paragraphs("kept")))

	err := m.SetBlocks([]*document.Block{{ID: "h", Type: document.HeadingType, Level: 9}})
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrInvalidBlock)
	assert.Equal(t, paragraphs("kept"), m.Snapshot().Blocks)
}

func TestManagerSetBlocksAssignsUniqueIDs(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.SetBlocks([]*document.Block{
		{ID: "dup", Type: document.ParagraphType, Content: "a"},
		{ID: "dup", Type: document.ParagraphType, Content: "b"},
		{Type: document.CoverType, Children: []*document.Block{
			{Type: document.ParagraphType, Content: "c"},
		}},
	}))

	assert.True(t, identity.Unique(m.Snapshot().Blocks))
}

func TestManagerSetBlocksCopiesInput(t *testing.T) {
	m, _ := newTestManager(t)
	blocks := paragraphs("original")

	require.NoError(t, m.SetBlocks(blocks))
	blocks[0].Content = "mutated"

	snap := m.Snapshot()
	assert.Equal(t, "original", snap.Blocks[0].Content)

	snap.Blocks[0].Content = "mutated"
	assert.Equal(t, "original", m.Snapshot().Blocks[0].Content)
}

func TestManagerUndoRedo(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.SetBlocks(paragraphs("a")))
	settings := document.DefaultSettings()
	settings.Captions.NumberImages = false
	require.NoError(t, m.SetSettings(settings))
	require.NoError(t, m.SetBlocks(paragraphs("a", "b")))

	require.True(t, m.Undo())
	snap := m.Snapshot()
	assert.Equal(t, paragraphs("a"), snap.Blocks)
	assert.Equal(t, settings, snap.Settings)
	assert.True(t, snap.CanRedo)

	require.True(t, m.Undo())
	snap = m.Snapshot()
	assert.Equal(t, paragraphs("a"), snap.Blocks)
	assert.Equal(t, document.DefaultSettings(), snap.Settings)

	require.True(t, m.Redo())
	require.True(t, m.Redo())
	snap = m.Snapshot()
	assert.Equal(t, paragraphs("a", "b"), snap.Blocks)
	assert.Equal(t, settings, snap.Settings)
	assert.False(t, m.Redo())
}

func TestManagerUndoUnderflow(t *testing.T) {
	m, _ := newTestManager(t)
	assert.False(t, m.Undo())
	assert.False(t, m.Redo())
}

func TestManagerRestoreSuppressesHistory(t *testing.T) {
	m, sched := newTestManager(t)

	require.NoError(t, m.SetBlocks(paragraphs("a")))
	require.NoError(t, m.SetBlocks(paragraphs("b")))

	require.True(t, m.Undo())
	assert.True(t, m.Restoring())

	// The view echoes the restored blocks in the same tick.
	require.NoError(t, m.SetBlocks(m.Snapshot().Blocks))
	assert.True(t, m.Snapshot().CanRedo, "echo must not discard the redo branch")

	sched.Advance(0)
	assert.False(t, m.Restoring())

	require.NoError(t, m.SetBlocks(paragraphs("c")))
	snap := m.Snapshot()
	assert.False(t, snap.CanRedo)

	require.True(t, m.Undo())
	assert.Equal(t, paragraphs("a"), m.Snapshot().Blocks)
}

func TestManagerHistoryBound(t *testing.T) {
	m, sched := newTestManager(t)

	for i := 0; i < 60; i++ {
		require.NoError(t, m.SetBlocks(paragraphs(strconv.Itoa(i))))
	}

	undos := 0
	for i := 0; i < history.DefaultCapacity; i++ {
		if m.Undo() {
			undos++
		}
		sched.Advance(0)
	}

	assert.Equal(t, history.DefaultCapacity-1, undos)
	assert.Equal(t, paragraphs("10"), m.Snapshot().Blocks)
	assert.False(t, m.Snapshot().CanUndo)
}

func TestManagerHistoryCapacityOption(t *testing.T) {
	m, _ := newTestManager(t, WithHistoryCapacity(3))

	for i := 0; i < 5; i++ {
		require.NoError(t, m.SetBlocks(paragraphs(strconv.Itoa(i))))
	}

	assert.True(t, m.Undo())
	assert.True(t, m.Undo())
	assert.False(t, m.Undo())
	assert.Equal(t, paragraphs("2"), m.Snapshot().Blocks)
}

func TestManagerSetSource(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.SetBlocks(paragraphs("a")))
	before := m.Snapshot()

	m.SetSource("# not parsed <!-- {")

	snap := m.Snapshot()
	assert.Equal(t, "# not parsed <!-- {", snap.Source)
	assert.Equal(t, document.SourceSide, snap.Side)
	assert.Equal(t, before.Blocks, snap.Blocks)
	assert.Equal(t, before.CanUndo, snap.CanUndo)
	assert.Equal(t, before.CanRedo, snap.CanRedo)
}

func TestManagerSetSettings(t *testing.T) {
	m, _ := newTestManager(t)

	t.Run("BlocksAuthoritative", func(t *testing.T) {
		settings := document.DefaultSettings()
		settings.Captions.Position = document.CaptionAbove
		require.NoError(t, m.SetSettings(settings))

		snap := m.Snapshot()
		assert.Equal(t, settings, snap.Settings)
		assert.Contains(t, snap.Source, "position: above")
		assert.True(t, snap.CanUndo)
	})

	t.Run("SourceAuthoritative", func(t *testing.T) {
		require.True(t, m.Undo())
		m.SetSource("plain text\n")

		settings := document.DefaultSettings()
		settings.Captions.NumberTables = false
		require.NoError(t, m.SetSettings(settings))

		snap := m.Snapshot()
		assert.Equal(t, "plain text\n", snap.Source)
		assert.False(t, snap.CanUndo)
	})

	t.Run("Invalid", func(t *testing.T) {
		settings := document.DefaultSettings()
		settings.Captions.Position = "left"
		assert.Error(t, m.SetSettings(settings))
	})
}

func TestManagerSwitchMode(t *testing.T) {
	t.Run("ToSourceSerializes", func(t *testing.T) {
		m, _ := newTestManager(t)
		require.NoError(t, m.SetBlocks(paragraphs("a")))
		before := m.Snapshot()

		require.NoError(t, m.SwitchMode(document.SourceMode))

		snap := m.Snapshot()
		assert.Equal(t, document.SourceMode, snap.Mode)
		assert.Equal(t, document.SourceSide, snap.Side)
		assert.Equal(t, before.Source, snap.Source)
		assert.Equal(t, before.CanUndo, snap.CanUndo)
	})

	t.Run("ToVisualParses", func(t *testing.T) {
		m, _ := newTestManager(t)
		require.NoError(t, m.SwitchMode(document.SourceMode))
		m.SetSource("---\ncaptions:\n  position: above\n---\n\n# Hi\n\nText.\n")

		require.NoError(t, m.SwitchMode(document.VisualMode))

		snap := m.Snapshot()
		assert.Equal(t, document.VisualMode, snap.Mode)
		assert.Equal(t, document.BlocksSide, snap.Side)
		require.Len(t, snap.Blocks, 2)
		assert.Equal(t, document.HeadingType, snap.Blocks[0].Type)
		assert.Equal(t, "Hi", snap.Blocks[0].Content)
		assert.Equal(t, document.CaptionAbove, snap.Settings.Captions.Position)
		assert.True(t, snap.Settings.Captions.NumberTables)
		assert.False(t, snap.CanUndo, "switching modes never records history")
	})

	t.Run("ParseFailureKeepsState", func(t *testing.T) {
		m, _ := newTestManager(t)
		require.NoError(t, m.SetBlocks(paragraphs("kept")))
		require.NoError(t, m.SwitchMode(document.SourceMode))
		m.SetSource("<!-- /cover -->\n")

		err := m.SwitchMode(document.VisualMode)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrParse)
		assert.ErrorIs(t, err, markup.ErrMalformed)

		snap := m.Snapshot()
		assert.Equal(t, document.SourceMode, snap.Mode)
		assert.Equal(t, document.SourceSide, snap.Side)
		assert.Equal(t, paragraphs("kept"), snap.Blocks)
		assert.Equal(t, "<!-- /cover -->\n", snap.Source)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		m, _ := newTestManager(t)
		blocks := []*document.Block{
			{ID: "h", Type: document.HeadingType, Level: 2, Content: "Title"},
			{ID: "c", Type: document.CoverType, Attrs: document.Attributes{Align: document.AlignCenter}, Children: []*document.Block{
				{ID: "img", Type: document.ImageType, Content: "a.png", Attrs: document.Attributes{Caption: "A"}},
			}},
			{ID: "code", Type: document.CodeType, Language: "go", Content: "package main\n"},
		}
		require.NoError(t, m.SetBlocks(blocks))

		require.NoError(t, m.SwitchMode(document.SourceMode))
		require.NoError(t, m.SwitchMode(document.VisualMode))

		assert.Equal(t, blocks, m.Snapshot().Blocks)
	})

	t.Run("RoundTripMarkdownContent", func(t *testing.T) {
		m, _ := newTestManager(t)
		blocks := []*document.Block{
			{ID: "h", Type: document.HeadingType, Level: 1, Content: "Title ##"},
			{ID: "p", Type: document.ParagraphType, Content: "# inline\n\nstill the same paragraph"},
			{ID: "l", Type: document.ListType, Content: "- a\n- b"},
		}
		require.NoError(t, m.SetBlocks(blocks))

		require.NoError(t, m.SwitchMode(document.SourceMode))
		require.NoError(t, m.SwitchMode(document.VisualMode))

		assert.Equal(t, blocks, m.Snapshot().Blocks)
	})

	t.Run("Invalid", func(t *testing.T) {
		m, _ := newTestManager(t)
		assert.Error(t, m.SwitchMode("split"))
	})
}

func TestManagerSetBlocksRejectsUnreadableMarkdown(t *testing.T) {
	testCases := []struct {
		name   string
		blocks []*document.Block
	}{
		{"CloseComment", paragraphs("<!-- /cover -->")},
		{"ParagraphWithHeading", paragraphs("first\n\n# second")},
		{"ListWithParagraph", []*document.Block{{ID: "l", Type: document.ListType, Content: "- a\n\nafter"}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, _ := newTestManager(t)
			require.NoError(t, m.SetBlocks(paragraphs("kept")))
			before := m.Snapshot()

			err := m.SetBlocks(tc.blocks)
			require.Error(t, err)
			assert.ErrorIs(t, err, document.ErrInvalidBlock)
			assert.Equal(t, before, m.Snapshot())

			require.NoError(t, m.SwitchMode(document.SourceMode))
			require.NoError(t, m.SwitchMode(document.VisualMode))
			assert.Equal(t, paragraphs("kept"), m.Snapshot().Blocks)
		})
	}
}

func TestManagerReset(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.SetBlocks(paragraphs("a")))

	source := "---\ncaptions:\n  numberImages: false\n---\n\nLoaded.\n"
	require.NoError(t, m.Reset(Initial{Source: source}))

	snap := m.Snapshot()
	assert.Equal(t, source, snap.Source)
	require.Len(t, snap.Blocks, 1)
	assert.Equal(t, "Loaded.", snap.Blocks[0].Content)
	assert.False(t, snap.Settings.Captions.NumberImages)
	assert.False(t, snap.CanUndo)

	err := m.Reset(Initial{Source: "<!-- /cover -->\n"})
	assert.ErrorIs(t, err, ErrParse)
	assert.Equal(t, source, m.Snapshot().Source)
}

func TestManagerSubscribe(t *testing.T) {
	m, _ := newTestManager(t)

	var got []Snapshot
	cancel := m.Subscribe(func(s Snapshot) {
		got = append(got, s)
	})

	require.NoError(t, m.SetBlocks(paragraphs("a")))
	m.SetSource("b")
	require.Len(t, got, 2)
	assert.Equal(t, document.BlocksSide, got[0].Side)
	assert.Equal(t, document.SourceSide, got[1].Side)

	cancel()
	m.SetSource("c")
	assert.Len(t, got, 2)
}
