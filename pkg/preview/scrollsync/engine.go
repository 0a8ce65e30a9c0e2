// Package scrollsync keeps the editor pane and the preview pane showing
// the same block.
//
// A genuine scroll of one pane schedules a single frame callback. When
// it fires, the block nearest to the anchor line of that pane is looked
// up and the other pane is scrolled to the same block. Scroll events
// caused by the engine itself are ignored for a short suppression
// window, which prevents the panes from correcting each other forever.
//
// The engine is not safe for concurrent use. All methods and all
// viewport callbacks must run on the goroutine driving the scheduler.
package scrollsync

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/stateful/triptych/internal/frame"
	"github.com/stateful/triptych/pkg/document"
	"github.com/stateful/triptych/pkg/preview/markers"
)

// side is the per-pane state of the sync state machine. A pane is idle
// when pending is nil and now is past ignoreUntil.
type side struct {
	pending     frame.Handle
	ignoreUntil time.Time
	// lastIndex is the block last reported by or scrolled to in this pane.
	lastIndex int
}

func (s *side) reset() {
	s.pending = nil
	s.ignoreUntil = time.Time{}
	s.lastIndex = -1
}

type Engine struct {
	editor    Editor
	preview   Preview
	scheduler frame.Scheduler
	cfg       Config
	logger    *zap.Logger

	scanner markers.Scanner
	meta    markers.Meta
	mode    document.Mode

	editorSide  side
	previewSide side

	// retry is the pending marker lookup of the current correction.
	retry       frame.Handle
	anchorClear frame.Handle

	// generation changes whenever the pages change or the engine is
	// closed; callbacks scheduled for an older generation do nothing.
	generation  int
	handles     frame.Group
	unsubscribe []func()
	closed      bool
}

// New creates an engine observing both panes. The engine stays inert
// until pages with markers are set.
func New(scheduler frame.Scheduler, editor Editor, preview Preview, opts ...Option) *Engine {
	e := &Engine{
		editor:    editor,
		preview:   preview,
		scheduler: scheduler,
		cfg:       DefaultConfig(),
		logger:    zap.NewNop(),
		mode:      document.VisualMode,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.scanner = markers.Scanner{Fill: e.cfg.MarkerFill}
	e.editorSide.reset()
	e.previewSide.reset()

	e.unsubscribe = append(e.unsubscribe,
		editor.OnScroll(e.onEditorScroll),
		preview.OnScroll(e.onPreviewScroll),
	)

	return e
}

// Register starts syncing the panes over the given pages and returns
// the function tearing it down.
func Register(scheduler frame.Scheduler, editor Editor, preview Preview, pages []markers.Page, opts ...Option) (teardown func()) {
	e := New(scheduler, editor, preview, opts...)
	e.SetPages(pages)
	return e.Close
}

// SetPages replaces the rendered pages. Pending work for the previous
// pages is cancelled.
func (e *Engine) SetPages(pages []markers.Page) {
	e.SetMeta(e.scanner.Build(pages))
}

// SetMeta is SetPages for callers that index the pages themselves.
func (e *Engine) SetMeta(meta markers.Meta) {
	if e.closed {
		return
	}
	e.invalidate()
	e.meta = meta
	e.logger.Debug("pages changed", zap.Int("pages", meta.Pages()), zap.Int("blocks", meta.TotalBlocks))
}

func (e *Engine) Meta() markers.Meta {
	return e.meta
}

// SetMode makes the engine inert outside of the visual mode.
func (e *Engine) SetMode(mode document.Mode) {
	if e.mode == mode {
		return
	}
	e.mode = mode
	if mode != document.VisualMode {
		e.invalidate()
	}
}

// Close unregisters the scroll listeners and cancels all pending work.
// It is safe to call more than once.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.invalidate()
	e.closed = true
	for _, fn := range e.unsubscribe {
		fn()
	}
	e.unsubscribe = nil
}

func (e *Engine) invalidate() {
	e.generation++
	e.handles.CancelAll()
	e.retry = nil
	if e.anchorClear != nil {
		e.anchorClear = nil
		e.preview.SetActiveAnchor(nil)
	}
	e.editorSide.reset()
	e.previewSide.reset()
}

func (e *Engine) active() bool {
	return !e.closed &&
		e.mode == document.VisualMode &&
		e.meta.TotalBlocks > 0 &&
		e.editor.BlockCount() > 0
}

func (e *Engine) requestFrame(fn func()) frame.Handle {
	gen := e.generation
	var h frame.Handle
	h = e.handles.Track(e.scheduler.RequestFrame(func() {
		e.handles.Forget(h)
		if gen != e.generation {
			return
		}
		fn()
	}))
	return h
}

func (e *Engine) afterFunc(d time.Duration, fn func()) frame.Handle {
	gen := e.generation
	var h frame.Handle
	h = e.handles.Track(e.scheduler.AfterFunc(d, func() {
		e.handles.Forget(h)
		if gen != e.generation {
			return
		}
		fn()
	}))
	return h
}

func (e *Engine) onEditorScroll() {
	e.onScroll(&e.editorSide, e.syncEditorToPreview)
}

func (e *Engine) onPreviewScroll() {
	e.onScroll(&e.previewSide, e.syncPreviewToEditor)
}

// onScroll coalesces genuine scroll events of one pane into a single
// frame callback. Events arriving while one is pending are dropped.
func (e *Engine) onScroll(s *side, sync func()) {
	if !e.active() {
		return
	}
	if e.scheduler.Now().Before(s.ignoreUntil) {
		return
	}
	if s.pending != nil {
		return
	}
	s.pending = e.requestFrame(func() {
		s.pending = nil
		if e.active() {
			sync()
		}
	})
}

func (e *Engine) anchorLine(v Viewport) float64 {
	return v.ScrollTop() + e.cfg.AnchorOffset
}

// nearestBlock returns the flattened index of the editor block nearest
// to the editor anchor line.
func (e *Engine) nearestBlock() (int, bool) {
	n := newNearest(e.anchorLine(e.editor))
	for i, count := 0, e.editor.BlockCount(); i < count; i++ {
		if top, ok := e.editor.BlockTop(i); ok {
			n.offer(i, top)
		}
	}
	return n.result()
}

// nearestMarker returns the flattened index of the usable marker
// nearest to the preview anchor line, over all laid out pages.
func (e *Engine) nearestMarker() (int, bool) {
	n := newNearest(e.anchorLine(e.preview))
	base := 0
	for page, usable := range e.meta.UsableCounts {
		tops := e.preview.MarkerTops(page)
		for local := 0; local < usable && local < len(tops); local++ {
			n.offer(base+local, tops[local])
		}
		base += usable
	}
	return n.result()
}

func (e *Engine) syncEditorToPreview() {
	index, ok := e.nearestBlock()
	if !ok || index == e.editorSide.lastIndex {
		return
	}
	e.editorSide.lastIndex = index

	if e.retry != nil {
		e.retry.Cancel()
		e.retry = nil
	}

	anchor, ok := e.meta.GlobalToLocal(index)
	if !ok {
		e.logger.Debug("block has no marker", zap.Int("index", index), zap.Int("total", e.meta.TotalBlocks))
		return
	}

	e.setActiveAnchor(anchor)

	pageTop, ok := e.preview.PageTop(anchor.Page)
	if !ok {
		e.logger.Debug("page not found", zap.Int("page", anchor.Page))
		return
	}

	e.previewSide.lastIndex = index
	e.scrollPreview(pageTop - e.cfg.AnchorOffset)
	e.locateMarker(anchor, 1)
}

// locateMarker aligns the marker with the preview anchor line, retrying
// on the following frames while the page is being laid out.
func (e *Engine) locateMarker(anchor markers.Anchor, attempt int) {
	tops := e.preview.MarkerTops(anchor.Page)
	if anchor.Local < len(tops) {
		e.retry = nil
		target := tops[anchor.Local] - e.cfg.AnchorOffset
		if math.Abs(target-e.preview.ScrollTop()) > epsilon {
			e.scrollPreview(target)
		}
		return
	}

	if attempt >= e.cfg.MaxRetries {
		e.retry = nil
		e.logger.Debug("marker not laid out, giving up",
			zap.Int("page", anchor.Page),
			zap.Int("local", anchor.Local),
			zap.Int("attempts", attempt),
		)
		return
	}

	e.retry = e.requestFrame(func() {
		e.locateMarker(anchor, attempt+1)
	})
}

func (e *Engine) syncPreviewToEditor() {
	index, ok := e.nearestMarker()
	if !ok || index == e.previewSide.lastIndex {
		return
	}
	e.previewSide.lastIndex = index

	// The user took over the preview.
	if e.retry != nil {
		e.retry.Cancel()
		e.retry = nil
	}

	top, ok := e.editor.BlockTop(index)
	if !ok {
		e.logger.Debug("editor block not found", zap.Int("index", index))
		return
	}

	e.editorSide.lastIndex = index
	e.scrollEditor(top - e.cfg.AnchorOffset)
}

func (e *Engine) scrollPreview(top float64) {
	e.suppress(&e.previewSide, e.cfg.PreviewSuppress)
	e.preview.ScrollTo(top)
}

func (e *Engine) scrollEditor(top float64) {
	e.suppress(&e.editorSide, e.cfg.EditorSuppress)
	e.editor.ScrollTo(top)
}

// suppress opens the ignore window of a pane about to be scrolled by
// the engine and drops its pending computation, which would read the
// position being replaced.
func (e *Engine) suppress(s *side, d time.Duration) {
	s.ignoreUntil = e.scheduler.Now().Add(d)
	if s.pending != nil {
		s.pending.Cancel()
		s.pending = nil
	}
}

// setActiveAnchor highlights the anchor and schedules its removal,
// whether or not the marker is ever found.
func (e *Engine) setActiveAnchor(anchor markers.Anchor) {
	if e.anchorClear != nil {
		e.anchorClear.Cancel()
	}
	e.preview.SetActiveAnchor(&anchor)
	e.anchorClear = e.afterFunc(e.cfg.ActiveAnchorTTL, func() {
		e.anchorClear = nil
		e.preview.SetActiveAnchor(nil)
	})
}
