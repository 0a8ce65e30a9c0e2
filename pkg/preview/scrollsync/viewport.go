package scrollsync

import "github.com/stateful/triptych/pkg/preview/markers"

// Viewport is a vertically scrollable container. Offsets are in content
// coordinates: 0 is the top of the scrolled content.
type Viewport interface {
	ScrollTop() float64
	ScrollTo(top float64)
	// OnScroll registers fn for every scroll event, whether caused by
	// the user or by ScrollTo. The returned function unregisters it.
	OnScroll(fn func()) (unsubscribe func())
}

// Editor is the block editor pane. Every block element is tagged with
// its flattened index.
type Editor interface {
	Viewport
	BlockCount() int
	// BlockTop returns the offset of the element of the block with the
	// given flattened index.
	BlockTop(index int) (float64, bool)
}

// Preview is the pane showing the rendered pages.
type Preview interface {
	Viewport
	// PageTop returns the offset of the page container.
	PageTop(page int) (float64, bool)
	// MarkerTops returns the offsets of the marker elements of the page in
	// document order, sentinel included. It returns fewer offsets, or
	// none, while the page is still being laid out.
	MarkerTops(page int) []float64
	// SetActiveAnchor highlights the target of a scroll correction.
	// nil removes the highlight.
	SetActiveAnchor(anchor *markers.Anchor)
}
