package scrollsync

// epsilon absorbs rounding of layout offsets.
const epsilon = 0.5

// nearest picks the element closest to the anchor line: the topmost
// element at or below the line, or else the lowest element above it.
// Ties go to the element offered first.
type nearest struct {
	line float64

	below, above       int
	belowTop, aboveTop float64
	hasBelow, hasAbove bool
}

func newNearest(line float64) *nearest {
	return &nearest{line: line}
}

func (n *nearest) offer(index int, top float64) {
	if top >= n.line-epsilon {
		if !n.hasBelow || top < n.belowTop {
			n.below, n.belowTop, n.hasBelow = index, top, true
		}
		return
	}
	if !n.hasAbove || top > n.aboveTop {
		n.above, n.aboveTop, n.hasAbove = index, top, true
	}
}

func (n *nearest) result() (int, bool) {
	switch {
	case n.hasBelow:
		return n.below, true
	case n.hasAbove:
		return n.above, true
	default:
		return 0, false
	}
}
