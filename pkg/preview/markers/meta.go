package markers

// Meta is the marker index of a set of rendered pages.
type Meta struct {
	// UsableCounts holds, per page, the number of markers that stand
	// for a block.
	UsableCounts []int `json:"usableCounts"`
	TotalBlocks  int   `json:"totalBlocks"`
}

// Anchor identifies a marker by page and by its index among the usable
// markers of that page.
type Anchor struct {
	Page  int `json:"page"`
	Local int `json:"local"`
}

// FromRawCounts drops the sentinel from the last page with a non-zero
// count and sums the rest.
func FromRawCounts(raw []int) Meta {
	meta := Meta{UsableCounts: make([]int, len(raw))}

	last := -1
	for i, n := range raw {
		meta.UsableCounts[i] = max(0, n)
		if n > 0 {
			last = i
		}
	}
	if last >= 0 {
		meta.UsableCounts[last]--
	}

	for _, n := range meta.UsableCounts {
		meta.TotalBlocks += n
	}
	return meta
}

func (m Meta) Pages() int {
	return len(m.UsableCounts)
}

// Empty reports whether no block can be located.
func (m Meta) Empty() bool {
	return m.TotalBlocks == 0
}

// GlobalToLocal maps a flattened block index to its marker.
func (m Meta) GlobalToLocal(index int) (Anchor, bool) {
	if index < 0 || index >= m.TotalBlocks {
		return Anchor{}, false
	}
	for page, n := range m.UsableCounts {
		if index < n {
			return Anchor{Page: page, Local: index}, true
		}
		index -= n
	}
	return Anchor{}, false
}

// LocalToGlobal maps a marker to the flattened index of its block.
func (m Meta) LocalToGlobal(a Anchor) (int, bool) {
	if a.Page < 0 || a.Page >= len(m.UsableCounts) {
		return 0, false
	}
	if a.Local < 0 || a.Local >= m.UsableCounts[a.Page] {
		return 0, false
	}
	index := a.Local
	for _, n := range m.UsableCounts[:a.Page] {
		index += n
	}
	return index, true
}
