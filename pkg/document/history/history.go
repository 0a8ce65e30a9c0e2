// Package history implements a bounded, linear undo/redo log of
// document snapshots.
package history

import "github.com/stateful/triptych/pkg/document"

const DefaultCapacity = 50

// Snapshot is the content state restored by undo and redo.
type Snapshot struct {
	Blocks   []*document.Block
	Settings document.Settings
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Blocks:   document.CloneBlocks(s.Blocks),
		Settings: s.Settings,
	}
}

// Stack keeps at most capacity snapshots and a cursor pointing at the
// snapshot matching the live state. Pushing after an undo discards the
// snapshots past the cursor. Stack is not safe for concurrent use.
type Stack struct {
	entries  []Snapshot
	cursor   int
	capacity int
}

// New creates a stack. A non-positive capacity means DefaultCapacity.
func New(capacity int) *Stack {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stack{capacity: capacity}
}

// Push records a copy of snap after the cursor, evicting the oldest
// snapshot once the capacity is exceeded.
func (s *Stack) Push(snap Snapshot) {
	if len(s.entries) > 0 {
		s.entries = s.entries[:s.cursor+1]
	}

	s.entries = append(s.entries, snap.Clone())

	if over := len(s.entries) - s.capacity; over > 0 {
		clear(s.entries[:over])
		s.entries = s.entries[over:]
	}
	s.cursor = len(s.entries) - 1
}

// Undo moves the cursor back and returns a copy of the snapshot there.
func (s *Stack) Undo() (Snapshot, bool) {
	if !s.CanUndo() {
		return Snapshot{}, false
	}
	s.cursor--
	return s.entries[s.cursor].Clone(), true
}

// Redo moves the cursor forward and returns a copy of the snapshot there.
func (s *Stack) Redo() (Snapshot, bool) {
	if !s.CanRedo() {
		return Snapshot{}, false
	}
	s.cursor++
	return s.entries[s.cursor].Clone(), true
}

func (s *Stack) CanUndo() bool {
	return len(s.entries) > 0 && s.cursor > 0
}

func (s *Stack) CanRedo() bool {
	return len(s.entries) > 0 && s.cursor < len(s.entries)-1
}

func (s *Stack) Len() int { return len(s.entries) }

func (s *Stack) Cursor() int { return s.cursor }

func (s *Stack) Capacity() int { return s.capacity }

// Reset drops all snapshots.
func (s *Stack) Reset() {
	s.entries = nil
	s.cursor = 0
}
