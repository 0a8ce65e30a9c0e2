package state

import (
	"github.com/pkg/errors"

	"github.com/stateful/triptych/pkg/document"
)

// ErrParse matches errors returned when the source cannot be parsed
// into blocks.
var ErrParse = errors.New("cannot parse source")

// ParseError wraps the codec error. It matches both ErrParse and the
// underlying error in errors.Is.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return ErrParse.Error() + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Snapshot is a copy of the manager state handed to the application.
type Snapshot struct {
	Blocks   []*document.Block `json:"blocks"`
	Source   string            `json:"source"`
	Settings document.Settings `json:"settings"`
	// Side is the representation edited last.
	Side    document.Side `json:"side"`
	Mode    document.Mode `json:"mode"`
	CanUndo bool          `json:"canUndo"`
	CanRedo bool          `json:"canRedo"`
}
