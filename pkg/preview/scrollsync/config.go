package scrollsync

import (
	"time"

	"go.uber.org/zap"

	"github.com/stateful/triptych/pkg/preview/markers"
)

// Config tunes the engine. The suppression windows depend on how long
// the panes keep emitting scroll events after a programmatic scroll and
// should be adjusted to the renderer in use.
type Config struct {
	// AnchorOffset is the distance of the anchor line from the top of
	// a viewport.
	AnchorOffset float64
	// EditorSuppress is how long editor scroll events are ignored after
	// the engine scrolled the editor.
	EditorSuppress time.Duration
	// PreviewSuppress is how long preview scroll events are ignored after
	// the engine scrolled the preview.
	PreviewSuppress time.Duration
	// ActiveAnchorTTL is how long the active anchor stays highlighted.
	ActiveAnchorTTL time.Duration
	// MaxRetries bounds the frames spent waiting for a marker to be laid out.
	MaxRetries int
	// MarkerFill is the paint identifying markers in page markup.
	MarkerFill string
}

func DefaultConfig() Config {
	return Config{
		AnchorOffset:    80,
		EditorSuppress:  250 * time.Millisecond,
		PreviewSuppress: 250 * time.Millisecond,
		ActiveAnchorTTL: 600 * time.Millisecond,
		MaxRetries:      10,
		MarkerFill:      markers.DefaultFill,
	}
}

type Option func(*Engine)

func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}
