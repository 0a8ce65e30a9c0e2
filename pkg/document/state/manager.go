// Package state owns the live document: the canonical block tree, the
// source text derived from it, the document settings and the undo/redo
// history.
//
// Blocks and source are reconciled only at explicit points. Editing
// blocks re-derives the source immediately. Editing the source stores
// it verbatim; blocks are parsed from it when switching to the visual
// mode.
package state

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stateful/triptych/internal/frame"
	"github.com/stateful/triptych/pkg/document"
	"github.com/stateful/triptych/pkg/document/history"
	"github.com/stateful/triptych/pkg/document/identity"
)

// Manager is safe for concurrent use. Subscribers are called outside of
// the internal lock, in the goroutine that caused the change.
type Manager struct {
	codec     document.Codec
	scheduler frame.Scheduler
	resolver  *identity.Resolver
	logger    *zap.Logger

	mu            sync.Mutex
	history       *history.Stack
	blocks        []*document.Block
	source        string
	settings      document.Settings
	side          document.Side
	mode          document.Mode
	restoring     bool
	restoreHandle frame.Handle

	subscribers map[int]func(Snapshot)
	nextSubID   int
}

type Option func(*Manager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithHistoryCapacity bounds the number of retained snapshots.
func WithHistoryCapacity(n int) Option {
	return func(m *Manager) {
		m.history = history.New(n)
	}
}

func WithResolver(r *identity.Resolver) Option {
	return func(m *Manager) {
		m.resolver = r
	}
}

// New creates a manager holding an empty document with default settings
// in the visual mode.
func New(codec document.Codec, scheduler frame.Scheduler, opts ...Option) (*Manager, error) {
	m := &Manager{
		codec:       codec,
		scheduler:   scheduler,
		resolver:    identity.NewResolver(),
		logger:      zap.NewNop(),
		history:     history.New(history.DefaultCapacity),
		subscribers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.Reset(Initial{}); err != nil {
		return nil, err
	}
	return m, nil
}

// Initial describes a document loaded from outside, for example from
// a store.
type Initial struct {
	// Blocks take precedence over Source.
	Blocks []*document.Block
	Source string
	// Settings override the settings found in Source. Nil means the
	// source frontmatter, or defaults if there is none.
	Settings *document.Settings
	// Mode defaults to the visual mode.
	Mode document.Mode
}

// Reset replaces the whole state and starts a new history whose only
// snapshot is the loaded document. On error nothing changes.
func (m *Manager) Reset(init Initial) error {
	mode := init.Mode
	if mode == "" {
		mode = document.VisualMode
	}
	if !mode.Valid() {
		return errors.Errorf("invalid mode %q", mode)
	}

	settings := document.DefaultSettings()
	if init.Settings != nil {
		if err := document.ValidateSettings(*init.Settings); err != nil {
			return errors.Wrap(err, "invalid settings")
		}
		settings = *init.Settings
	}

	var (
		blocks []*document.Block
		source string
		err    error
	)

	switch {
	case init.Blocks != nil:
		blocks, err = m.prepare(init.Blocks)
		if err != nil {
			return err
		}
		source, err = m.codec.Serialize(blocks, settings)
		if err != nil {
			return errors.Wrap(err, "failed to serialize blocks")
		}
	case init.Source != "":
		parsed, parsedSettings, err := m.codec.Parse(init.Source)
		if err != nil {
			return &ParseError{Err: err}
		}
		if parsedSettings != nil && init.Settings == nil {
			settings = *parsedSettings
		}
		blocks = parsed
		source = init.Source
	default:
		source, err = m.codec.Serialize(nil, settings)
		if err != nil {
			return errors.Wrap(err, "failed to serialize blocks")
		}
	}

	m.mu.Lock()
	m.cancelRestoreLocked()
	m.blocks = blocks
	m.source = source
	m.settings = settings
	m.side = document.BlocksSide
	m.mode = mode
	m.history.Reset()
	m.pushLocked()
	snap, subs := m.changedLocked()
	m.mu.Unlock()

	m.logger.Debug("document reset", zap.Int("blocks", len(document.Flatten(blocks))), zap.String("mode", string(mode)))
	notify(subs, snap)
	return nil
}

// prepare copies and canonicalizes an incoming block tree.
func (m *Manager) prepare(blocks []*document.Block) ([]*document.Block, error) {
	next := document.CloneBlocks(blocks)
	document.Normalize(next)
	if err := document.Validate(next); err != nil {
		return nil, err
	}
	if n := m.resolver.Assign(next); n > 0 {
		m.logger.Debug("assigned block IDs", zap.Int("count", n))
	}
	return next, nil
}

// SetBlocks replaces the block tree and re-derives the source. Blocks
// become authoritative. A history snapshot is pushed unless an undo or
// redo is being applied in the current tick.
func (m *Manager) SetBlocks(blocks []*document.Block) error {
	next, err := m.prepare(blocks)
	if err != nil {
		return err
	}

	m.mu.Lock()
	source, err := m.codec.Serialize(next, m.settings)
	if err != nil {
		m.mu.Unlock()
		return errors.Wrap(err, "failed to serialize blocks")
	}
	m.blocks = next
	m.source = source
	m.side = document.BlocksSide
	if !m.restoring {
		m.pushLocked()
	}
	snap, subs := m.changedLocked()
	m.mu.Unlock()

	notify(subs, snap)
	return nil
}

// SetSource stores text verbatim and makes the source authoritative.
// Blocks are not parsed until the next switch to the visual mode.
func (m *Manager) SetSource(text string) {
	m.mu.Lock()
	m.source = text
	m.side = document.SourceSide
	snap, subs := m.changedLocked()
	m.mu.Unlock()

	notify(subs, snap)
}

// SetSettings updates the settings. When blocks are authoritative the
// source is re-derived and a history snapshot is pushed.
func (m *Manager) SetSettings(settings document.Settings) error {
	if err := document.ValidateSettings(settings); err != nil {
		return errors.Wrap(err, "invalid settings")
	}

	m.mu.Lock()
	if m.side == document.BlocksSide {
		source, err := m.codec.Serialize(m.blocks, settings)
		if err != nil {
			m.mu.Unlock()
			return errors.Wrap(err, "failed to serialize blocks")
		}
		m.source = source
	}
	m.settings = settings
	if m.side == document.BlocksSide && !m.restoring {
		m.pushLocked()
	}
	snap, subs := m.changedLocked()
	m.mu.Unlock()

	notify(subs, snap)
	return nil
}

// SwitchMode reconciles the representations and changes the mode.
// Switching to the visual mode parses the source if it is
// authoritative; settings found in its frontmatter are adopted.
// Switching to the source mode serializes the blocks if they are
// authoritative. History is never touched.
//
// A parse failure returns a *ParseError and leaves the state unchanged.
func (m *Manager) SwitchMode(target document.Mode) error {
	if !target.Valid() {
		return errors.Errorf("invalid mode %q", target)
	}

	m.mu.Lock()
	switch target {
	case document.VisualMode:
		if m.side == document.SourceSide {
			blocks, settings, err := m.codec.Parse(m.source)
			if err != nil {
				m.mu.Unlock()
				m.logger.Debug("failed to parse source", zap.Error(err))
				return &ParseError{Err: err}
			}
			m.blocks = blocks
			if settings != nil {
				m.settings = *settings
			}
			m.side = document.BlocksSide
		}
	case document.SourceMode:
		if m.side == document.BlocksSide {
			source, err := m.codec.Serialize(m.blocks, m.settings)
			if err != nil {
				m.mu.Unlock()
				return errors.Wrap(err, "failed to serialize blocks")
			}
			m.source = source
			m.side = document.SourceSide
		}
	}
	m.mode = target
	snap, subs := m.changedLocked()
	m.mu.Unlock()

	m.logger.Debug("switched mode", zap.String("mode", string(target)))
	notify(subs, snap)
	return nil
}

// Undo restores the previous snapshot. It reports false if there is none.
func (m *Manager) Undo() bool {
	return m.restore(m.history.Undo)
}

// Redo restores the next snapshot. It reports false if there is none.
func (m *Manager) Redo() bool {
	return m.restore(m.history.Redo)
}

func (m *Manager) restore(move func() (history.Snapshot, bool)) bool {
	m.mu.Lock()
	snap, ok := move()
	if !ok {
		m.mu.Unlock()
		return false
	}

	source, err := m.codec.Serialize(snap.Blocks, snap.Settings)
	if err != nil {
		// Snapshots hold trees that were serialized before.
		m.logger.Warn("failed to serialize restored snapshot", zap.Error(err))
		source = m.source
	}

	m.blocks = snap.Blocks
	m.settings = snap.Settings
	m.source = source
	m.side = document.BlocksSide

	// Updates echoed back while the restore is applied must not be
	// recorded; the flag is cleared on the next tick.
	m.cancelRestoreLocked()
	m.restoring = true
	m.restoreHandle = m.scheduler.AfterFunc(0, m.endRestore)

	state, subs := m.changedLocked()
	m.mu.Unlock()

	notify(subs, state)
	return true
}

func (m *Manager) endRestore() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restoring = false
	m.restoreHandle = nil
}

func (m *Manager) cancelRestoreLocked() {
	if m.restoreHandle != nil {
		m.restoreHandle.Cancel()
		m.restoreHandle = nil
	}
	m.restoring = false
}

// Restoring reports whether an undo or redo is being applied.
func (m *Manager) Restoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restoring
}

func (m *Manager) pushLocked() {
	m.history.Push(history.Snapshot{Blocks: m.blocks, Settings: m.settings})
	m.logger.Debug("pushed history", zap.Int("len", m.history.Len()))
}

// Snapshot returns a deep copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		Blocks:   document.CloneBlocks(m.blocks),
		Source:   m.source,
		Settings: m.settings,
		Side:     m.side,
		Mode:     m.mode,
		CanUndo:  m.history.CanUndo(),
		CanRedo:  m.history.CanRedo(),
	}
}

func (m *Manager) changedLocked() (Snapshot, []func(Snapshot)) {
	if len(m.subscribers) == 0 {
		return Snapshot{}, nil
	}
	subs := make([]func(Snapshot), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	return m.snapshotLocked(), subs
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}

// Subscribe registers fn to be called after every change. The returned
// function unregisters it.
func (m *Manager) Subscribe(fn func(Snapshot)) (cancel func()) {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}
