package server

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stateful/triptych/pkg/document"
	"github.com/stateful/triptych/pkg/document/state"
	"github.com/stateful/triptych/pkg/preview/markers"
	"github.com/stateful/triptych/pkg/store"
)

type session struct {
	id          string
	manager     *state.Manager
	unsubscribe func()

	mu sync.Mutex
	// version counts manager changes. A cached preview is valid only
	// for the version it was rendered from.
	version uint64
	preview *preview
}

func (s *session) Identifier() string { return s.id }

func (s *session) changed(state.Snapshot) {
	s.mu.Lock()
	s.version++
	s.preview = nil
	s.mu.Unlock()
}

func (s *session) close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

type preview struct {
	version uint64
	Pages   []markers.Page `json:"pages"`
	Meta    markers.Meta   `json:"meta"`
}

func (s *session) cachedPreview() (*preview, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview, s.version
}

func (s *session) storePreview(p *preview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.version == s.version {
		s.preview = p
	}
}

// session returns the open session for id, loading the document from
// the store on first access. Unknown documents start empty.
func (s *Server) session(ctx context.Context, id string) (*session, error) {
	if err := store.ValidateID(id); err != nil {
		return nil, err
	}

	return s.sessions.GetOrCreate(id, func() (*session, error) {
		var opts []state.Option
		opts = append(opts, state.WithLogger(s.logger.With(zap.String("document", id))))
		if s.cfg.HistoryCapacity > 0 {
			opts = append(opts, state.WithHistoryCapacity(s.cfg.HistoryCapacity))
		}

		manager, err := state.New(s.codec, s.scheduler, opts...)
		if err != nil {
			return nil, err
		}

		doc, err := s.store.Load(ctx, id)
		switch {
		case err == nil:
			if err := s.open(manager, doc); err != nil {
				return nil, errors.Wrapf(err, "failed to open document %s", id)
			}
			s.logger.Info("opened document", zap.String("id", id))
		case errors.Is(err, store.ErrNotFound):
			s.logger.Info("created document", zap.String("id", id))
		default:
			return nil, err
		}

		sess := &session{id: id, manager: manager}
		sess.unsubscribe = manager.Subscribe(sess.changed)
		return sess, nil
	})
}

// open loads doc into manager. A stored source wins over the stored
// settings since its frontmatter is what the user edited last. A source
// that no longer parses is opened in the source mode for repair.
func (s *Server) open(manager *state.Manager, doc *store.Document) error {
	if doc.Source == "" {
		settings := doc.Settings
		return manager.Reset(state.Initial{Blocks: doc.Blocks, Settings: &settings})
	}

	err := manager.Reset(state.Initial{Source: doc.Source})
	if !errors.Is(err, state.ErrParse) {
		return err
	}

	s.logger.Warn("stored source does not parse, opening in source mode", zap.Error(err))
	settings := doc.Settings
	if err := manager.Reset(state.Initial{Settings: &settings, Mode: document.SourceMode}); err != nil {
		return err
	}
	manager.SetSource(doc.Source)
	return nil
}
