package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stateful/triptych/pkg/document"
	"github.com/stateful/triptych/pkg/document/state"
	"github.com/stateful/triptych/pkg/preview/markers"
	"github.com/stateful/triptych/pkg/preview/render"
	"github.com/stateful/triptych/pkg/preview/scrollsync"
	"github.com/stateful/triptych/pkg/store"
)

var errPreviewDisabled = errors.New("preview is disabled: no renderer configured")

type blocksRequest struct {
	Blocks []*document.Block `json:"blocks"`
}

type sourceRequest struct {
	Source string `json:"source"`
}

type modeRequest struct {
	Mode document.Mode `json:"mode"`
}

type historyResponse struct {
	Applied  bool           `json:"applied"`
	Snapshot state.Snapshot `json:"snapshot"`
}

type anchorResponse struct {
	Block int `json:"block"`
	Page  int `json:"page"`
	Local int `json:"local"`
}

// scrollSyncResponse carries the engine tuning with durations in
// milliseconds.
type scrollSyncResponse struct {
	AnchorOffset      float64 `json:"anchorOffset"`
	EditorSuppressMS  int64   `json:"editorSuppressMs"`
	PreviewSuppressMS int64   `json:"previewSuppressMs"`
	ActiveAnchorTTLMS int64   `json:"activeAnchorTtlMs"`
	MaxRetries        int     `json:"maxRetries"`
	MarkerFill        string  `json:"markerFill"`
}

func newScrollSyncResponse(cfg scrollsync.Config) scrollSyncResponse {
	return scrollSyncResponse{
		AnchorOffset:      cfg.AnchorOffset,
		EditorSuppressMS:  cfg.EditorSuppress.Milliseconds(),
		PreviewSuppressMS: cfg.PreviewSuppress.Milliseconds(),
		ActiveAnchorTTLMS: cfg.ActiveAnchorTTL.Milliseconds(),
		MaxRetries:        cfg.MaxRetries,
		MarkerFill:        cfg.MarkerFill,
	}
}

func (s *Server) handleScrollSync(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newScrollSyncResponse(s.scrollSync))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": ids})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.manager.Snapshot())
}

func (s *Server) handleSetBlocks(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	var req blocksRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := sess.manager.SetBlocks(req.Blocks); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.manager.Snapshot())
}

func (s *Server) handleSetSource(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	var req sourceRequest
	if !s.decode(w, r, &req) {
		return
	}
	sess.manager.SetSource(req.Source)
	writeJSON(w, http.StatusOK, sess.manager.Snapshot())
}

func (s *Server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	var settings document.Settings
	if !s.decode(w, r, &settings) {
		return
	}
	if err := sess.manager.SetSettings(settings); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.manager.Snapshot())
}

func (s *Server) handleSwitchMode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	var req modeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !req.Mode.Valid() {
		writeErrorMessage(w, http.StatusBadRequest, "mode must be visual or source")
		return
	}
	if err := sess.manager.SwitchMode(req.Mode); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.manager.Snapshot())
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	applied := sess.manager.Undo()
	writeJSON(w, http.StatusOK, historyResponse{Applied: applied, Snapshot: sess.manager.Snapshot()})
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	applied := sess.manager.Redo()
	writeJSON(w, http.StatusOK, historyResponse{Applied: applied, Snapshot: sess.manager.Snapshot()})
}

// handleSave persists the source as last edited, so unparsed source
// edits survive a save.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	snap := sess.manager.Snapshot()
	doc := store.Document{Source: snap.Source, Settings: snap.Settings}
	if err := s.store.Save(r.Context(), sess.id, doc); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	p, err := s.preview(r, sess)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleAnchor maps a flattened block index (?block=N) to its marker,
// or a marker (?page=P&local=L) to its block index.
func (s *Server) handleAnchor(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	var (
		block  int
		anchor markers.Anchor
		err    error
	)
	if query.Has("block") {
		block, err = strconv.Atoi(query.Get("block"))
	} else {
		anchor.Page, err = strconv.Atoi(query.Get("page"))
		if err == nil {
			anchor.Local, err = strconv.Atoi(query.Get("local"))
		}
	}
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "expected integer block, or page and local query parameters")
		return
	}

	p, err := s.preview(r, sess)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if query.Has("block") {
		anchor, ok = p.Meta.GlobalToLocal(block)
	} else {
		block, ok = p.Meta.LocalToGlobal(anchor)
	}
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "no marker for the requested position")
		return
	}
	writeJSON(w, http.StatusOK, anchorResponse{Block: block, Page: anchor.Page, Local: anchor.Local})
}

// preview renders the current source, reusing the pages rendered for
// the same session version.
func (s *Server) preview(r *http.Request, sess *session) (*preview, error) {
	if s.renderer == nil {
		return nil, errPreviewDisabled
	}

	cached, version := sess.cachedPreview()
	if cached != nil {
		return cached, nil
	}
	snap := sess.manager.Snapshot()

	pages, err := s.renderer.Render(r.Context(), snap.Source, snap.Settings)
	if err != nil {
		return nil, err
	}
	p := &preview{
		version: version,
		Pages:   pages,
		Meta:    s.scanner.Build(pages),
	}
	sess.storePreview(p)
	return p, nil
}

func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (*session, bool) {
	sess, err := s.session(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeErrorMessage(w, status, err.Error())
}

func statusFor(err error) int {
	var (
		statusErr        *render.StatusError
		validationErrors validator.ValidationErrors
	)
	switch {
	case errors.Is(err, store.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, state.ErrParse),
		errors.Is(err, document.ErrInvalidBlock),
		errors.As(err, &validationErrors):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errPreviewDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &statusErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
