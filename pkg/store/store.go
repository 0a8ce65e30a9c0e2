// Package store persists documents.
package store

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stateful/triptych/pkg/document"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrInvalidID = errors.New("invalid document id")
)

// Document is the persisted form of a document. Source is the markup
// as last edited; Blocks are only set by callers that have no source.
type Document struct {
	Source   string            `json:"source,omitempty"`
	Blocks   []*document.Block `json:"blocks,omitempty"`
	Settings document.Settings `json:"settings"`
}

type Store interface {
	Load(ctx context.Context, id string) (*Document, error)
	Save(ctx context.Context, id string, doc Document) error
	List(ctx context.Context) ([]string, error)
}

const fileExt = ".json"

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateID rejects IDs that cannot be used as a file name, in
// particular anything that could escape the store directory.
func ValidateID(id string) error {
	if !validID.MatchString(id) || strings.Contains(id, "..") {
		return errors.Wrapf(ErrInvalidID, "%q", id)
	}
	return nil
}

// FileStore keeps one JSON file per document. Writes go to a temporary
// file renamed over the target, so readers never see a partial file.
type FileStore struct {
	fs     billy.Filesystem
	logger *zap.Logger
}

var _ Store = (*FileStore)(nil)

type Option func(*FileStore)

func WithLogger(logger *zap.Logger) Option {
	return func(s *FileStore) {
		s.logger = logger
	}
}

func NewFileStore(fs billy.Filesystem, opts ...Option) *FileStore {
	s := &FileStore{fs: fs, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewDirStore stores documents in dir on the local file system.
func NewDirStore(dir string, opts ...Option) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "failed to create store directory %s", dir)
	}
	return NewFileStore(osfs.New(dir), opts...), nil
}

func (s *FileStore) Load(ctx context.Context, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	f, err := s.fs.Open(id + fileExt)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(ErrNotFound, "%q", id)
		}
		return nil, errors.Wrapf(err, "failed to open document %s", id)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read document %s", id)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed to decode document %s", id)
	}
	return &doc, nil
}

func (s *FileStore) Save(ctx context.Context, id string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := document.ValidateSettings(doc.Settings); err != nil {
		return errors.Wrap(err, "invalid settings")
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}

	tmp, err := util.TempFile(s.fs, ".", "."+id+"-")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file")
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = s.fs.Rename(tmpName, id+fileExt)
	}
	if err != nil {
		_ = s.fs.Remove(tmpName)
		return errors.Wrapf(err, "failed to write document %s", id)
	}

	s.logger.Debug("saved document", zap.String("id", id), zap.Int("bytes", len(data)))
	return nil
}

// List returns the IDs of stored documents in lexical order.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := s.fs.ReadDir(".")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list documents")
	}

	var ids []string
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || path.Ext(name) != fileExt {
			continue
		}
		id := strings.TrimSuffix(name, fileExt)
		if ValidateID(id) == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
