package config

import (
	"io/fs"
	"path"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FileName is the name of configuration files looked up by the CLI.
const FileName = "triptych.yaml"

var ErrRootConfigNotFound = errors.New("root configuration file not found")

// Loader finds configuration files in a file system. The root file
// lives at the top of fsys; nested files in the directories leading to
// a document override it.
type Loader struct {
	fsys   fs.FS
	name   string
	logger *zap.Logger
}

type LoaderOption func(*Loader)

func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

func NewLoader(name string, fsys fs.FS, opts ...LoaderOption) *Loader {
	if name == "" {
		panic("config name is not set")
	}

	l := &Loader{
		fsys:   fsys,
		name:   name,
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *Loader) RootConfig() ([]byte, error) {
	data, err := fs.ReadFile(l.fsys, l.name)
	if err != nil {
		return nil, ErrRootConfigNotFound
	}
	return data, nil
}

// ConfigChain returns the root configuration followed by the
// configurations found in every directory from the root down to dir.
// A file name in place of dir is replaced by its directory.
func (l *Loader) ConfigChain(dir string) ([][]byte, error) {
	dir, err := l.directory(dir)
	if err != nil {
		return nil, err
	}

	candidates := []string{l.name}
	if dir != "." {
		cur := ""
		for _, fragment := range strings.Split(dir, "/") {
			// [path.Join] instead of [filepath.Join] as fs.FS paths
			// are always slash separated.
			cur = path.Join(cur, fragment)
			candidates = append(candidates, path.Join(cur, l.name))
		}
	}

	var result [][]byte
	for _, name := range candidates {
		data, err := fs.ReadFile(l.fsys, name)
		switch {
		case err == nil:
			l.logger.Debug("found configuration file", zap.String("path", name))
			result = append(result, data)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, errors.Wrapf(err, "failed to read %s", name)
		}
	}
	return result, nil
}

func (l *Loader) directory(name string) (string, error) {
	name = path.Clean(strings.TrimPrefix(name, "./"))
	if name == "" || name == "." {
		return ".", nil
	}
	if !fs.ValidPath(name) {
		return "", errors.Errorf("invalid path %q", name)
	}

	info, err := fs.Stat(l.fsys, name)
	if err != nil {
		return "", errors.Wrapf(err, "failed to get the path info for %q", name)
	}
	if info.IsDir() {
		return name, nil
	}
	return path.Dir(name), nil
}
