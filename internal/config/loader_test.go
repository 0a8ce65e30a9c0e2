package config

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewLoader(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		NewLoader("", fstest.MapFS{})
	}, "config name is not set")
}

func TestLoader_RootConfig(t *testing.T) {
	t.Parallel()

	t.Run("without root config", func(t *testing.T) {
		t.Parallel()

		loader := NewLoader(FileName, fstest.MapFS{}, WithLogger(zaptest.NewLogger(t)))
		result, err := loader.RootConfig()
		require.ErrorIs(t, err, ErrRootConfigNotFound)
		require.Nil(t, result)
	})

	t.Run("with root config", func(t *testing.T) {
		t.Parallel()

		data := []byte("version: v1alpha1\n")
		fsys := fstest.MapFS{
			FileName: {Data: data},
		}
		loader := NewLoader(FileName, fsys, WithLogger(zaptest.NewLogger(t)))
		result, err := loader.RootConfig()
		require.NoError(t, err)
		require.Equal(t, data, result)
	})
}

func TestLoader_ConfigChain(t *testing.T) {
	t.Parallel()

	t.Run("without root config", func(t *testing.T) {
		t.Parallel()

		loader := NewLoader(FileName, fstest.MapFS{}, WithLogger(zaptest.NewLogger(t)))
		result, err := loader.ConfigChain("")
		require.NoError(t, err)
		require.Nil(t, result)
	})

	fsys := fstest.MapFS{
		"triptych.yaml":              {Data: []byte("path:triptych.yaml")},
		"reports/triptych.yaml":      {Data: []byte("path:reports/triptych.yaml")},
		"reports/2024/triptych.yaml": {Data: []byte("path:reports/2024/triptych.yaml")},
		"reports/2024/q1.md":         {Data: []byte("# Q1")},
		"other/triptych.yaml":        {Data: []byte("path:other/triptych.yaml")},
		"without/config":             {Mode: fs.ModeDir},
		"without/config/document.md": {Data: []byte("# Doc")},
	}
	loader := NewLoader(FileName, fsys, WithLogger(zaptest.NewLogger(t)))

	t.Run("root config", func(t *testing.T) {
		result, err := loader.ConfigChain("")
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("path:triptych.yaml")}, result)
	})

	t.Run("nested config", func(t *testing.T) {
		result, err := loader.ConfigChain("reports")
		require.NoError(t, err)
		require.Equal(
			t,
			[][]byte{[]byte("path:triptych.yaml"), []byte("path:reports/triptych.yaml")},
			result,
		)
	})

	t.Run("document path", func(t *testing.T) {
		result, err := loader.ConfigChain("./reports/2024/q1.md")
		require.NoError(t, err)
		require.Equal(
			t,
			[][]byte{
				[]byte("path:triptych.yaml"),
				[]byte("path:reports/triptych.yaml"),
				[]byte("path:reports/2024/triptych.yaml"),
			},
			result,
		)
	})

	t.Run("nested without config", func(t *testing.T) {
		result, err := loader.ConfigChain("without/config/document.md")
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("path:triptych.yaml")}, result)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := loader.ConfigChain("missing")
		require.Error(t, err)
	})

	t.Run("outside the root", func(t *testing.T) {
		_, err := loader.ConfigChain("../secret")
		require.Error(t, err)
	})
}
