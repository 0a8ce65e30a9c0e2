package markup

import (
	"bytes"
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/stateful/triptych/pkg/document"
)

const (
	yamlDelimiter = '-'
	tomlDelimiter = '+'
)

// splitFrontmatter separates a leading "---" (YAML) or "+++" (TOML)
// frontmatter from the content. raw excludes the delimiter lines.
// According to the convention, a delimiter line has exactly three
// delimiter characters.
func splitFrontmatter(source []byte) (raw []byte, delimiter byte, content []byte, _ error) {
	for _, d := range []byte{yamlDelimiter, tomlDelimiter} {
		fence := bytes.Repeat([]byte{d}, 3)

		first, rest, ok := cutLine(source)
		if !ok || !bytes.Equal(bytes.TrimRight(first, "\r"), fence) {
			continue
		}

		for body := rest; ; {
			line, next, more := cutLine(body)
			if bytes.Equal(bytes.TrimRight(line, "\r"), fence) {
				return rest[:len(rest)-len(body)], d, next, nil
			}
			if !more {
				return nil, 0, nil, errors.Wrap(ErrMalformed, "unterminated frontmatter")
			}
			body = next
		}
	}
	return nil, 0, source, nil
}

// cutLine returns the first line without its line feed and the
// remainder. ok is false when no line feed was found.
func cutLine(data []byte) (line, rest []byte, ok bool) {
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		return data[:idx], data[idx+1:], true
	}
	return data, nil, false
}

func decodeSettings(raw []byte, delimiter byte) (*document.Settings, error) {
	settings := document.DefaultSettings()

	switch delimiter {
	case yamlDelimiter:
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(ErrMalformed, "invalid yaml frontmatter: %v", err)
		}
	case tomlDelimiter:
		dec := toml.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&settings); err != nil {
			return nil, errors.Wrapf(ErrMalformed, "invalid toml frontmatter: %v", err)
		}
	default:
		panic("invariant: unknown frontmatter delimiter")
	}

	if err := document.ValidateSettings(settings); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "invalid settings: %v", err)
	}

	return &settings, nil
}

func encodeSettings(settings document.Settings) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(settings); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := encoder.Close(); err != nil {
		return nil, errors.WithStack(err)
	}

	buf.WriteString("---\n")
	return buf.Bytes(), nil
}
