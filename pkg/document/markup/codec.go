// Package markup is the text format behind the source view. A document
// is a YAML frontmatter holding the settings followed by markdown in
// which every block is announced by an attribute comment:
//
//	---
//	captions:
//	  numberTables: true
//	  numberImages: true
//	  position: below
//	---
//
//	<!-- {"id":"01HF53Z4RCVPRANKFBZYMS72QW","type":"heading"} -->
//	# Introduction
//
//	<!-- {"id":"01HF53Z4RCVPRANKFBZYMS72QX","type":"cover","align":"center"} -->
//
//	<!-- {"id":"01HF53Z4RCVPRANKFBZYMS72QY","type":"paragraph"} -->
//	Nested in the cover.
//
//	<!-- /cover -->
//
// Markdown without attribute comments is accepted too; block types are
// then inferred from the markdown structure.
package markup

import (
	stderrors "errors"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/stateful/triptych/pkg/document"
	"github.com/stateful/triptych/pkg/document/identity"
)

// ErrMalformed is returned by Parse when the source cannot be converted
// into a valid block tree.
var ErrMalformed = stderrors.New("malformed source")

// Codec implements [document.Codec].
type Codec struct {
	parser   parser.Parser
	resolver *identity.Resolver
	logger   *zap.Logger
}

var _ document.Codec = (*Codec)(nil)

type Option func(*Codec)

// WithResolver sets the resolver used to fill in missing or duplicate IDs.
func WithResolver(r *identity.Resolver) Option {
	return func(c *Codec) {
		c.resolver = r
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Codec) {
		c.logger = logger
	}
}

func New(opts ...Option) *Codec {
	c := &Codec{
		parser:   goldmark.DefaultParser(),
		resolver: identity.NewResolver(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Parse converts source into a validated block tree. Settings are nil
// when the source has no frontmatter.
func (c *Codec) Parse(source string) ([]*document.Block, *document.Settings, error) {
	raw, delimiter, content, err := splitFrontmatter([]byte(source))
	if err != nil {
		return nil, nil, err
	}

	var settings *document.Settings
	if delimiter != 0 {
		settings, err = decodeSettings(raw, delimiter)
		if err != nil {
			return nil, nil, err
		}
	}

	root := c.parser.Parse(text.NewReader(content))

	bp := newBlockParser(content, root)
	blocks, err := bp.parse()
	if err != nil {
		return nil, nil, err
	}

	if n := c.resolver.Assign(blocks); n > 0 {
		c.logger.Debug("assigned block IDs", zap.Int("count", n))
	}

	if err := document.Validate(blocks); err != nil {
		return nil, nil, errors.Wrapf(ErrMalformed, "%v", err)
	}

	return blocks, settings, nil
}

// Serialize writes the settings as frontmatter followed by the blocks.
// The output depends only on the input. Paragraph and list text that
// Parse would not read back as the same block is rejected with
// document.ErrInvalidBlock.
func (c *Codec) Serialize(blocks []*document.Block, settings document.Settings) (string, error) {
	fm, err := encodeSettings(settings)
	if err != nil {
		return "", err
	}

	s := &serializer{parser: c.parser}
	s.buf.Write(fm)
	if err := s.writeBlocks(blocks); err != nil {
		return "", err
	}
	return s.buf.String(), nil
}
