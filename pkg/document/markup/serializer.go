package markup

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/stateful/triptych/pkg/document"
)

type serializer struct {
	buf    bytes.Buffer
	parser parser.Parser
}

func (s *serializer) writeBlocks(blocks []*document.Block) error {
	for _, b := range blocks {
		s.buf.WriteByte('\n')
		if err := s.writeBlock(b); err != nil {
			return err
		}
	}
	return nil
}

func (s *serializer) writeBlock(b *document.Block) error {
	if err := writeAttributeComment(&s.buf, newBlockAttributes(b)); err != nil {
		return err
	}

	switch b.Type {
	case document.HeadingType:
		s.buf.WriteString(strings.Repeat("#", b.Level))
		if b.Content != "" {
			s.buf.WriteByte(' ')
			s.buf.WriteString(b.Content)
			if endsWithClosingSequence(b.Content) {
				s.buf.WriteString(" #")
			}
		}
		s.buf.WriteByte('\n')
	case document.ParagraphType, document.ListType:
		if err := s.checkMarkdown(b); err != nil {
			return err
		}
		if b.Content != "" {
			s.buf.WriteString(b.Content)
			s.buf.WriteByte('\n')
		}
	case document.CodeType:
		s.writeFenced(b.Language, b.Content)
	case document.MathType, document.TableType, document.ChartType:
		s.writeFenced(string(b.Type), b.Content)
	case document.ImageType:
		s.buf.WriteString("![")
		s.buf.WriteString(escapeImageAlt(b.Attrs.Caption))
		s.buf.WriteString("](")
		s.buf.WriteString(formatDestination(b.Content))
		s.buf.WriteString(")\n")
	case document.CoverType:
		if err := s.writeBlocks(b.Children); err != nil {
			return err
		}
		s.buf.WriteByte('\n')
		s.buf.WriteString(closeCoverComment + "\n")
	default:
		return errors.Errorf("cannot serialize block %q of type %q", b.ID, b.Type)
	}

	return nil
}

// endsWithClosingSequence reports whether heading text ends with a run
// of "#" that markdown would read as the optional closing sequence.
// Such headings get an explicit closing sequence of their own.
func endsWithClosingSequence(content string) bool {
	trimmed := strings.TrimRight(content, "#")
	if trimmed == content {
		return false
	}
	return trimmed == "" || strings.HasSuffix(trimmed, " ") || strings.HasSuffix(trimmed, "\t")
}

// checkMarkdown rejects paragraph and list text that would not read
// back as the same single block. The text is parsed on its own,
// followed by a close comment standing in for whatever comes next in
// the document. The close comment must remain a node of its own and
// no node of the text may be a block comment. Past its first node a
// paragraph may not hold nodes that start blocks of their own, and a
// list is exactly one node.
func (s *serializer) checkMarkdown(b *document.Block) error {
	if b.Content == "" {
		return nil
	}

	fail := func(reason string) error {
		return errors.Wrapf(document.ErrInvalidBlock, "%s %q %s", b.Type, b.ID, reason)
	}

	source := []byte(b.Content + "\n\n" + closeCoverComment + "\n")
	p := newBlockParser(source, s.parser.Parse(text.NewReader(source)))

	last := len(p.nodes) - 1
	if last < 0 {
		return fail("cannot be read back")
	}
	if kind, _, err := p.directive(p.nodes[last]); err != nil || kind != closeCoverDirectiveKind {
		return fail("leaves a construct open that swallows the following blocks")
	}
	if last == 0 {
		return fail("has no content markdown keeps, like a lone link reference definition")
	}

	for i := 0; i < last; i++ {
		if kind, _, err := p.directive(p.nodes[i]); err != nil || kind != noDirective {
			return fail("contains a block attribute or close comment")
		}
	}

	switch b.Type {
	case document.ParagraphType:
		for i := 1; i < last; i++ {
			if p.structural(i) {
				return fail("contains " + p.nodes[i].Kind().String() + " that starts a new block")
			}
		}
	case document.ListType:
		if last != 1 {
			return fail("continues past the list")
		}
	}
	return nil
}

// writeFenced writes a fence longer than any backtick run in content.
func (s *serializer) writeFenced(info, content string) {
	fence := strings.Repeat("`", max(3, longestRun(content, '`')+1))

	s.buf.WriteString(fence)
	s.buf.WriteString(info)
	s.buf.WriteByte('\n')
	if content != "" {
		s.buf.WriteString(content)
		s.buf.WriteByte('\n')
	}
	s.buf.WriteString(fence)
	s.buf.WriteByte('\n')
}

func longestRun(s string, c byte) int {
	longest, current := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			current++
			longest = max(longest, current)
		} else {
			current = 0
		}
	}
	return longest
}

var imageAltEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`, "\n", " ")

func escapeImageAlt(s string) string {
	return imageAltEscaper.Replace(s)
}

// formatDestination wraps destinations with spaces or parentheses in
// angle brackets.
func formatDestination(dest string) string {
	if strings.ContainsAny(dest, " ()") {
		return "<" + dest + ">"
	}
	return dest
}
