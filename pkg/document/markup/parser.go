package markup

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark/ast"

	"github.com/stateful/triptych/pkg/document"
)

// blockParser turns the top-level goldmark nodes into blocks.
//
// An attribute comment starts a segment that spans all nodes up to the
// next attribute or close comment. The first node of a segment is the
// declared block. Nodes following it that cannot belong to that block,
// for example a heading typed below a paragraph in the source view,
// become blocks of their own.
type blockParser struct {
	source []byte
	nodes  []ast.Node
	starts []int

	root  []*document.Block
	stack []*document.Block
}

func newBlockParser(source []byte, root ast.Node) *blockParser {
	p := &blockParser{source: source}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		p.nodes = append(p.nodes, n)
	}
	p.starts = nodeStarts(source, p.nodes)
	return p
}

func (p *blockParser) parse() ([]*document.Block, error) {
	var (
		pending *blockAttributes
		from    int
	)

	flush := func(to int) error {
		if pending == nil {
			return nil
		}
		attrs := *pending
		pending = nil
		return p.declared(attrs, from, to)
	}

	for i, n := range p.nodes {
		kind, attrs, err := p.directive(n)
		if err != nil {
			return nil, err
		}

		switch kind {
		case attributesDirective:
			if err := flush(i); err != nil {
				return nil, err
			}
			if attrs.Type == document.CoverType {
				p.open(attrs)
				continue
			}
			pending, from = &attrs, i+1
		case closeCoverDirectiveKind:
			if err := flush(i); err != nil {
				return nil, err
			}
			if err := p.close(); err != nil {
				return nil, err
			}
		default:
			if pending != nil {
				continue
			}
			if err := p.standalone(i); err != nil {
				return nil, err
			}
		}
	}

	if err := flush(len(p.nodes)); err != nil {
		return nil, err
	}

	if len(p.stack) > 0 {
		return nil, errors.Wrapf(ErrMalformed, "cover %q is not closed", p.stack[len(p.stack)-1].ID)
	}

	return p.root, nil
}

func (p *blockParser) directive(n ast.Node) (directiveKind, blockAttributes, error) {
	html, ok := n.(*ast.HTMLBlock)
	if !ok || html.HTMLBlockType != ast.HTMLBlockType2 {
		return noDirective, blockAttributes{}, nil
	}

	var buf bytes.Buffer
	lines := html.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(p.source))
	}
	if html.HasClosure() {
		buf.Write(html.ClosureLine.Value(p.source))
	}

	body, ok := commentBody(buf.Bytes())
	if !ok {
		return noDirective, blockAttributes{}, nil
	}
	return parseDirective(body)
}

func (p *blockParser) append(b *document.Block) {
	if len(p.stack) > 0 {
		top := p.stack[len(p.stack)-1]
		top.Children = append(top.Children, b)
		return
	}
	p.root = append(p.root, b)
}

func (p *blockParser) open(attrs blockAttributes) {
	cover := &document.Block{
		ID:    attrs.ID,
		Type:  document.CoverType,
		Attrs: attrs.Attributes,
	}
	p.append(cover)
	p.stack = append(p.stack, cover)
}

func (p *blockParser) close() error {
	if len(p.stack) == 0 {
		return errors.Wrap(ErrMalformed, "unexpected close of a cover")
	}
	p.stack = p.stack[:len(p.stack)-1]
	return nil
}

// declared builds the block announced by attrs from nodes[from:to].
func (p *blockParser) declared(attrs blockAttributes, from, to int) error {
	b := &document.Block{
		ID:    attrs.ID,
		Type:  attrs.Type,
		Attrs: attrs.Attributes,
	}

	if from == to {
		if b.Type == "" {
			b.Type = document.ParagraphType
		}
		p.append(b)
		return nil
	}

	if b.Type == "" {
		b.Type = p.inferType(from)
	}

	n := p.nodes[from]
	next := from + 1

	mismatch := func() error {
		return errors.Wrapf(ErrMalformed, "block %q declared as %s but found %s", b.ID, b.Type, n.Kind())
	}

	switch b.Type {
	case document.HeadingType:
		h, ok := n.(*ast.Heading)
		if !ok {
			return mismatch()
		}
		b.Level = h.Level
		b.Content = headingText(h, p.source)
	case document.ParagraphType:
		for next < to && !p.structural(next) {
			next++
		}
		b.Content = p.raw(from, next)
	case document.ListType:
		b.Content = p.raw(from, next)
	case document.CodeType, document.MathType, document.TableType, document.ChartType:
		f, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return mismatch()
		}
		b.Content = fencedBody(f, p.source)
		if b.Type == document.CodeType {
			b.Language = fencedLanguage(f, p.source)
		}
	case document.ImageType:
		img := soleImage(n)
		if img == nil {
			return mismatch()
		}
		b.Content = string(img.Destination)
		if b.Attrs.Caption == "" {
			b.Attrs.Caption = imageAlt(img, p.source)
		}
	default:
		return errors.Wrapf(ErrMalformed, "unsupported block type %q", b.Type)
	}

	p.append(b)

	for i := next; i < to; i++ {
		if err := p.standalone(i); err != nil {
			return err
		}
	}
	return nil
}

// standalone infers a block from a node not preceded by an attribute comment.
func (p *blockParser) standalone(i int) error {
	b := &document.Block{}

	switch n := p.nodes[i].(type) {
	case *ast.Heading:
		b.Type = document.HeadingType
		b.Level = n.Level
		b.Content = headingText(n, p.source)
	case *ast.FencedCodeBlock:
		var info []byte
		if n.Info != nil {
			info = n.Info.Segment.Value(p.source)
		}
		attrs, err := parseInfoAttributes(info)
		if err != nil {
			return err
		}
		lang := fencedLanguage(n, p.source)

		b.ID = attrs.ID
		b.Attrs = attrs.Attributes
		b.Type = attrs.Type
		if b.Type == "" {
			b.Type = typeForLanguage(lang)
		}
		switch b.Type {
		case document.CodeType:
			b.Language = lang
		case document.MathType, document.TableType, document.ChartType:
		default:
			return errors.Wrapf(ErrMalformed, "code block cannot hold a %q block", b.Type)
		}
		b.Content = fencedBody(n, p.source)
	case *ast.List:
		b.Type = document.ListType
		b.Content = p.raw(i, i+1)
	default:
		if img := soleImage(n); img != nil {
			b.Type = document.ImageType
			b.Content = string(img.Destination)
			b.Attrs.Caption = imageAlt(img, p.source)
			break
		}
		b.Type = document.ParagraphType
		b.Content = p.raw(i, i+1)
	}

	p.append(b)
	return nil
}

func (p *blockParser) inferType(i int) document.BlockType {
	switch n := p.nodes[i].(type) {
	case *ast.Heading:
		return document.HeadingType
	case *ast.FencedCodeBlock:
		return typeForLanguage(fencedLanguage(n, p.source))
	case *ast.List:
		return document.ListType
	default:
		if soleImage(n) != nil {
			return document.ImageType
		}
		return document.ParagraphType
	}
}

// structural reports whether the node always starts a block of its own.
func (p *blockParser) structural(i int) bool {
	switch n := p.nodes[i].(type) {
	case *ast.Heading, *ast.FencedCodeBlock, *ast.List:
		return true
	default:
		return soleImage(n) != nil
	}
}

// raw returns the source text of nodes[from:to], including whatever
// goldmark dropped from the tree in between, like link reference
// definitions.
func (p *blockParser) raw(from, to int) string {
	end := len(p.source)
	if to < len(p.nodes) {
		end = p.starts[to]
	}
	return trimMarkdown(string(p.source[p.starts[from]:end]))
}

func trimMarkdown(s string) string {
	return strings.TrimLeft(strings.TrimRight(s, " \t\r\n"), "\r\n")
}

func typeForLanguage(lang string) document.BlockType {
	switch lang {
	case string(document.MathType), "latex", "tex":
		return document.MathType
	case string(document.TableType):
		return document.TableType
	case string(document.ChartType):
		return document.ChartType
	default:
		return document.CodeType
	}
}

func headingText(h *ast.Heading, source []byte) string {
	var buf bytes.Buffer
	lines := h.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(source))
		buf.WriteByte(' ')
	}
	return strings.Join(strings.Fields(buf.String()), " ")
}

// fencedBody returns the literal content of a fenced code block
// without the line feed preceding the closing fence.
func fencedBody(f *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := f.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(source))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// fencedLanguage returns the language of the info string. Info strings
// made only of attributes, like "{\"id\":\"x\"}", have no language.
func fencedLanguage(f *ast.FencedCodeBlock, source []byte) string {
	lang := string(f.Language(source))
	if strings.HasPrefix(lang, "{") {
		return ""
	}
	return lang
}

// soleImage returns the image of a paragraph made of a single image.
func soleImage(n ast.Node) *ast.Image {
	para, ok := n.(*ast.Paragraph)
	if !ok || para.ChildCount() != 1 {
		return nil
	}
	img, _ := para.FirstChild().(*ast.Image)
	return img
}

func imageAlt(img *ast.Image, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(img, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Text:
			buf.Write(n.Segment.Value(source))
			if n.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(n.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

var (
	thematicBreakLine = regexp.MustCompile(`^ {0,3}((\*[ \t]*){3,}|(-[ \t]*){3,}|(_[ \t]*){3,})$`)
	atxHeadingLine    = regexp.MustCompile(`^ {0,3}#{1,6}([ \t].*)?$`)
	fenceLine         = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})")
)

// nodeStarts returns the offset of the line each node starts on.
// goldmark keeps no position for some nodes, like thematic breaks or
// empty headings; these are found by scanning the lines following the
// previous node.
func nodeStarts(source []byte, nodes []ast.Node) []int {
	starts := make([]int, len(nodes))
	cursor := 0

	for i, n := range nodes {
		pos, ok := knownStart(n, source)
		if !ok {
			pos = scanStart(source, cursor, n)
		}
		pos = lineStart(source, pos)
		if pos < cursor {
			pos = cursor
		}
		starts[i] = pos

		if _, rest, ok := cutLine(source[pos:]); ok {
			cursor = len(source) - len(rest)
		} else {
			cursor = len(source)
		}
	}

	return starts
}

func knownStart(n ast.Node, source []byte) (int, bool) {
	if n.Type() != ast.TypeBlock {
		return 0, false
	}

	if f, ok := n.(*ast.FencedCodeBlock); ok {
		if f.Info != nil {
			return f.Info.Segment.Start, true
		}
		if f.Lines().Len() > 0 {
			// The opening fence is the line above the first content line.
			if first := lineStart(source, f.Lines().At(0).Start); first > 0 {
				return lineStart(source, first-1), true
			}
		}
		return 0, false
	}

	if n.Lines().Len() > 0 {
		return n.Lines().At(0).Start, true
	}

	if child := n.FirstChild(); child != nil {
		return knownStart(child, source)
	}

	return 0, false
}

func scanStart(source []byte, cursor int, n ast.Node) int {
	var re *regexp.Regexp
	switch n.Kind() {
	case ast.KindThematicBreak:
		re = thematicBreakLine
	case ast.KindHeading:
		re = atxHeadingLine
	case ast.KindFencedCodeBlock:
		re = fenceLine
	}

	for pos := cursor; pos < len(source); {
		line, rest, more := cutLine(source[pos:])
		line = bytes.TrimRight(line, "\r")
		if re == nil && len(bytes.TrimSpace(line)) > 0 || re != nil && re.Match(line) {
			return pos
		}
		if !more {
			break
		}
		pos = len(source) - len(rest)
	}

	return cursor
}

func lineStart(source []byte, pos int) int {
	if pos > len(source) {
		pos = len(source)
	}
	return bytes.LastIndexByte(source[:pos], '\n') + 1
}
