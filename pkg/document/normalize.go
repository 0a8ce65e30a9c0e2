package document

import "strings"

// Normalize brings text fields into the canonical form the markup
// codec produces, in place: markdown text loses surrounding blank
// lines and trailing spaces, headings become a single line, and empty
// child lists become nil. Code-like bodies are kept verbatim.
func Normalize(blocks []*Block) {
	Walk(blocks, func(b *Block, _ int) bool {
		switch b.Type {
		case HeadingType:
			b.Content = strings.Join(strings.Fields(b.Content), " ")
		case ParagraphType, ListType:
			b.Content = strings.TrimLeft(strings.TrimRight(b.Content, " \t\r\n"), "\r\n")
		case ImageType:
			b.Content = strings.TrimSpace(b.Content)
		}
		if len(b.Children) == 0 {
			b.Children = nil
		}
		return true
	})
}
