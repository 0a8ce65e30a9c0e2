package document

import (
	"slices"
)

type BlockType string

const (
	HeadingType   BlockType = "heading"
	ParagraphType BlockType = "paragraph"
	CodeType      BlockType = "code"
	MathType      BlockType = "math"
	ImageType     BlockType = "image"
	ListType      BlockType = "list"
	TableType     BlockType = "table"
	ChartType     BlockType = "chart"
	// CoverType is a container; it is the only type holding children.
	CoverType BlockType = "cover"
)

var blockTypes = []BlockType{
	HeadingType,
	ParagraphType,
	CodeType,
	MathType,
	ImageType,
	ListType,
	TableType,
	ChartType,
	CoverType,
}

// Known reports whether t is one of the supported block types.
func (t BlockType) Known() bool {
	return slices.Contains(blockTypes, t)
}

// IsContainer reports whether blocks of this type own child blocks.
func (t BlockType) IsContainer() bool {
	return t == CoverType
}

// Block is a uniquely identified, typed unit of document content.
//
// The meaning of Content depends on Type:
//   - heading, paragraph, list: markdown text,
//   - code, math: the literal body,
//   - image: the image URL,
//   - table, chart: a JSON payload, see [Table] and [Chart],
//   - cover: unused; the content lives in Children.
type Block struct {
	ID      string    `json:"id" yaml:"id"`
	Type    BlockType `json:"type" yaml:"type"`
	Content string    `json:"content,omitempty" yaml:"content,omitempty"`
	// Level is the heading level, 1 to 6.
	Level int `json:"level,omitempty" yaml:"level,omitempty"`
	// Language is the language of a code block.
	Language string     `json:"language,omitempty" yaml:"language,omitempty"`
	Attrs    Attributes `json:"attrs" yaml:"attrs,omitempty"`
	Children []*Block   `json:"children,omitempty" yaml:"children,omitempty"`
}

// Clone returns a deep copy of the block and its descendants.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	c := *b
	c.Children = CloneBlocks(b.Children)
	return &c
}

// CloneBlocks deep-copies a block list. A nil list stays nil.
func CloneBlocks(blocks []*Block) []*Block {
	if blocks == nil {
		return nil
	}
	result := make([]*Block, len(blocks))
	for i, b := range blocks {
		result[i] = b.Clone()
	}
	return result
}

// Table decodes the payload of a table block.
func (b *Block) Table() (*Table, error) {
	return decodeTable(b.Content)
}

// Chart decodes the payload of a chart block.
func (b *Block) Chart() (*Chart, error) {
	return decodeChart(b.Content)
}

type Blocks []*Block

// Flatten returns the blocks in pre-order: a container precedes its
// children. The index of a block in this order is its flattened index,
// the index used by preview markers and editor elements.
func Flatten(blocks []*Block) Blocks {
	var result Blocks
	Walk(blocks, func(b *Block, _ int) bool {
		result = append(result, b)
		return true
	})
	return result
}

// Walk visits blocks in pre-order. fn receives the nesting depth and
// returns false to skip the children of the visited block.
func Walk(blocks []*Block, fn func(b *Block, depth int) bool) {
	walk(blocks, 0, fn)
}

func walk(blocks []*Block, depth int, fn func(*Block, int) bool) {
	for _, b := range blocks {
		if b == nil {
			continue
		}
		if fn(b, depth) {
			walk(b.Children, depth+1, fn)
		}
	}
}

// FindByID returns the block with the given ID anywhere in the tree.
func FindByID(blocks []*Block, id string) *Block {
	var found *Block
	Walk(blocks, func(b *Block, _ int) bool {
		if found != nil {
			return false
		}
		if b.ID == id {
			found = b
			return false
		}
		return true
	})
	return found
}

// IDs returns the set of IDs present in the tree.
func IDs(blocks []*Block) map[string]struct{} {
	result := make(map[string]struct{})
	Walk(blocks, func(b *Block, _ int) bool {
		if b.ID != "" {
			result[b.ID] = struct{}{}
		}
		return true
	})
	return result
}
