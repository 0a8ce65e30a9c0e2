package document

type Alignment string

const (
	AlignLeft    Alignment = "left"
	AlignCenter  Alignment = "center"
	AlignRight   Alignment = "right"
	AlignJustify Alignment = "justify"
)

// Attributes are optional presentation hints of a block.
// The zero value means "renderer defaults".
type Attributes struct {
	Align       Alignment `json:"align,omitempty" yaml:"align,omitempty" validate:"omitempty,oneof=left center right justify"`
	Width       string    `json:"width,omitempty" yaml:"width,omitempty" validate:"omitempty,max=32"`
	Caption     string    `json:"caption,omitempty" yaml:"caption,omitempty"`
	Font        string    `json:"font,omitempty" yaml:"font,omitempty" validate:"omitempty,max=128"`
	LineSpacing string    `json:"lineSpacing,omitempty" yaml:"lineSpacing,omitempty" validate:"omitempty,max=16"`
}

func (a Attributes) IsZero() bool {
	return a == Attributes{}
}
