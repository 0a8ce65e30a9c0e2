package document

type CaptionPosition string

const (
	CaptionAbove CaptionPosition = "above"
	CaptionBelow CaptionPosition = "below"
)

// Settings are document-wide rendering toggles.
type Settings struct {
	Captions CaptionSettings `json:"captions" yaml:"captions" toml:"captions"`
}

type CaptionSettings struct {
	NumberTables bool            `json:"numberTables" yaml:"numberTables" toml:"numberTables"`
	NumberImages bool            `json:"numberImages" yaml:"numberImages" toml:"numberImages"`
	Position     CaptionPosition `json:"position" yaml:"position" toml:"position" validate:"oneof=above below"`
}

func DefaultSettings() Settings {
	return Settings{
		Captions: CaptionSettings{
			NumberTables: true,
			NumberImages: true,
			Position:     CaptionBelow,
		},
	}
}

// Mode is the editor view.
type Mode string

const (
	// VisualMode is the dual-pane view: block editor next to the preview.
	VisualMode Mode = "visual"
	// SourceMode shows the raw markup only.
	SourceMode Mode = "source"
)

func (m Mode) Valid() bool {
	return m == VisualMode || m == SourceMode
}

// Side names the representation treated as the source of truth
// after the last edit.
type Side string

const (
	BlocksSide Side = "blocks"
	SourceSide Side = "source"
)

// Codec converts between a block tree and its markup source.
//
// Parse returns the settings found in the source, or nil if the source
// carries none. Serialize must be deterministic, and parsing its output
// must yield an equivalent tree.
type Codec interface {
	Parse(source string) ([]*Block, *Settings, error)
	Serialize(blocks []*Block, settings Settings) (string, error)
}
