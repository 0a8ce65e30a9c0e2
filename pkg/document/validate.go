package document

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
)

var ErrInvalidBlock = stderrors.New("invalid block")

var validate = validator.New(validator.WithRequiredStructEnabled())

// BlockError describes why a block was rejected.
type BlockError struct {
	ID     string
	Path   string
	Reason string
}

func (e *BlockError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("block %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("block %s (%s): %s", e.Path, e.ID, e.Reason)
}

func (e *BlockError) Unwrap() error { return ErrInvalidBlock }

// Validate checks the shape of every block in the tree: known type,
// type-specific fields, decodable payloads, children only in
// containers. IDs are not checked; see package identity.
//
// All problems are reported, combined with multierr.
func Validate(blocks []*Block) error {
	return validateList(blocks, "")
}

func validateList(blocks []*Block, prefix string) (err error) {
	for i, b := range blocks {
		path := fmt.Sprintf("%s%d", prefix, i)
		if b == nil {
			err = multierr.Append(err, &BlockError{Path: path, Reason: "nil block"})
			continue
		}
		err = multierr.Append(err, validateBlock(b, path))
		if len(b.Children) > 0 {
			err = multierr.Append(err, validateList(b.Children, path+"."))
		}
	}
	return err
}

func validateBlock(b *Block, path string) error {
	fail := func(format string, args ...any) error {
		return &BlockError{ID: b.ID, Path: path, Reason: fmt.Sprintf(format, args...)}
	}

	if !b.Type.Known() {
		return fail("unknown type %q", b.Type)
	}
	if len(b.Children) > 0 && !b.Type.IsContainer() {
		return fail("type %q cannot have children", b.Type)
	}
	if err := validate.Struct(b.Attrs); err != nil {
		return fail("attributes: %v", err)
	}

	switch b.Type {
	case HeadingType:
		if b.Level < 1 || b.Level > 6 {
			return fail("heading level %d out of range", b.Level)
		}
		if strings.ContainsAny(b.Content, "\r\n") {
			return fail("heading text must be a single line")
		}
	case ImageType:
		if b.Content == "" {
			return fail("image without URL")
		}
		if strings.ContainsAny(b.Content, "<>\r\n") {
			return fail("image URL contains reserved characters")
		}
	case CodeType:
		if strings.ContainsAny(b.Language, " \t\r\n`{") {
			return fail("invalid code language %q", b.Language)
		}
	case TableType:
		if _, err := b.Table(); err != nil {
			return fail("%v", err)
		}
	case ChartType:
		if _, err := b.Chart(); err != nil {
			return fail("%v", err)
		}
	case CoverType:
		if b.Content != "" {
			return fail("cover content must be empty")
		}
	}
	return nil
}

// ValidateSettings checks the settings values.
func ValidateSettings(s Settings) error {
	return validate.Struct(s)
}
