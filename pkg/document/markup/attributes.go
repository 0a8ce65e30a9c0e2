package markup

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/stateful/triptych/pkg/document"
)

const (
	commentOpen  = "<!--"
	commentClose = "-->"

	closeCoverDirective = "/cover"
	closeCoverComment   = commentOpen + " " + closeCoverDirective + " " + commentClose
)

// blockAttributes is the JSON object stored in front of every block.
// Example:
//
//	<!-- {"id":"01HF53Z4RCVPRANKFBZYMS72QW","type":"image","caption":"Setup"} -->
type blockAttributes struct {
	ID   string             `json:"id,omitempty"`
	Type document.BlockType `json:"type,omitempty"`
	document.Attributes
}

func newBlockAttributes(b *document.Block) blockAttributes {
	return blockAttributes{
		ID:         b.ID,
		Type:       b.Type,
		Attributes: b.Attrs,
	}
}

// writeAttributeComment writes the attribute comment on its own line.
// encoding/json escapes "<" and ">", so the payload can never close
// the comment early.
func writeAttributeComment(buf *bytes.Buffer, attrs blockAttributes) error {
	data, err := json.Marshal(attrs)
	if err != nil {
		return errors.WithStack(err)
	}
	buf.WriteString(commentOpen)
	buf.WriteByte(' ')
	buf.Write(data)
	buf.WriteByte(' ')
	buf.WriteString(commentClose)
	buf.WriteByte('\n')
	return nil
}

// commentBody returns the trimmed text inside an HTML comment,
// and false if text is not a single complete comment.
func commentBody(text []byte) (string, bool) {
	s := strings.TrimSpace(string(text))
	if !strings.HasPrefix(s, commentOpen) || !strings.HasSuffix(s, commentClose) {
		return "", false
	}
	s = s[len(commentOpen) : len(s)-len(commentClose)]
	if strings.Contains(s, commentClose) {
		return "", false
	}
	return strings.TrimSpace(s), true
}

type directiveKind int

const (
	noDirective directiveKind = iota
	attributesDirective
	closeCoverDirectiveKind
)

// parseDirective classifies a comment body. Comments that are not
// JSON objects or close directives are ordinary content.
func parseDirective(body string) (directiveKind, blockAttributes, error) {
	var attrs blockAttributes

	switch {
	case body == closeCoverDirective:
		return closeCoverDirectiveKind, attrs, nil
	case strings.HasPrefix(body, "{") && strings.HasSuffix(body, "}"):
		dec := json.NewDecoder(strings.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&attrs); err != nil {
			return noDirective, attrs, errors.Wrapf(ErrMalformed, "invalid block attributes %s: %v", body, err)
		}
		if attrs.Type != "" && !attrs.Type.Known() {
			return noDirective, attrs, errors.Wrapf(ErrMalformed, "unknown block type %q", attrs.Type)
		}
		return attributesDirective, attrs, nil
	default:
		return noDirective, attrs, nil
	}
}

// extractInfoAttributes extracts a JSON object from a fenced code block
// info string by finding the first `{` and the following `}`,
// for example: "sh { \"id\": \"x\" }".
func extractInfoAttributes(info []byte) []byte {
	start, stop := -1, -1

	for i := 0; i < len(info); i++ {
		if start == -1 && info[i] == '{' && i+1 < len(info) && info[i+1] != '}' {
			start = i
		}
		if start != -1 && info[i] == '}' {
			stop = i
			break
		}
	}

	if start >= 0 && stop >= 0 {
		return bytes.TrimSpace(info[start : stop+1])
	}

	return nil
}

func parseInfoAttributes(info []byte) (blockAttributes, error) {
	var attrs blockAttributes
	raw := extractInfoAttributes(info)
	if len(raw) == 0 {
		return attrs, nil
	}
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return attrs, errors.Wrapf(ErrMalformed, "invalid code block attributes %s: %v", raw, err)
	}
	return attrs, nil
}
