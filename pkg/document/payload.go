package document

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Table is the structured payload of a table block.
type Table struct {
	// Header marks the first row as a header row.
	Header bool       `json:"header,omitempty"`
	Rows   [][]string `json:"rows" validate:"required,min=1,dive,min=1"`
}

type ChartKind string

// Chart is the structured payload of a chart block.
type Chart struct {
	Kind   ChartKind     `json:"kind" validate:"required,oneof=bar line pie scatter"`
	Title  string        `json:"title,omitempty"`
	Labels []string      `json:"labels,omitempty"`
	Series []ChartSeries `json:"series" validate:"required,min=1,dive"`
}

type ChartSeries struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values" validate:"required,min=1"`
}

func decodeTable(content string) (*Table, error) {
	var t Table
	if err := decodeStrict(content, &t); err != nil {
		return nil, errors.Wrap(err, "invalid table payload")
	}
	if err := validate.Struct(&t); err != nil {
		return nil, errors.Wrap(err, "invalid table payload")
	}
	return &t, nil
}

func decodeChart(content string) (*Chart, error) {
	var c Chart
	if err := decodeStrict(content, &c); err != nil {
		return nil, errors.Wrap(err, "invalid chart payload")
	}
	if err := validate.Struct(&c); err != nil {
		return nil, errors.Wrap(err, "invalid chart payload")
	}
	return &c, nil
}

func decodeStrict(content string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(content)))
	dec.DisallowUnknownFields()
	return errors.WithStack(dec.Decode(v))
}

// EncodePayload marshals a table or chart payload into block content.
func EncodePayload(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(data), nil
}
