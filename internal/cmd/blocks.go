package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/stateful/triptych/internal/config"
	"github.com/stateful/triptych/pkg/document"
)

const summaryWidth = 40

type blockRow struct {
	Index    int    `json:"index"`
	Depth    int    `json:"depth"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Level    int    `json:"level,omitempty"`
	Language string `json:"language,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Summary  string `json:"summary"`
}

func blocksCmd() *cobra.Command {
	var (
		filters    []string
		formatJSON bool
	)

	cmd := cobra.Command{
		Use:     "blocks [flags] FILE",
		Aliases: []string{"ls"},
		Short:   "List the blocks of a document in flattened order",
		Long: `List the blocks of a document in flattened order, which is the order of
the preview markers. Filters from the config and from --filter must all
pass; see https://expr-lang.org/docs/language-definition for the syntax.

Available variables: id, type, index, depth, level, language, caption, content.`,
		Example: `  triptych blocks report.md --filter "type == 'code'"
  triptych blocks report.md --filter "depth == 0" --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(args[0])
			if err != nil {
				return err
			}

			allFilters := append([]*config.Filter{}, cfg.Filters...)
			for _, condition := range filters {
				f := &config.Filter{Type: config.FilterTypeBlock, Condition: condition}
				if err := f.Compile(); err != nil {
					return errors.Wrapf(err, "invalid filter %q", condition)
				}
				allFilters = append(allFilters, f)
			}

			data, err := readInput(cmd, args[0], logger)
			if err != nil {
				return err
			}
			blocks, _, err := newCodec(logger).Parse(string(data))
			if err != nil {
				return errors.Wrapf(err, "failed to parse %s", args[0])
			}

			rows, err := collectBlocks(blocks, allFilters)
			if err != nil {
				return err
			}

			if formatJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if rows == nil {
					rows = []blockRow{}
				}
				return errors.Wrap(enc.Encode(rows), "failed to encode blocks")
			}
			return printBlocks(cmd, rows)
		},
	}

	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Only list blocks matching the expression. Can be repeated.")
	cmd.Flags().BoolVar(&formatJSON, "json", false, "Print blocks as JSON.")

	return &cmd
}

func collectBlocks(blocks []*document.Block, filters []*config.Filter) ([]blockRow, error) {
	var (
		rows  []blockRow
		index int
		err   error
	)
	document.Walk(blocks, func(b *document.Block, depth int) bool {
		if err != nil {
			return false
		}
		env := config.NewFilterBlockEnv(b, index, depth)
		index++

		var ok bool
		ok, err = config.MatchAll(filters, env)
		if err != nil {
			return false
		}
		if ok {
			rows = append(rows, blockRow{
				Index:    env.Index,
				Depth:    depth,
				ID:       b.ID,
				Type:     string(b.Type),
				Level:    b.Level,
				Language: b.Language,
				Caption:  b.Attrs.Caption,
				Summary:  summarize(b),
			})
		}
		return true
	})
	return rows, err
}

func summarize(b *document.Block) string {
	text := b.Content
	switch b.Type {
	case document.CoverType:
		text = fmt.Sprintf("%d blocks", len(b.Children))
	case document.ImageType:
		if b.Attrs.Caption != "" {
			text = b.Attrs.Caption + " (" + b.Content + ")"
		}
	}
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > summaryWidth {
		text = string(r[:summaryWidth-1]) + "…"
	}
	return text
}

func printBlocks(cmd *cobra.Command, rows []blockRow) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INDEX\tTYPE\tID\tSUMMARY")
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%d\t%s%s\t%s\t%s\n", row.Index, strings.Repeat("  ", row.Depth), row.Type, row.ID, row.Summary)
	}
	return errors.Wrap(w.Flush(), "failed to render")
}
