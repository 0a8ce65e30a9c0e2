package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/stateful/triptych/pkg/preview/markers"
)

func markersCmd() *cobra.Command {
	var (
		fill       string
		block      int
		page       int
		local      int
		formatJSON bool
	)

	cmd := cobra.Command{
		Use:   "markers [flags] PAGE...",
		Short: "Index the block markers of rendered pages",
		Long: `Count the block markers in rendered pages, given in page order, and map
between flattened block indexes and markers. Pages and markers are
numbered from 0.`,
		Example: `  triptych markers page-*.svg
  triptych markers page-*.svg --block 7
  triptych markers page-*.svg --page 1 --local 1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup("")
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("fill") {
				fill = cfg.Renderer.MarkerFill
			}

			pages := make([]markers.Page, 0, len(args))
			for _, name := range args {
				data, err := os.ReadFile(name)
				if err != nil {
					return errors.Wrapf(err, "failed to read page %q", name)
				}
				page, err := markers.ReadPage(data)
				if err != nil {
					return errors.Wrapf(err, "failed to read page %q", name)
				}
				pages = append(pages, page)
			}

			scanner := markers.Scanner{Fill: fill}
			meta := scanner.Build(pages)
			out := cmd.OutOrStdout()

			switch {
			case cmd.Flags().Changed("block"):
				anchor, ok := meta.GlobalToLocal(block)
				if !ok {
					return errors.Errorf("block %d has no marker; %d blocks found", block, meta.TotalBlocks)
				}
				_, err := fmt.Fprintf(out, "block %d: page %d, marker %d\n", block, anchor.Page, anchor.Local)
				return err
			case cmd.Flags().Changed("page") || cmd.Flags().Changed("local"):
				index, ok := meta.LocalToGlobal(markers.Anchor{Page: page, Local: local})
				if !ok {
					return errors.Errorf("page %d has no marker %d", page, local)
				}
				_, err := fmt.Fprintf(out, "page %d, marker %d: block %d\n", page, local, index)
				return err
			case formatJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return errors.Wrap(enc.Encode(meta), "failed to encode markers")
			}

			raw := scanner.RawCounts(pages)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "PAGE\tFILE\tMARKERS\tBLOCKS")
			for i, n := range meta.UsableCounts {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", i, args[i], raw[i], n)
			}
			if err := w.Flush(); err != nil {
				return errors.Wrap(err, "failed to render")
			}
			_, err = fmt.Fprintf(out, "total blocks: %d\n", meta.TotalBlocks)
			return err
		},
	}

	cmd.Flags().StringVar(&fill, "fill", markers.DefaultFill, "Paint of the marker elements. Defaults to renderer.marker_fill from the config.")
	cmd.Flags().IntVar(&block, "block", 0, "Print the marker of the block with this flattened index.")
	cmd.Flags().IntVar(&page, "page", 0, "Together with --local, print the block index of a marker.")
	cmd.Flags().IntVar(&local, "local", 0, "Index of a marker among the block markers of --page.")
	cmd.Flags().BoolVar(&formatJSON, "json", false, "Print the marker index as JSON.")

	return &cmd
}
