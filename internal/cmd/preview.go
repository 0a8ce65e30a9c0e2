package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/stateful/triptych/internal/client"
	"github.com/stateful/triptych/internal/version"
	"github.com/stateful/triptych/pkg/document"
	"github.com/stateful/triptych/pkg/preview/markers"
	"github.com/stateful/triptych/pkg/preview/render"
)

func previewCmd() *cobra.Command {
	var (
		outDir      string
		rendererURL string
	)

	cmd := cobra.Command{
		Use:   "preview [flags] FILE",
		Short: "Render a document with the configured typesetting service",
		Long: `Render a document and write its pages to --out as page-001.svg,
page-002.svg, ... together with markers.json holding the marker index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(args[0])
			if err != nil {
				return err
			}
			if rendererURL == "" {
				rendererURL = cfg.Renderer.URL
			}
			if rendererURL == "" {
				return errors.New("no renderer configured: set renderer.url or --renderer")
			}

			opts := []render.Option{
				render.WithHTTPClient(client.NewHTTPClient(nil, client.WithUserAgent(version.BaseVersion()))),
				render.WithTimeout(cfg.Renderer.Timeout),
				render.WithCacheSize(0),
				render.WithLogger(logger),
			}
			if fLogVerbose {
				opts = append(opts, render.WithDump(cmd.ErrOrStderr()))
			}
			renderer, err := render.NewClient(rendererURL, opts...)
			if err != nil {
				return err
			}

			data, err := readInput(cmd, args[0], logger)
			if err != nil {
				return err
			}
			codec := newCodec(logger)
			blocks, settings, err := codec.Parse(string(data))
			if err != nil {
				return errors.Wrapf(err, "failed to parse %s", args[0])
			}
			if settings == nil {
				defaults := document.DefaultSettings()
				settings = &defaults
			}
			source, err := codec.Serialize(blocks, *settings)
			if err != nil {
				return err
			}

			pages, err := renderer.Render(cmd.Context(), source, *settings)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return errors.WithStack(err)
			}
			for i, page := range pages {
				name := filepath.Join(outDir, fmt.Sprintf("page-%03d.svg", i+1))
				if err := os.WriteFile(name, []byte(page), 0o644); err != nil {
					return errors.WithStack(err)
				}
			}

			meta := markers.Scanner{Fill: cfg.Renderer.MarkerFill}.Build(pages)
			metaData, err := json.MarshalIndent(meta, "", "  ")
			if err != nil {
				return errors.WithStack(err)
			}
			if err := os.WriteFile(filepath.Join(outDir, "markers.json"), metaData, 0o644); err != nil {
				return errors.WithStack(err)
			}

			if blockCount := len(document.Flatten(blocks)); blockCount != meta.TotalBlocks {
				logger.Warn("marker count does not match the block count")
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d blocks but %d markers\n", blockCount, meta.TotalBlocks)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "rendered %d pages with %d block markers to %s\n", len(pages), meta.TotalBlocks, outDir)
			return err
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "preview", "Directory to write the pages to.")
	cmd.Flags().StringVar(&rendererURL, "renderer", "", "URL of the typesetting service. Defaults to renderer.url from the config.")

	return &cmd
}
