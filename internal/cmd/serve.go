package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stateful/triptych/internal/client"
	"github.com/stateful/triptych/internal/frame"
	"github.com/stateful/triptych/internal/server"
	"github.com/stateful/triptych/internal/version"
	"github.com/stateful/triptych/pkg/preview/render"
	"github.com/stateful/triptych/pkg/store"
)

func serveCmd() *cobra.Command {
	var (
		addr     string
		storeDir string
		open     bool
	)

	cmd := cobra.Command{
		Use:   "serve",
		Short: "Serve the document API over HTTP",
		Long: `Serve the document API. Documents are kept in store.dir, one JSON file
per document, and previews are rendered by renderer.url when configured.

Endpoints:
  GET  /health
  GET  /api/scroll-sync
  GET  /api/documents/
  GET  /api/documents/{id}
  PUT  /api/documents/{id}/blocks
  PUT  /api/documents/{id}/source
  PUT  /api/documents/{id}/settings
  POST /api/documents/{id}/mode
  POST /api/documents/{id}/undo
  POST /api/documents/{id}/redo
  POST /api/documents/{id}/save
  GET  /api/documents/{id}/preview
  GET  /api/documents/{id}/anchor?block=N
  GET  /api/documents/{id}/anchor?page=P&local=L`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup("")
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			if storeDir != "" {
				cfg.Store.Dir = storeDir
			}

			st, err := store.NewDirStore(cfg.Store.Dir, store.WithLogger(logger))
			if err != nil {
				return err
			}

			opts := []server.Option{
				server.WithLogger(logger),
				server.WithMarkerFill(cfg.Renderer.MarkerFill),
				server.WithScrollSync(cfg.ScrollSyncConfig()),
			}
			if cfg.Renderer.URL != "" {
				renderer, err := render.NewClient(
					cfg.Renderer.URL,
					render.WithHTTPClient(client.NewHTTPClient(nil, client.WithUserAgent(version.BaseVersion()))),
					render.WithTimeout(cfg.Renderer.Timeout),
					render.WithCacheSize(cfg.Renderer.CacheSize),
					render.WithLogger(logger),
				)
				if err != nil {
					return err
				}
				opts = append(opts, server.WithRenderer(renderer))
			} else {
				logger.Info("no renderer configured, preview is disabled")
			}

			loop := frame.NewLoop(frame.DefaultFrameInterval)
			srv := server.New(
				server.Config{
					Address:         cfg.Server.Address,
					SessionCapacity: cfg.Server.SessionCapacity,
					HistoryCapacity: cfg.History.Capacity,
					ShutdownTimeout: cfg.Server.ShutdownTimeout,
				},
				newCodec(logger),
				st,
				loop,
				opts...,
			)
			if err := srv.Listen(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, _ = cmd.OutOrStdout().Write([]byte("listening on http://" + srv.Addr() + "\n"))

			if open {
				if err := browser.OpenURL("http://" + srv.Addr() + "/api/documents/"); err != nil {
					logger.Warn("failed to open browser", zap.Error(err))
				}
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Serve()
			})
			g.Go(func() error {
				err := loop.Run(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			g.Go(func() error {
				<-ctx.Done()
				logger.Info("shutting down")
				// The serving context is done; shutdown gets its own.
				return srv.Shutdown(context.Background())
			})

			return g.Wait()
		},
	}

	cmd.Flags().StringVarP(&addr, "address", "a", "", "Address to listen on. Defaults to server.address from the config.")
	cmd.Flags().StringVar(&storeDir, "store", "", "Directory holding the documents. Defaults to store.dir from the config.")
	cmd.Flags().BoolVar(&open, "open", false, "Open the document list in a browser.")

	return &cmd
}
