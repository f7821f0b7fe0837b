package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jwulff/gridboard/internal/api"
	"github.com/jwulff/gridboard/internal/config"
	"github.com/jwulff/gridboard/internal/integration"
	"github.com/jwulff/gridboard/internal/repository"
	"github.com/jwulff/gridboard/internal/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr    string
	DataDir string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Load the snapshot from the data directory (or provision a fresh database),
then serve the dashboard API until interrupted. On SIGINT or SIGTERM the
server drains requests and writes a final snapshot before exiting.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides GRIDBOARD_ADDR)")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "snapshot directory (overrides GRIDBOARD_DATA_DIR)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	cfg := opts.Config
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}

	logger, err := opts.logger(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		closeErr := a.close()
		return errors.Join(fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err), closeErr)
	}
	return a.serve(ctx, ln)
}

// app is a fully wired server process.
type app struct {
	engine  *sqlite.Engine
	handler http.Handler
	log     logrus.FieldLogger
}

func newApp(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engine, err := sqlite.Open(ctx, sqlite.Options{
		Path:               cfg.SnapshotPath(),
		CheckpointDebounce: cfg.CheckpointDebounce,
		Logger:             logger,
		Registerer:         reg,
	})
	if err != nil {
		return nil, err
	}

	repos := repository.New(engine, repository.Options{Logger: logger})
	registry := integration.NewRegistry(integration.NewStatic(), integration.NewHTTPJSON())
	server := api.New(api.Options{
		Repos:          repos,
		Integrations:   registry,
		Logger:         logger,
		Registerer:     reg,
		Gatherer:       reg,
		AllowedOrigins: cfg.CORSOrigins,
	})

	return &app{
		engine:  engine,
		handler: server.Routes(),
		log:     logger.WithField("component", "serve"),
	}, nil
}

// serve blocks until ctx is done or the listener fails, then shuts down.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.WithField("addr", ln.Addr().String()).Info("listening")
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return errors.Join(g.Wait(), a.close())
}

// close writes the final snapshot and releases the engine.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.engine.FlushSync(ctx); err != nil {
		a.log.WithError(err).Error("final checkpoint failed")
	}
	return a.engine.Close(ctx)
}
