package cli

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/geoff/internal/api"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string // overrides server.addr

	// Listener, when set, is served instead of listening on Addr (for testing).
	Listener net.Listener

	// Overrides replace the database, model and history (for testing).
	Overrides Overrides
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API used by the map client.

Routes:
  POST /query     answer a question
  POST /plan      run a caller-supplied plan
  GET  /examples  list example questions
  GET  /schemas   list tables and columns
  GET  /health    check the database

The server stops gracefully on SIGINT or SIGTERM.

Example:
  geoff serve --addr :8000 --config geoff.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	log, err := opts.logger(cfg, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	defer func() { _ = log.Sync() }()

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := opts.openBackend(ctx, cfg, log, opts.Overrides)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUnavailable, err.Error(), nil)
	}
	defer b.Close()

	router := api.NewRouter(b.svc, api.Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.WriteTimeout,
	}, log)
	server := api.ServerOptions{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if opts.Listener != nil {
		err = api.ServeListener(ctx, opts.Listener, server, router, log)
	} else {
		err = api.Serve(ctx, server, router, log)
	}
	if err != nil {
		log.Error("server error", zap.Error(err))
		return WrapExitError(ExitFailure, "server error", err)
	}

	log.Info("server stopped gracefully")
	return nil
}
