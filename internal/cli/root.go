// Package cli implements the portalctl command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-portal-auth/config"
	"github.com/goliatone/go-portal-auth/logging"
)

type app struct {
	envFile   string
	baseURL   string
	store     string
	storePath string
	logLevel  string
	logFormat string
	debug     bool

	cfg    config.Config
	logger *slog.Logger
	client *auth.Client
}

// NewRootCmd creates the root cobra command for portalctl.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "Session client for the news portal API",
		Long:          "portalctl logs in to the news portal API, keeps the session in a local store and sends authenticated requests.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.client != nil {
				a.client.Close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file with PORTAL_* settings")
	flags.StringVar(&a.baseURL, "base-url", "", "portal API base URL (or PORTAL_BASE_URL)")
	flags.StringVar(&a.store, "store", "", "session store: file, sqlite, redis, memory (or PORTAL_STORE)")
	flags.StringVar(&a.storePath, "store-path", "", "file or sqlite path (or PORTAL_STORE_PATH)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (or PORTAL_LOG_LEVEL)")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text, json (or PORTAL_LOG_FORMAT)")
	flags.BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newRegisterCmd(a),
		newWhoamiCmd(a),
		newDiagnoseCmd(a),
		newGetCmd(a),
	)

	return root
}

// Execute runs the command tree with os.Args.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		return 1
	}
	return 0
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	a.applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	logger := logging.Adapt(a.logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := []auth.Option{
		auth.WithClientLogger(logger),
		auth.WithClientActivitySink(logging.ActivitySink(a.logger)),
	}

	storeOpts, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	opts = append(opts, storeOpts...)

	decoderOpts, err := buildDecoder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	opts = append(opts, decoderOpts...)

	a.client = auth.New(cfg, opts...)
	if err := a.client.Restore(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	return nil
}

func (a *app) applyFlags(cfg *config.Config) {
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	if a.store != "" {
		cfg.StoreBackend = a.store
	}
	if a.storePath != "" {
		cfg.StorePath = a.storePath
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	if a.debug {
		cfg.LogLevel = "debug"
	}
}

func fail(w io.Writer, err error) error {
	fmt.Fprintln(w, "error:", auth.ErrorMessage(err))
	return err
}
