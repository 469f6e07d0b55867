// ABOUTME: Root cobra command and shared config, logger and store helpers
// ABOUTME: Subcommands load configuration lazily so config init works without a file

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/2389/threadsync/internal/config"
	"github.com/2389/threadsync/internal/store"
)

// rootOptions holds the persistent flags every subcommand sees.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "threadsync",
		Short:        "Live imageboard sync client",
		Long:         `Keeps a live view of an imageboard board or thread in sync with the server, and manages the local cache of hidden posts and settings.`,
		Version:      version,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file (default $THREADSYNC_CONFIG or $XDG_CONFIG_HOME/threadsync/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	cmd.AddCommand(
		newWatchCmd(opts),
		newHiddenCmd(opts),
		newOptionsCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

func (o *rootOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.DefaultPath()
}

// load reads the config file and applies flag overrides.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.path())
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		if _, err := config.ParseLevel(o.logLevel); err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// offline is the setup shared by commands that only touch the local cache.
type offline struct {
	cfg    *config.Config
	logger *slog.Logger
	opener *store.Opener
	store  *store.SQLiteStore
}

func (o *rootOptions) openOffline(ctx context.Context, logOut io.Writer) (*offline, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.Logging, logOut)

	opener := store.NewOpener(cfg.Store.Path, cfg.Store.Driver, logger)
	st, err := opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", cfg.Store.Path, err)
	}
	return &offline{cfg: cfg, logger: logger, opener: opener, store: st}, nil
}

func (o *offline) Close() error {
	return o.opener.Close()
}
