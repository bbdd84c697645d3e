package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/ldsec/bindlib/pkg/library"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Backend    string
	Dir        string
	DB         string
	Format     string
	Verbose    bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of bindlib.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "bindlib",
		Short: "Inspect and edit binding libraries",
		Long: `Inspect and edit the binding libraries of a device.

Libraries are read from and written to the medium selected by the
configuration file (--config) or by --backend: "securestore" keeps them in
an object store database (--db), "file" keeps one .bld file per library in
a directory (--dir).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "registry configuration file (json or yaml)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "library backend (securestore|file)")
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "directory of the file backend")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "object store database path of the securestore backend")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log library activity to stderr")

	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewSetPointCommand(opts))
	cmd.AddCommand(NewSetSceneCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))

	return cmd
}

// config returns the registry configuration selected by the global flags.
func (opts *RootOptions) config() (library.Config, error) {
	conf := library.DefaultConfig()
	if len(opts.ConfigFile) > 0 {
		var err error
		if conf, err = library.LoadConfigFromFile(opts.ConfigFile); err != nil {
			return library.Config{}, err
		}
	}

	if len(opts.Backend) > 0 {
		conf.Backend = opts.Backend
	}
	if len(opts.Dir) > 0 {
		conf.Directory = opts.Dir
	}
	if len(opts.DB) > 0 {
		conf.ObjectStore.DBPath = opts.DB
	}
	return conf, library.ValidateConfig(conf)
}

func (opts *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (opts *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
}

// withRegistry runs fn with a registry opened from the global flags. The
// registry is shut down, saving its subscribed libraries, when fn returns or
// when the command context is cancelled, whichever comes first. Commands that
// mutate a library save it themselves with commit.
func withRegistry(cmd *cobra.Command, opts *RootOptions, fn func(*library.Registry) error) (err error) {
	conf, err := opts.config()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	reg, err := library.NewRegistry(conf, library.WithRegistryLogger(opts.logger(cmd.ErrOrStderr())))
	if err != nil {
		return WrapExitError(ExitCommandError, "could not open libraries", err)
	}

	var once sync.Once
	shutdown := func() { once.Do(func() { reg.Shutdown() }) }

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stop := context.AfterFunc(ctx, shutdown)
	defer func() {
		stop()
		shutdown()
		err = multierr.Append(err, reg.Close())
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(reg)
}
