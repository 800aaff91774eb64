package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/ubi/internal/config"
	"github.com/roach88/ubi/internal/engine"
	"github.com/roach88/ubi/internal/ledger"
	"github.com/roach88/ubi/internal/params"
	"github.com/roach88/ubi/internal/store"
)

// RootOptions holds global flags for all commands. Flags left unset fall
// back to the UBI_* environment.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string
	Contract string
	Params   string

	Config config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ubi CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ubi",
		Short: "ubi - a trust-gated basic income ledger",
		Long: `A ledger where every accepted identity issues its own decaying
income currency, and trust edges between identities gate who may receive it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.Database, "db", "", "path to SQLite database (default $UBI_DB or ubi.db)")
	pf.StringVar(&opts.Contract, "contract", "", "contract account (default $UBI_CONTRACT or ubi)")
	pf.StringVar(&opts.Params, "params", "", "CUE params file (default $UBI_PARAMS)")

	cmd.AddCommand(NewInvokeCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewParamsCommand(opts))
	cmd.AddCommand(NewABICommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// setup validates flags, reads the environment and builds the logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid environment", err)
	}
	o.Config = cfg
	if o.Database == "" {
		o.Database = cfg.DB
	}
	if o.Contract == "" {
		o.Contract = cfg.Contract
	}
	if o.Params == "" {
		o.Params = cfg.Params
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = newLogger(cmd.ErrOrStderr(), cfg.LogFormat, level)
	return nil
}

func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// formatter returns an OutputFormatter writing to cmd's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger returns the configured logger, or a discarding one when setup
// has not run (commands built directly in tests).
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// contract builds the ledger from the params file and account list.
func (o *RootOptions) contract() (*ledger.Contract, ledger.Name, error) {
	p, err := params.Load(o.Params)
	if err != nil {
		return nil, "", WrapExitError(ExitCommandError, "failed to load params", err)
	}

	var accounts ledger.Accounts
	if len(o.Config.Accounts) > 0 {
		names := make([]ledger.Name, 0, len(o.Config.Accounts))
		for _, a := range o.Config.Accounts {
			n, err := ledger.ParseName(a)
			if err != nil {
				return nil, "", WrapExitError(ExitCommandError, "invalid UBI_ACCOUNTS entry", err)
			}
			names = append(names, n)
		}
		accounts = ledger.NewAccountSet(names...)
	}

	c, err := ledger.New(p, accounts)
	if err != nil {
		return nil, "", WrapExitError(ExitCommandError, "invalid params", err)
	}

	name := o.Contract
	if name == "" {
		name = "ubi"
	}
	account, err := ledger.ParseName(name)
	if err != nil {
		return nil, "", WrapExitError(ExitCommandError, "invalid contract account", err)
	}
	return c, account, nil
}

// openStore opens the database named by --db.
func (o *RootOptions) openStore() (*store.Store, error) {
	if o.Database == "" {
		return nil, NewExitError(ExitCommandError, "no database: pass --db or set UBI_DB")
	}
	st, err := store.Open(o.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// openEngine opens the store and restores an engine over it. The caller
// closes the store.
func (o *RootOptions) openEngine(ctx context.Context, flowGen engine.FlowTokenGenerator, opts ...engine.Option) (*store.Store, *engine.Engine, error) {
	c, account, err := o.contract()
	if err != nil {
		return nil, nil, err
	}
	st, err := o.openStore()
	if err != nil {
		return nil, nil, err
	}
	opts = append([]engine.Option{engine.WithLogger(o.logger())}, opts...)
	eng, err := engine.Open(ctx, st, c, account, flowGen, opts...)
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to open engine", err)
	}
	return st, eng, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// commandContext returns cmd's context, or Background when run outside
// Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
