package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/errs"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/logging"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	dbPath     string
	logLevel   string
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "papertrader",
		Short: "Paper trading ledger with ATR risk sizing and indicator signals",
		Long: `Papertrader keeps one simulated position per instrument and records
every change in a durable event log.

It provides tools for:
  - Opening positions sized from a dollar risk budget
  - Marking positions to market with breakeven and trailing stops
  - Reviewing P&L, win rate and closed trades
  - Reading RSI, EMA, OBV and ATR signals from bar files

State is rebuilt from the event log on every run, so commands can be
issued from separate processes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (YAML or JSON)")
	pf.StringVarP(&opts.dbPath, "db", "d", "", "SQLite event log (overrides journal.path)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newOpenCmd(opts),
		newTickCmd(opts),
		newAdjustCmd(opts),
		newCloseCmd(opts),
		newSummaryCmd(opts),
		newSignalsCmd(opts),
		newTradesCmd(opts),
		newExportCmd(opts),
		newReplayCmd(opts),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI and prints any failure with its kind.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), Failure(err))
	}
	return err
}

// Failure renders err for the terminal, e.g.
//
//	error (state_conflict): position already open
func Failure(err error) string {
	return fmt.Sprintf("error (%s): %v", errs.KindOf(err), err)
}

func (o *options) config() (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.dbPath != "" {
		cfg.Journal.Type = journal.TypeSQLite
		cfg.Journal.Path = o.dbPath
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// env is everything a ledger command needs for one invocation.
type env struct {
	cfg     *config.Config
	log     *zap.Logger
	journal journal.Journal
	book    *ledger.Book
}

func (o *options) open() (*env, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	j, err := journal.Open(cfg.Journal.Type, cfg.Journal.Path)
	if err != nil {
		return nil, errs.Persistence("open journal", err)
	}
	log.Debug("journal opened", zap.String("type", cfg.Journal.Type), zap.String("path", cfg.Journal.Path))

	return &env{cfg: cfg, log: log, journal: j, book: ledger.NewBook(j, log)}, nil
}

func (e *env) Close() error {
	_ = e.log.Sync()
	return e.journal.Close()
}

// withEnv opens the environment for the duration of fn.
func (o *options) withEnv(fn func(e *env) error) error {
	e, err := o.open()
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(e)
}
