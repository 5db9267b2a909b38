package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/config"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/eval"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/logging"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/store"
)

// #region main

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout)
	root.SetArgs(args)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.msg != "" {
				fmt.Fprintln(stderr, ee.msg)
			}
			return ee.code
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// exitError carries a specific exit code out of a RunE.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit %d: %s", e.code, e.msg)
}

func usageError(format string, args ...interface{}) error {
	return &exitError{code: 2, msg: fmt.Sprintf(format, args...)}
}

// #endregion main

// #region root

// app is the state shared by every subcommand.
type app struct {
	configPath string
	dbOverride string
	debug      bool

	cfg    config.Config
	logger *zap.Logger
	out    io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "fidelity",
		Short:         "Score and audit how faithfully a surrogate model tracks a black-box model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			// stderr sync fails harmlessly on some platforms
			_ = a.logger.Sync()
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to YAML config file")
	pf.StringVar(&a.dbOverride, "db", "", "ledger DSN: SQLite path or postgres:// URL (overrides config)")
	pf.BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newScoreCmd(a),
		newAuditCmd(a),
		newHistoryCmd(a),
		newShowCmd(a),
		newCompareCmd(a),
		newDecisionsCmd(a),
		newReplayCmd(a),
		newExportCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return usageError("load config: %v", err)
	}
	if a.dbOverride != "" {
		cfg.DB = a.dbOverride
	}
	if a.debug {
		cfg.LogLevel = "debug"
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) catalog() (eval.Catalog, error) {
	c, err := eval.LoadCatalog(a.cfg.CatalogPath)
	if err != nil {
		return eval.Catalog{}, fmt.Errorf("load catalog: %w", err)
	}
	return c, nil
}

func (a *app) openStore() (*store.Store, error) {
	s, err := store.NewStore(a.cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return s, nil
}

// #endregion root
