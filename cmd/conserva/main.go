// Command conserva drives the monthly road-conservation report cycle from
// the terminal: ingest section spreadsheets, audit incoming files, harvest
// charts from complementary workbooks and render them into the report
// template.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"conserva/internal/config"
	"conserva/internal/logging"
)

type app struct {
	cfgPath string
	verbose bool

	cfg config.Config
	log logging.Logger
	zap *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "conserva",
		Short:         "road conservation report toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.zap != nil {
				_ = a.zap.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "path to YAML settings file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newIngestCmd(a),
		newAuditCmd(a),
		newHarvestCmd(a),
		newRenderCmd(a),
		newInspectCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	if a.verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	a.zap = logger
	a.log = zapAdapter{s: logger.Sugar()}
	return nil
}

// zapAdapter bridges zap to the pipeline logger interface.
type zapAdapter struct {
	s *zap.SugaredLogger
}

func (l zapAdapter) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l zapAdapter) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l zapAdapter) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l zapAdapter) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }
