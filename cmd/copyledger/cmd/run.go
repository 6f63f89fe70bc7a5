package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/optrade/copyledger/config"
	"github.com/optrade/copyledger/trading"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the service with the balance reconciler",
	Long: `Start the ledger service and sweep broker balances on the configured
interval until interrupted.

Example:
  copyledger run -f config.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
}

func loadConfig() (*config.Config, error) {
	if runConfigPath == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(runConfigPath)
}

func newLogger(cfg *config.Config) (*logrus.Entry, error) {
	l := logrus.New()
	if cfg.Log.Level != "" {
		level, err := logrus.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		l.SetLevel(level)
	}
	return logrus.NewEntry(l), nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	svc, err := trading.NewFromConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc.Run(ctx)
	return nil
}
