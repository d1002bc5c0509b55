package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hydra-mux/hydra/app"
	"github.com/hydra-mux/hydra/config"
	"github.com/hydra-mux/hydra/scm"
)

func main() {
	root := &cobra.Command{
		Use:           "hydra",
		Short:         "Run multiple long-lived CLI agent sessions side by side in one terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hydra: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	repoRoot, err := scm.RepoRoot(cwd)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := newLogger()
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer closeLog()

	ctrl, err := app.New(repoRoot, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	return ctrl.Run()
}

// newLogger opens ${HOME}/.hydra/hydra.log for append and returns a
// logrus.Entry writing structured JSON to it. Raw mode takes over stdout
// once the app controller starts, so nothing after this point may log
// to the terminal directly.
func newLogger() (*logrus.Entry, func(), error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, err
	}
	dir := filepath.Join(home, ".hydra")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "hydra.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(f)
	logger.SetLevel(logrus.InfoLevel)

	return logrus.NewEntry(logger), func() { _ = f.Close() }, nil
}
