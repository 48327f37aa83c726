// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli holds the keycabinet command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/keycabinet/internal/config"
	"github.com/jeranaias/keycabinet/internal/logging"
)

// Version information, overridden at build time.
var (
	Version   = "2.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	logFile    string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "keycabinet",
		Short: "Key cabinet access kiosk",
		Long: `keycabinet runs the key cabinet kiosk: card or biometric sign-in with a PIN,
activity code entry, key removal and return, emergency override and an
administrator configuration screen.

Configuration is read from ~/.keycabinet/config.toml or $KEYCABINET_CONFIG,
then KEYCABINET_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "config file (default ~/.keycabinet/config.toml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	pf.StringVar(&flags.logFile, "log-file", "", "log file (default ~/.keycabinet/kiosk.log)")

	root.AddCommand(
		newRunCommand(flags),
		newConsoleCommand(flags),
		newCheckCommand(flags),
		newInitCommand(flags),
		newTOTPCommand(),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	lipgloss.SetColorProfile(GetColorProfile())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// =============================================================================
// SHARED SETUP
// =============================================================================

func (f *globalFlags) resolveConfigPath() (string, error) {
	if f.configPath != "" {
		return f.configPath, nil
	}
	return config.ConfigPath()
}

// loadConfig reads and validates the configuration and applies flag
// overrides.
func (f *globalFlags) loadConfig() (*config.Config, string, error) {
	path, err := f.resolveConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, path, err
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, path, err
		}
	}
	return cfg, path, nil
}

// openLogger logs to the log file so the full-screen view is not
// disturbed. The returned closer releases the file.
func (f *globalFlags) openLogger(cfg *config.Config) (zerolog.Logger, io.Closer, error) {
	path := f.logFile
	if path == "" {
		p, err := logging.DefaultPath()
		if err != nil {
			return zerolog.Nop(), nopCloser{}, err
		}
		path = p
	}
	file, err := logging.OpenFile(path)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	logger, err := logging.New(cfg.Logging, file)
	if err != nil {
		file.Close()
		return zerolog.Nop(), nopCloser{}, err
	}
	return logger, file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
