// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jeranaias/keycabinet/internal/config"
	"github.com/jeranaias/keycabinet/internal/console"
	"github.com/jeranaias/keycabinet/internal/kiosk"
	"github.com/jeranaias/keycabinet/internal/security"
	"github.com/jeranaias/keycabinet/internal/ui"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(22)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// =============================================================================
// RUN
// =============================================================================

func newRunCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the full-screen kiosk (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, flags)
		},
	}
}

func runTUI(cmd *cobra.Command, flags *globalFlags) error {
	if err := RequiresTTY("start the kiosk screen"); err != nil {
		return err
	}
	cfg, path, err := flags.loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := flags.openLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()
	store := config.NewStore(path, cfg)
	app, err := kiosk.New(ctx, store, kiosk.WithLogger(logger))
	if err != nil {
		return err
	}
	defer app.Close()

	p := tea.NewProgram(ui.New(app, ui.WithLogger(logger)), tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		err := config.Watch(ctx, path, config.DefaultWatchDebounce, func(c *config.Config, err error) {
			p.Send(ui.ConfigReloadedMsg{Config: c, Err: err})
		})
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("configuration watch unavailable")
		}
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("kiosk screen: %w", err)
	}
	return nil
}

// =============================================================================
// CONSOLE
// =============================================================================

func newConsoleCommand(flags *globalFlags) *cobra.Command {
	var noHistory bool
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Drive the kiosk from a line prompt",
		Long: `console runs the kiosk behind a line prompt. Type inputs such as
"start card scan" or "12345 enter"; /wait lets timed transitions run and
/help lists the commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := flags.loadConfig()
			if err != nil {
				return err
			}
			logger, closer, err := flags.openLogger(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			app, err := kiosk.New(cmd.Context(), config.NewStore(path, cfg), kiosk.WithLogger(logger))
			if err != nil {
				return err
			}
			defer app.Close()

			history := console.DefaultHistoryPath()
			if noHistory {
				history = ""
			}
			reader := console.NewLinerReader(history)
			defer reader.Close()

			con := console.New(app, reader, cmd.OutOrStdout(),
				console.WithLogger(logger),
				console.WithColor(ColorsEnabled()),
			)
			return con.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not read or save prompt history")
	return cmd
}

// =============================================================================
// CHECK
// =============================================================================

func newCheckCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and screen graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, path, err := flags.loadConfig()
			if err != nil {
				fmt.Fprintln(out, errStyle.Render("[X] configuration invalid"))
				var verrs config.ValidateErrors
				if errors.As(err, &verrs) {
					for _, ve := range verrs {
						fmt.Fprintf(out, "    %s\n", ve.Error())
					}
				}
				return err
			}

			app, err := kiosk.New(cmd.Context(), config.NewStore(path, cfg), kiosk.WithoutJournal())
			if err != nil {
				fmt.Fprintln(out, errStyle.Render("[X] kiosk could not start"))
				return err
			}
			defer app.Close()

			fmt.Fprintln(out, titleStyle.Render(cfg.Kiosk.AppName+" configuration"))
			row := func(label, value string) {
				fmt.Fprintln(out, labelStyle.Render(label)+value)
			}
			row("Config file", path)
			row("Site", cfg.Kiosk.SiteName)
			row("Configured users", fmt.Sprint(len(cfg.Security.Users)))
			row("Cabinet slots", fmt.Sprint(len(cfg.Cabinet.Keys)))
			row("Session timeout", cfg.SessionTimeout().String())
			row("Unlisted policy", cfg.Navigation.UnlistedPolicy)
			row("Admin second factor", enabled(cfg.Security.AdminTOTPSecret != ""))

			fmt.Fprintln(out)
			for _, h := range app.Manager().Hierarchy() {
				fmt.Fprintf(out, "  %-18s -> %s\n", h.Screen, strings.Join(h.AllowedDestinations, ", "))
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, okStyle.Render("[OK] configuration valid, screen graph intact"))
			return nil
		},
	}
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

// =============================================================================
// INIT
// =============================================================================

func newInitCommand(flags *globalFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := flags.resolveConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("[OK] wrote "+path))
			fmt.Fprintln(cmd.OutOrStdout(), "Change the default, admin and emergency PINs before use.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// =============================================================================
// TOTP SECRET
// =============================================================================

func newTOTPCommand() *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "totp-secret",
		Short: "Generate an administrator one-time code secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := security.GenerateTOTPKey("Key Cabinet", account)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, labelStyle.Render("Secret")+key.Secret())
			fmt.Fprintln(out, labelStyle.Render("Provisioning URL")+key.URL())
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Set security.admin_totp_secret or KEYCABINET_ADMIN_TOTP_SECRET to the secret.")
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "admin", "account name shown in the authenticator")
	return cmd
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "keycabinet %s (commit %s, built %s, %s/%s)\n",
				Version, GitCommit, BuildDate, runtime.GOOS, runtime.GOARCH)
		},
	}
}
