package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/bnema/kmsloop/internal/config"
	"github.com/bnema/kmsloop/internal/logger"
	"github.com/bnema/kmsloop/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage kmsloop configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		out := cmd.OutOrStdout()

		socket, err := cfg.SocketPath()
		if err != nil {
			socket = err.Error()
		}

		lines := []string{
			ui.FormatField("Config file", config.GetConfigPath()),
			"",
			ui.FormatHeader("Display"),
			ui.FormatField("Backend", cfg.Display.Backend),
			ui.FormatField("Card", orDefault(cfg.Display.Card, "enumerate")),
			ui.FormatField("Framebuffer", orDefault(cfg.Display.Fbdev, "first found")),
			"",
			ui.FormatHeader("Seat"),
			ui.FormatField("Name", cfg.Seat.Name),
			"",
			ui.FormatHeader("Keyboard"),
			ui.FormatField("Rules", orDefault(cfg.Keyboard.Rules, "default")),
			ui.FormatField("Model", orDefault(cfg.Keyboard.Model, "default")),
			ui.FormatField("Layout", orDefault(cfg.Keyboard.Layout, "default")),
			ui.FormatField("Variant", orDefault(cfg.Keyboard.Variant, "default")),
			ui.FormatField("Options", orDefault(cfg.Keyboard.Options, "none")),
			ui.FormatField("Compose", boolString(cfg.Keyboard.Compose)),
			ui.FormatField("Locale", config.Locale()),
			ui.FormatField("Repeat interval", cfg.Keyboard.RepeatInterval.String()),
			"",
			ui.FormatHeader("IPC"),
			ui.FormatField("Socket", socket),
		}
		_, err = fmt.Fprintln(out, strings.Join(lines, "\n"))
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.GetConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				logger.Infof("Configuration file already exists at: %s", configPath)
				logger.Info("Use --force to overwrite")
				return nil
			}
		}

		if err := config.Save(); err != nil {
			return err
		}
		logger.Infof("Configuration initialized at: %s", configPath)
		return nil
	},
}

func orDefault(v, def string) string {
	if v == "" {
		return ui.SubtleStyle.Render(def)
	}
	return v
}

func boolString(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing configuration file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
