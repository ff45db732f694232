package cmd

import (
	"github.com/bnema/kmsloop/internal/config"
	"github.com/bnema/kmsloop/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "kmsloop",
		Short: "kmsloop - fullscreen event loop on the bare Linux console",
		Long: `kmsloop drives one fullscreen output and the input devices of a seat
without a display server. It negotiates a mode-setting output (or opens a
framebuffer), reads evdev devices and delivers ordered events to a loop.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: /etc/kmsloop or ~/.config/kmsloop)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func initConfig(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		config.SetConfigPath(configPath)
	}
	if err := config.Init(); err != nil {
		return err
	}

	switch {
	case logLevel != "":
		logger.SetLevel(logLevel)
	case config.Get().Logging.LogLevel != "":
		logger.SetLevel(config.Get().Logging.LogLevel)
	}
	return nil
}
