package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-emotion/analysis/config"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "sonido-emotion",
		Short:         "Voice feature extraction and emotion scoring",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(cmd.ErrOrStderr(), opts.logFormat, opts.logLevel)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to a YAML config file (default: ./"+config.DefaultFileName+" if present)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text",
		"Log format: text or json")

	rootCmd.AddCommand(
		newAnalyzeCmd(opts),
		newTrainCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// setupLogging installs the global logger on w. Logs never go to stdout so
// command output stays machine readable.
func setupLogging(w io.Writer, format, level string) error {
	switch format {
	case "", "text":
		logging.SetGlobalLogger(logging.NewDefaultLoggerWithWriters(w, w))
	case "json":
		base := logrus.New()
		base.SetOutput(w)
		base.SetFormatter(&logrus.JSONFormatter{})
		logging.SetGlobalLogger(logging.NewLogrusLogger(base))
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", format)
	}
	if level != "" {
		return applyLogLevel(level)
	}
	return nil
}

func applyLogLevel(name string) error {
	level, ok := logging.ParseLevel(name)
	if !ok {
		return fmt.Errorf("unknown log level %q", name)
	}
	logging.SetLevel(level)
	return nil
}

// loadConfig reads the config file and applies the global log level from it
// unless --log-level was given.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if !cmd.Flags().Changed("log-level") {
		if err := applyLogLevel(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
