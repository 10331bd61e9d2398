package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/repose-of-mind/repose/internal/config"
	"github.com/repose-of-mind/repose/internal/observability"
)

type rootOptions struct {
	envFiles  []string
	logLevel  string
	logFormat string
}

func main() {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "repose",
		Short:         "Repose of Mind chat backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override LOG_FORMAT (json|console)")

	root.AddCommand(
		newServeCommand(opts),
		newAskCommand(opts),
		newHistoryCommand(opts),
		newTokenCommand(opts),
	)
	cobra.CheckErr(root.Execute())
}

// load reads configuration and installs the global logger.
func (o *rootOptions) load() (config.Config, zerolog.Logger, error) {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	logger, err := observability.SetupGlobalLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, logger, nil
}
