package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"obit-feed-enricher/internal/config"
	"obit-feed-enricher/pkg/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	configFile string
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.NewViper()}

	cmd := &cobra.Command{
		Use:   "obitfeed",
		Short: "Enrich an obituary RSS feed with the content of each linked page",
		Long: `obitfeed reads an RSS feed, fetches the page behind every item link,
extracts the designated obituary blocks and writes them back into the item
descriptions. The run stops early, but still saves, when a page asks
"are you human".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().String(config.KeyLogLevel, config.DefaultLogLevel, "log level: debug, info, warn, error")
	_ = opts.v.BindPFlag(config.KeyLogLevel, cmd.PersistentFlags().Lookup(config.KeyLogLevel))

	cmd.AddCommand(
		newEnrichCmd(opts),
		newExtractCmd(opts),
		newLinksCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				cmd.Println("obitfeed", version)
			},
		},
	)
	return cmd
}

// load resolves the configuration from flags, env and the config file.
func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.v, o.configFile)
	if err != nil {
		return cfg, usageError{err}
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (logger.Logger, error) {
	return logger.New(logger.Config{Level: cfg.LogLevel})
}
