package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"obit-feed-enricher/internal/config"
	"obit-feed-enricher/internal/extractor"
	"obit-feed-enricher/internal/fetcher"
	"obit-feed-enricher/internal/ioformats"
	"obit-feed-enricher/internal/metrics"
	"obit-feed-enricher/internal/pipeline"
	"obit-feed-enricher/pkg/logger"
)

func newEnrichCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Fetch every item page and write the enriched feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return usageError{err}
			}
			return runEnrich(cmd, cfg, nil)
		},
	}

	f := cmd.Flags()
	f.StringP("input", "i", config.DefaultSource, "input RSS file")
	f.StringP("output", "o", config.DefaultDestination, "output RSS file")
	f.Float64P("delay", "d", config.DefaultDelay, "seconds to wait between entries")
	f.String("identity", config.DefaultIdentity, "User-Agent sent with every request")
	f.Duration("timeout", config.DefaultTimeout, "per-request timeout")
	f.Int64("max-body-bytes", config.DefaultMaxBodyBytes, "maximum page size read per request")
	f.String("report", "", "write a run report (.ndjson per entry, .yaml or .json summary)")
	f.String("metrics-file", "", "write run metrics in Prometheus textfile format")

	for key, flag := range map[string]string{
		config.KeySource:       "input",
		config.KeyDestination:  "output",
		config.KeyDelay:        "delay",
		config.KeyIdentity:     "identity",
		config.KeyTimeout:      "timeout",
		config.KeyMaxBodyBytes: "max-body-bytes",
		config.KeyReport:       "report",
		config.KeyMetricsFile:  "metrics-file",
	} {
		_ = opts.v.BindPFlag(key, f.Lookup(flag))
	}
	return cmd
}

// runEnrich builds the pipeline for cfg and reports the result. A nil fetch
// uses the HTTP client.
func runEnrich(cmd *cobra.Command, cfg config.Config, fetch pipeline.Fetcher) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Identity == "" {
		log.Warn("identity is empty; the site may block requests")
	}
	if fetch == nil {
		fetch = fetcher.NewHTTPClient(cfg.Timeout, config.DefaultDialTimeout, cfg.MaxBodyBytes)
	}

	reg := prometheus.NewRegistry()
	p := pipeline.New(fetch, extractor.New(),
		pipeline.WithLogger(log),
		pipeline.WithMetrics(metrics.New(reg)))

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	// Ctrl-C stops the loop; entries done so far are still saved
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := p.Run(ctx, pipeline.Params{
		Source:      cfg.Source,
		Destination: cfg.Destination,
		Delay:       cfg.DelayDuration(),
		Identity:    cfg.Identity,
	})
	if err != nil {
		return err
	}

	renderSummary(cmd.OutOrStdout(), summary)

	if cfg.ReportPath != "" {
		if err := ioformats.WriteReport(cfg.ReportPath, summary); err != nil {
			log.Error("cannot write report", logger.Err(err))
			return err
		}
		log.Info("report written", logger.String("path", cfg.ReportPath))
	}
	if cfg.MetricsPath != "" {
		if err := metrics.WriteTextfile(cfg.MetricsPath, reg); err != nil {
			log.Error("cannot write metrics", logger.Err(err))
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
