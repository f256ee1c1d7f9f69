package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mmcdole/gofeed"
	"github.com/spf13/cobra"

	"obit-feed-enricher/internal/config"
	"obit-feed-enricher/internal/extractor"
	"obit-feed-enricher/internal/fetcher"
	"obit-feed-enricher/internal/pipeline"
)

var errChallenge = errors.New(`challenge page detected ("are you human")`)

// newExtractCmd fetches a single page and prints the fragment a run would
// write for it.
func newExtractCmd(opts *rootOptions) *cobra.Command {
	var identity string
	cmd := &cobra.Command{
		Use:   "extract <url>",
		Short: "Fetch one page and print the extracted description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("identity") {
				cfg.Identity = identity
			}
			client := fetcher.NewHTTPClient(cfg.Timeout, config.DefaultDialTimeout, cfg.MaxBodyBytes)
			return extractOne(cmd, client, args[0], cfg.Identity)
		},
	}
	cmd.Flags().StringVar(&identity, "identity", config.DefaultIdentity, "User-Agent sent with the request")
	return cmd
}

func extractOne(cmd *cobra.Command, f pipeline.Fetcher, url, identity string) error {
	out := f.Fetch(cmd.Context(), url, identity)
	switch out.Kind {
	case fetcher.Challenge:
		return errChallenge
	case fetcher.Empty:
		return fmt.Errorf("fetch %s: %w", url, out.Err)
	}
	fragment, err := extractor.New().Extract(out.HTML)
	if err != nil {
		return err
	}
	if fragment == "" {
		cmd.PrintErrln("no content blocks found")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), fragment)
	return nil
}

// newLinksCmd lists the items of a feed, i.e. what a run would fetch.
func newLinksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "links <feed.xml>",
		Short: "List the items and links of a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fh, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer fh.Close()

			parsed, err := gofeed.NewParser().Parse(fh)
			if err != nil {
				return fmt.Errorf("parse feed: %w", err)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"#", "Title", "Link"})
			for i, it := range parsed.Items {
				link := it.Link
				if link == "" {
					link = "(none)"
				}
				t.AppendRow(table.Row{i + 1, it.Title, link})
			}
			t.Render()
			return nil
		},
	}
}
