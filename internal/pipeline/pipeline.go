// Package pipeline runs the enrichment of a feed: every entry's page is
// fetched in turn, its designated blocks are extracted into the entry's
// description, and the document is saved once at the end.
//
// Per-entry problems (missing link, failed fetch, unparsable page) are logged
// and leave the entry untouched. A challenge page halts the loop; what was
// done so far is still saved. Only a document that cannot be loaded, or
// saved, fails the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"obit-feed-enricher/internal/classifier"
	"obit-feed-enricher/internal/feed"
	"obit-feed-enricher/internal/fetcher"
	"obit-feed-enricher/internal/metrics"
	"obit-feed-enricher/internal/models"
	"obit-feed-enricher/pkg/logger"
)

type Fetcher interface {
	Fetch(ctx context.Context, url, identity string) fetcher.Outcome
}

type Extractor interface {
	Extract(page string) (string, error)
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Params are the four inputs of a run.
type Params struct {
	Source      string
	Destination string
	Delay       time.Duration
	Identity    string
}

type Pipeline struct {
	fetcher   Fetcher
	extractor Extractor
	log       logger.Logger
	metrics   *metrics.Recorder
	sleep     SleepFunc
}

type Option func(*Pipeline)

func WithLogger(l logger.Logger) Option { return func(p *Pipeline) { p.log = l } }

func WithMetrics(r *metrics.Recorder) Option { return func(p *Pipeline) { p.metrics = r } }

func WithSleep(fn SleepFunc) Option { return func(p *Pipeline) { p.sleep = fn } }

func New(f Fetcher, x Extractor, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:   f,
		extractor: x,
		log:       logger.NewNop(),
		sleep:     Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run loads the source feed, enriches its entries and writes the destination.
// A load failure returns an error wrapping feed.ErrMalformedDocument (or the
// I/O error) and writes nothing. A cancelled ctx stops the loop like a halt
// and the partial document is still saved.
func (p *Pipeline) Run(ctx context.Context, params Params) (models.RunSummary, error) {
	start := time.Now()
	summary := models.RunSummary{Source: params.Source, Destination: params.Destination}
	log := p.log.With(logger.String("run_id", uuid.NewString()))

	log.Info("parsing feed", logger.String("source", params.Source))
	doc, err := feed.LoadFile(params.Source)
	if err != nil {
		log.Error("cannot load feed; nothing written", logger.Err(err))
		return summary, fmt.Errorf("load %s: %w", params.Source, err)
	}

	entries := doc.Entries()
	total := len(entries)
	summary.Total = total
	log.Info("feed loaded", logger.Int("entries", total), logger.String("channel", doc.ChannelTitle()))

	for i, e := range entries {
		pos := i + 1
		if ctx.Err() != nil {
			p.stopEarly(&summary, doc, entries[i:])
			summary.Interrupted = true
			log.Warn("run interrupted; saving progress", logger.Int("index", pos), logger.Err(ctx.Err()))
			break
		}

		res, requested := p.process(ctx, log, doc, e, pos, total, params.Identity)

		if res.Outcome == models.OutcomeFetchFailed && ctx.Err() != nil {
			// the fetch was cut short by cancellation, not by the remote side
			p.stopEarly(&summary, doc, entries[i:])
			summary.Interrupted = true
			log.Warn("run interrupted; saving progress", logger.Int("index", pos), logger.Err(ctx.Err()))
			break
		}

		if res.Outcome == models.OutcomeChallenge {
			p.metrics.ObserveEntry(res)
			summary.Record(res)
			p.stopEarly(&summary, doc, entries[i+1:])
			summary.Halted = true
			summary.HaltedAt = pos
			log.Info("challenge page detected; halting",
				logger.Int("index", pos),
				logger.String("title", res.Title),
				logger.String("url", res.URL),
				logger.Int("unprocessed", total-i))
			break
		}

		p.metrics.ObserveEntry(res)
		summary.Record(res)

		if requested && pos < total && params.Delay > 0 {
			log.Debug("waiting before next entry", logger.Duration("delay", params.Delay))
			if err := p.sleep(ctx, params.Delay); err != nil {
				p.stopEarly(&summary, doc, entries[i+1:])
				summary.Interrupted = true
				log.Warn("run interrupted; saving progress", logger.Int("index", pos+1), logger.Err(err))
				break
			}
		}
	}

	if err := doc.Save(params.Destination); err != nil {
		log.Error("cannot write feed", logger.String("destination", params.Destination), logger.Err(err))
		return summary, fmt.Errorf("save %s: %w", params.Destination, err)
	}

	summary.ElapsedMs = time.Since(start).Milliseconds()
	p.metrics.ObserveRun(summary)
	log.Info("updated feed saved",
		logger.String("destination", params.Destination),
		logger.Int("enriched", summary.Enriched),
		logger.Int("skipped", summary.Skipped),
		logger.Int("unprocessed", summary.Unprocessed),
		logger.Bool("halted", summary.Halted))
	return summary, nil
}

// process handles one entry. requested reports whether a page was fetched,
// which is what the inter-entry delay throttles.
func (p *Pipeline) process(ctx context.Context, log logger.Logger, doc *feed.Document, e feed.Entry, pos, total int, identity string) (models.EntryResult, bool) {
	res := models.EntryResult{Index: pos, Title: doc.Title(e)}
	title := res.Title
	if title == "" {
		title = "No Title"
	}

	link, ok := doc.Link(e)
	if !ok {
		res.Outcome = models.OutcomeMissingLink
		log.Warn("entry has no link, skipping", logger.Int("index", pos), logger.Int("total", total), logger.String("title", title))
		return res, false
	}
	res.URL = link
	log.Info("processing entry",
		logger.Int("index", pos), logger.Int("total", total),
		logger.String("title", title), logger.String("url", link))

	out := p.fetcher.Fetch(ctx, link, identity)
	res.FetchMs = out.Elapsed.Milliseconds()

	switch out.Kind {
	case fetcher.Challenge:
		res.Outcome = models.OutcomeChallenge
		return res, true

	case fetcher.Empty:
		res.Outcome = models.OutcomeFetchFailed
		res.Error = errString(out.Err)
		log.Warn("fetch failed; description left unchanged",
			logger.Int("index", pos), logger.String("url", link),
			logger.Int("status", out.Status), logger.Err(out.Err))
		return res, true

	case fetcher.Content:
		log.Debug("fetched page",
			logger.String("url", link), logger.Int("status", out.Status),
			logger.Duration("elapsed", out.Elapsed),
			logger.String("sample", classifier.Sample(out.HTML)))
		fragment, err := p.extractor.Extract(out.HTML)
		if err != nil {
			res.Outcome = models.OutcomeExtractFailed
			res.Error = err.Error()
			log.Warn("extraction failed; description left unchanged",
				logger.Int("index", pos), logger.String("url", link), logger.Err(err))
			return res, true
		}
		doc.SetDescription(e, fragment)
		res.Outcome = models.OutcomeEnriched
		res.Bytes = len(fragment)
		if fragment == "" {
			log.Warn("no content blocks found; description emptied", logger.Int("index", pos), logger.String("url", link))
		}
		return res, true
	}

	res.Outcome = models.OutcomeFetchFailed
	res.Error = fmt.Sprintf("unknown fetch outcome %d", out.Kind)
	return res, true
}

// stopEarly records the entries that the loop will not reach.
func (p *Pipeline) stopEarly(summary *models.RunSummary, doc *feed.Document, rest []feed.Entry) {
	for _, e := range rest {
		res := models.EntryResult{Index: e.Index + 1, Title: doc.Title(e), Outcome: models.OutcomeUnprocessed}
		if link, ok := doc.Link(e); ok {
			res.URL = link
		}
		p.metrics.ObserveEntry(res)
		summary.Record(res)
	}
}

// Sleep waits for d, returning early with ctx's error on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsMalformed reports whether a Run error means the source feed was unusable.
func IsMalformed(err error) bool {
	return errors.Is(err, feed.ErrMalformedDocument)
}
