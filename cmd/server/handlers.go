package main

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"obit-feed-enricher/internal/config"
	"obit-feed-enricher/internal/extractor"
	"obit-feed-enricher/internal/fetcher"
	"obit-feed-enricher/internal/pipeline"
	"obit-feed-enricher/pkg/logger"
)

type extractReq struct {
	URL      string `json:"url"`
	Identity string `json:"identity"`
}

type extractResp struct {
	URL      string `json:"url"`
	Outcome  string `json:"outcome"`
	Fragment string `json:"fragment,omitempty"`
	FetchMs  int64  `json:"fetchMs"`
}

type server struct {
	cfg      config.Config
	log      logger.Logger
	fetcher  pipeline.Fetcher
	pipeline *pipeline.Pipeline
	// one enrichment at a time
	busy chan struct{}
}

func newServer(cfg config.Config, l logger.Logger, f pipeline.Fetcher, opts ...pipeline.Option) *server {
	opts = append([]pipeline.Option{pipeline.WithLogger(l)}, opts...)
	return &server{
		cfg:      cfg,
		log:      l,
		fetcher:  f,
		pipeline: pipeline.New(f, extractor.New(), opts...),
		busy:     make(chan struct{}, 1),
	}
}

func (s *server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequest())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	// POST /extract  { "url": "https://..." }
	r.POST("/extract", s.extract)
	// POST /enrich?delay=3  body: RSS document, or multipart file=...
	r.POST("/enrich", s.enrich)
	return r
}

func (s *server) extract(c *gin.Context) {
	var req extractReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	identity := req.Identity
	if identity == "" {
		identity = s.cfg.Identity
	}

	out := s.fetcher.Fetch(c.Request.Context(), req.URL, identity)
	resp := extractResp{URL: req.URL, Outcome: out.Kind.String(), FetchMs: out.Elapsed.Milliseconds()}
	switch out.Kind {
	case fetcher.Empty:
		c.JSON(http.StatusBadGateway, gin.H{"url": req.URL, "outcome": resp.Outcome, "error": errText(out.Err)})
		return
	case fetcher.Content:
		fragment, err := extractor.New().Extract(out.HTML)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		resp.Fragment = fragment
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) enrich(c *gin.Context) {
	select {
	case s.busy <- struct{}{}:
		defer func() { <-s.busy }()
	default:
		c.JSON(http.StatusConflict, gin.H{"error": "an enrichment run is already in progress"})
		return
	}

	delay := s.cfg.DelayDuration()
	if v := c.Query("delay"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil || secs < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "delay must be a non-negative number"})
			return
		}
		delay = time.Duration(secs * float64(time.Second))
	}
	identity := s.cfg.Identity
	if v := c.GetHeader("X-Identity"); v != "" {
		identity = v
	}

	body, err := feedBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer body.Close()

	// copy to temp file so the run works on paths like the CLI does
	dir, err := os.MkdirTemp("", "obitfeed-*")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "temp dir error"})
		return
	}
	defer os.RemoveAll(dir)
	src, dest := filepath.Join(dir, "in.xml"), filepath.Join(dir, "out.xml")

	f, err := os.Create(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "temp file error"})
		return
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "copy error"})
		return
	}
	f.Close()

	summary, err := s.pipeline.Run(c.Request.Context(), pipeline.Params{
		Source: src, Destination: dest, Delay: delay, Identity: identity,
	})
	if err != nil {
		if pipeline.IsMalformed(err) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read output error"})
		return
	}

	c.Header("X-Entries-Total", strconv.Itoa(summary.Total))
	c.Header("X-Entries-Enriched", strconv.Itoa(summary.Enriched))
	c.Header("X-Entries-Skipped", strconv.Itoa(summary.Skipped))
	c.Header("X-Entries-Unprocessed", strconv.Itoa(summary.Unprocessed))
	if summary.Halted {
		c.Header("X-Halted-At", strconv.Itoa(summary.HaltedAt))
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", data)
}

// feedBody returns the uploaded feed: the "file" part of a multipart form,
// otherwise the raw request body.
func feedBody(c *gin.Context) (io.ReadCloser, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, errors.New("file part 'file' required")
		}
		return fh.Open()
	}
	if c.Request.Body == nil {
		return nil, errors.New("empty body")
	}
	return c.Request.Body, nil
}

func (s *server) logRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("elapsed", time.Since(start)))
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
