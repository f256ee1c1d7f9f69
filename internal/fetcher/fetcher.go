
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"obit-feed-enricher/internal/classifier"
)

var (
	ErrInvalidURL = errors.New("invalid url")
	ErrStatus     = errors.New("unexpected http status")
)

// Kind tags a fetch Outcome.
type Kind int

const (
	// Empty means no content for this entry: transport error, bad status,
	// unreadable body. The run continues.
	Empty Kind = iota
	Content
	Challenge
)

func (k Kind) String() string {
	switch k {
	case Content:
		return "content"
	case Challenge:
		return "challenge"
	default:
		return "empty"
	}
}

// Outcome is the result of one page retrieval. HTML is set only for Content,
// Err only for Empty.
type Outcome struct {
	Kind     Kind
	HTML     string
	FinalURL string
	Status   int
	Elapsed  time.Duration
	Err      error
}

type HTTPClient struct {
	client     *http.Client
	sizeCap    int64
	classifier *classifier.Classifier
}

func NewHTTPClient(timeout, dialTimeout time.Duration, sizeCap int64) *HTTPClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		sizeCap:    sizeCap,
		classifier: classifier.New(),
	}
}

// Fetch issues one GET for rawURL, sending identity as the User-Agent, and
// classifies the decoded body. It never retries.
func (h *HTTPClient) Fetch(ctx context.Context, rawURL, identity string) Outcome {
	start := time.Now()
	data, finalURL, contentType, status, err := h.get(ctx, rawURL, identity)
	out := Outcome{FinalURL: finalURL, Status: status}
	if err != nil {
		out.Err = err
		out.Elapsed = time.Since(start)
		return out
	}

	page, err := decode(data, contentType)
	if err != nil {
		out.Err = fmt.Errorf("decode body: %w", err)
		out.Elapsed = time.Since(start)
		return out
	}
	out.Elapsed = time.Since(start)

	if h.classifier.Classify(page).Label == classifier.LabelChallenge {
		out.Kind = Challenge
		return out
	}
	out.Kind = Content
	out.HTML = page
	return out
}

func (h *HTTPClient) get(ctx context.Context, rawURL, identity string) ([]byte, string, string, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, "", "", 0, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", "", 0, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("User-Agent", identity)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, "", "", 0, err
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, finalURL, "", resp.StatusCode, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	// enforce a size cap
	data, err := io.ReadAll(io.LimitReader(resp.Body, h.sizeCap))
	if err != nil {
		return nil, finalURL, "", resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return data, finalURL, resp.Header.Get("Content-Type"), resp.StatusCode, nil
}

// decode converts the body to UTF-8 using the declared or sniffed charset.
func decode(data []byte, contentType string) (string, error) {
	enc, _, _ := charset.DetermineEncoding(data, contentType)
	utf8data, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		// fallback: if already utf-8, continue
		if !utf8.Valid(data) {
			return "", err
		}
		utf8data = data
	}
	return string(utf8data), nil
}
