
package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient() *HTTPClient {
	return NewHTTPClient(5*time.Second, 2*time.Second, 1<<20)
}

func TestFetchContentSendsIdentity(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><div data-blog-component="text">hi</div></body></html>`))
	}))
	defer ts.Close()

	out := newClient().Fetch(context.Background(), ts.URL, "TestAgent/1.0")
	require.Equal(t, Content, out.Kind, "err: %v", out.Err)
	assert.Equal(t, "TestAgent/1.0", gotUA)
	assert.Contains(t, out.HTML, "data-blog-component")
	assert.Equal(t, http.StatusOK, out.Status)
	assert.NotEmpty(t, out.FinalURL)
	assert.NoError(t, out.Err)
}

func TestFetchChallenge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>ARE YOU HUMAN?</title></head><body>` +
			`<div data-blog-component="text">real content too</div></body></html>`))
	}))
	defer ts.Close()

	out := newClient().Fetch(context.Background(), ts.URL, "ua")
	assert.Equal(t, Challenge, out.Kind)
	assert.Empty(t, out.HTML)
}

func TestFetchChallengeBeyondSampleIsContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>" + strings.Repeat("a", 600) + " are you human</body></html>"))
	}))
	defer ts.Close()

	out := newClient().Fetch(context.Background(), ts.URL, "ua")
	assert.Equal(t, Content, out.Kind)
}

func TestFetchBadStatusIsEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "are you human", http.StatusForbidden)
	}))
	defer ts.Close()

	out := newClient().Fetch(context.Background(), ts.URL, "ua")
	assert.Equal(t, Empty, out.Kind)
	assert.True(t, errors.Is(out.Err, ErrStatus))
	assert.Equal(t, http.StatusForbidden, out.Status)
}

func TestFetchInvalidURLIsEmpty(t *testing.T) {
	out := newClient().Fetch(context.Background(), "not a url", "ua")
	assert.Equal(t, Empty, out.Kind)
	assert.True(t, errors.Is(out.Err, ErrInvalidURL))
}

func TestFetchConnectionErrorIsEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	out := newClient().Fetch(context.Background(), url, "ua")
	assert.Equal(t, Empty, out.Kind)
	assert.Error(t, out.Err)
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>moved</body></html>"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	out := newClient().Fetch(context.Background(), ts.URL+"/old", "ua")
	require.Equal(t, Content, out.Kind)
	assert.True(t, strings.HasSuffix(out.FinalURL, "/new"))
}

func TestFetchDecodesDeclaredCharset(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "café" in latin-1
		_, _ = w.Write([]byte("<html><body>caf\xe9</body></html>"))
	}))
	defer ts.Close()

	out := newClient().Fetch(context.Background(), ts.URL, "ua")
	require.Equal(t, Content, out.Kind)
	assert.Contains(t, out.HTML, "café")
}

func TestFetchSizeCap(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(strings.Repeat("a", 4096)))
	}))
	defer ts.Close()

	client := NewHTTPClient(5*time.Second, 2*time.Second, 1024)
	out := client.Fetch(context.Background(), ts.URL, "ua")
	require.Equal(t, Content, out.Kind)
	assert.Len(t, out.HTML, 1024)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "content", Content.String())
	assert.Equal(t, "challenge", Challenge.String())
	assert.Equal(t, "empty", Empty.String())
}
