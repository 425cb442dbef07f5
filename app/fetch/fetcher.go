package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	"feedgarden/app/database"
	"feedgarden/app/proxy"
)

// maxBodySize caps how much of a response is read. Feeds larger than this
// are truncated and will fail parsing instead of exhausting memory.
const maxBodySize = 5 * 1024 * 1024

const acceptHeader = "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8"

// Result is a completed fetch. When NotModified is set the body is empty
// and there is nothing to parse; the poll still counts as a success.
type Result struct {
	StatusCode   int
	Body         []byte
	ContentType  string
	ETag         string
	LastModified string
	RedirectURL  string // first redirect target, when one was followed
	ViaProxy     string // proxy address that served the response
	NotModified  bool

	challenge bool
}

// Fetcher performs conditional GETs for sources, following a single
// redirect and falling back to web proxies when Cloudflare blocks the
// direct route.
type Fetcher struct {
	pool          *proxy.Pool
	userAgent     string
	timeout       time.Duration
	proxyAttempts int
	transport     http.RoundTripper
}

func NewFetcher(pool *proxy.Pool, userAgent string, timeout time.Duration, proxyAttempts int) *Fetcher {
	return &Fetcher{
		pool:          pool,
		userAgent:     userAgent,
		timeout:       timeout,
		proxyAttempts: proxyAttempts,
		transport:     http.DefaultTransport,
	}
}

// Fetch performs one poll request for the source. Sources already known to
// sit behind Cloudflare skip the direct attempt when proxies are available.
func (f *Fetcher) Fetch(ctx context.Context, src *database.Source) (*Result, error) {
	if src.IsCloudflare && f.pool.Len() > 0 {
		return f.fetchViaProxies(ctx, src, 0)
	}

	res, err := f.fetchOnce(ctx, src, "")
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	if res.challenge {
		return f.fetchViaProxies(ctx, src, res.StatusCode)
	}
	return finish(res)
}

// fetchViaProxies retries the request through pool candidates, waiting a
// fibonacci interval between attempts. blockedStatus is the status of the
// direct attempt, zero when the direct route was skipped.
func (f *Fetcher) fetchViaProxies(ctx context.Context, src *database.Source, blockedStatus int) (*Result, error) {
	candidates := f.pool.Candidates(f.proxyAttempts)
	if len(candidates) == 0 {
		return nil, &Error{
			Kind:       KindCloudflare,
			StatusCode: blockedStatus,
			Err:        errors.New("no proxy candidates available"),
		}
	}

	var (
		res         *Result
		attempt     int
		attemptErrs error
	)
	backoff := retry.WithMaxRetries(uint64(len(candidates)-1), retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		addr := candidates[attempt]
		attempt++

		r, err := f.fetchOnce(ctx, src, addr)
		if err != nil {
			f.pool.Report(addr, false)
			attemptErrs = multierr.Append(attemptErrs, fmt.Errorf("proxy %s: %w", addr, err))
			return retry.RetryableError(err)
		}
		if r.challenge {
			f.pool.Report(addr, false)
			err := fmt.Errorf("proxy %s: challenge persists (HTTP %d)", addr, r.StatusCode)
			attemptErrs = multierr.Append(attemptErrs, err)
			return retry.RetryableError(err)
		}

		f.pool.Report(addr, true)
		res = r
		return nil
	})
	if err != nil {
		return nil, &Error{Kind: KindProxyExhausted, StatusCode: blockedStatus, Err: attemptErrs}
	}
	return finish(res)
}

// fetchOnce performs a single request, optionally routed through a proxy.
// It follows at most one redirect; a second hop is returned as its raw 3xx
// response. Transport errors are returned unwrapped for the caller to
// classify.
func (f *Fetcher) fetchOnce(ctx context.Context, src *database.Source, proxyAddr string) (*Result, error) {
	transport := f.transport
	if proxyAddr != "" {
		proxyURL, err := url.Parse(proxyAddr)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy address %q: %w", proxyAddr, err)
		}
		proxyTransport := &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		defer proxyTransport.CloseIdleConnections()
		transport = proxyTransport
	}

	var redirectURL string
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > 1 {
				return http.ErrUseLastResponse
			}
			redirectURL = req.URL.String()
			return nil
		},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, src.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgentFor(src))
	req.Header.Set("Accept", acceptHeader)
	if src.ETag != "" {
		req.Header.Set("If-None-Match", src.ETag)
	}
	if src.LastModified != "" {
		req.Header.Set("If-Modified-Since", src.LastModified)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Result{
		StatusCode:   resp.StatusCode,
		Body:         body,
		ContentType:  resp.Header.Get("Content-Type"),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		RedirectURL:  redirectURL,
		ViaProxy:     proxyAddr,
		NotModified:  resp.StatusCode == http.StatusNotModified,
		challenge:    isChallenge(resp.StatusCode, resp.Header.Get("Server"), body),
	}, nil
}

// finish maps a raw response to the fetch outcome: 304 and 2xx succeed,
// everything else is a terminal HTTP error for this cycle.
func finish(res *Result) (*Result, error) {
	if res.NotModified {
		return res, nil
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &Error{Kind: KindHTTP, StatusCode: res.StatusCode}
	}
	return res, nil
}

// userAgentFor appends the subscriber count, which tells feed operators how
// many readers one poll stands for.
func (f *Fetcher) userAgentFor(src *database.Source) string {
	subs := src.NumSubs
	if subs < 1 {
		subs = 1
	}
	return fmt.Sprintf("%s (%d subscribers)", f.userAgent, subs)
}
