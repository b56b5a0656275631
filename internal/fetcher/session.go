// Package fetcher is the portal HTTP session: a colly collector that carries
// the crawl's cookie jar and user agent and archives every exchange.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/archive"
	"github.com/JakeFAU/govscout-crawler/internal/cookies"
	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/hash/digest"
	"github.com/JakeFAU/govscout-crawler/internal/metrics"
)

const (
	// DefaultUserAgent identifies the crawler when a step carries no user agent.
	DefaultUserAgent = "Mozilla/5.0 (compatible; GovScout/0.1; +https://github.com/dacut/govscout-backend)"
	// DefaultRedirectLimit is the number of redirects followed per exchange.
	DefaultRedirectLimit = 10

	acceptHeader         = "text/html,application/xhtml+xml,application/xml;q=0.9*/*;q=0.8"
	acceptEncodingHeader = "gzip, deflate, br"
)

// Config controls the session client.
type Config struct {
	UserAgent     string
	RedirectLimit int
	// Timeout bounds a whole exchange, redirects included. Zero means no limit.
	Timeout time.Duration
	// Limiter paces outgoing requests. Nil means unlimited.
	Limiter *Limiter
}

// Archiver records completed exchanges.
type Archiver interface {
	Archive(ctx context.Context, ex archive.Exchange) (crawler.ArchivedResponseRecord, error)
}

// Session issues requests on behalf of one crawl step.
type Session struct {
	collector *colly.Collector
	jar       *cookies.Jar
	limiter   *Limiter
	userAgent string
	crawlID   string
	archiver  Archiver
	logger    *zap.Logger
}

// NewSession builds a collector whose jar captures cookies on every redirect
// hop. A nil archiver leaves exchanges unrecorded.
func NewSession(cfg Config, jar *cookies.Jar, crawlID string, archiver Archiver, logger *zap.Logger) *Session {
	if jar == nil {
		jar = cookies.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Session{
		collector: newCollector(cfg, jar, userAgent),
		jar:       jar,
		limiter:   cfg.Limiter,
		userAgent: userAgent,
		crawlID:   crawlID,
		archiver:  archiver,
		logger:    logger.With(zap.String("crawl_id", crawlID)),
	}
}

// newCollector configures the base collector every exchange is cloned from.
// Every status reaches OnResponse, and the same page may be requested again
// with different form state.
func newCollector(cfg Config, jar *cookies.Jar, userAgent string) *colly.Collector {
	c := colly.NewCollector(
		colly.Async(false),
		colly.UserAgent(userAgent),
	)
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = true
	c.MaxBodySize = 0

	c.WithTransport(&decodingTransport{base: newHTTPTransport()})
	c.SetCookieJar(jar)
	c.SetRequestTimeout(cfg.Timeout)

	limit := cfg.RedirectLimit
	if limit <= 0 {
		limit = DefaultRedirectLimit
	}
	c.SetRedirectHandler(func(_ *http.Request, via []*http.Request) error {
		if len(via) >= limit {
			return fmt.Errorf("stopped after %d redirects", limit)
		}
		return nil
	})
	return c
}

// Jar returns the session's cookie jar.
func (s *Session) Jar() *cookies.Jar {
	return s.jar
}

// UserAgent returns the user agent sent with every request.
func (s *Session) UserAgent() string {
	return s.userAgent
}

// Get fetches rawURL.
func (s *Session) Get(ctx context.Context, rawURL string) (*Response, error) {
	return s.Do(ctx, http.MethodGet, rawURL, nil)
}

// Do sends a request. When fields is non-nil it is sent urlencoded, in the
// query string for GET and HEAD and as the body otherwise.
func (s *Session) Do(ctx context.Context, method, rawURL string, fields url.Values) (*Response, error) {
	method = strings.ToUpper(method)
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url %q: %w", crawler.ErrTransport, rawURL, err)
	}

	hdr := http.Header{}
	hdr.Set("User-Agent", s.userAgent)
	hdr.Set("Accept", acceptHeader)
	hdr.Set("Accept-Encoding", acceptEncodingHeader)
	var body io.Reader
	if fields != nil {
		if method == http.MethodGet || method == http.MethodHead {
			target.RawQuery = fields.Encode()
		} else {
			body = strings.NewReader(fields.Encode())
			hdr.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}

	if err := s.limiter.Wait(ctx, target.Host); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", crawler.ErrTransport, method, target, err)
	}

	var (
		out        *Response
		archiveErr error
	)
	collector := s.collector.Clone()
	collector.Context = ctx
	collector.OnResponse(func(r *colly.Response) {
		out = s.response(method, target, r)
		archiveErr = s.archive(ctx, out)
	})

	if err := collector.Request(method, target.String(), body, nil, hdr); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", crawler.ErrTransport, method, target, err)
	}
	if archiveErr != nil {
		return nil, archiveErr
	}
	if out == nil {
		return nil, fmt.Errorf("%w: %s %s: no response", crawler.ErrTransport, method, target)
	}
	return out, nil
}

// response copies a collected exchange. The request URL of r is the final URL
// after redirects.
func (s *Session) response(method string, original *url.URL, r *colly.Response) *Response {
	final := original
	if r.Request != nil && r.Request.URL != nil {
		final = r.Request.URL
	}
	header := http.Header{}
	if r.Headers != nil {
		header = r.Headers.Clone()
	}
	data := append([]byte(nil), r.Body...)
	sum := digest.Bytes(data)

	metrics.ObserveFetch(method, r.StatusCode)
	s.logger.Debug("fetched",
		zap.String("method", method),
		zap.String("url", final.String()),
		zap.Int("status", r.StatusCode),
		zap.Int64("bytes", sum.Size),
	)
	return &Response{
		StatusCode:  r.StatusCode,
		Header:      header,
		URL:         final,
		OriginalURL: original,
		Method:      method,
		Body:        data,
		Sum:         sum,
	}
}

func (s *Session) archive(ctx context.Context, resp *Response) error {
	if s.archiver == nil {
		return nil
	}
	record, err := s.archiver.Archive(ctx, archive.Exchange{
		CrawlID:     s.crawlID,
		Method:      resp.Method,
		OriginalURL: resp.OriginalURL.String(),
		FinalURL:    resp.URL.String(),
		StatusCode:  resp.StatusCode,
		Header:      resp.Header,
		Body:        resp.Body,
		Sum:         resp.Sum,
	})
	if err != nil {
		return err
	}
	resp.Record = &record
	return nil
}

// Response is a fully read exchange. URL is the final URL after redirects and
// Record is set when the exchange was archived.
type Response struct {
	StatusCode  int
	Header      http.Header
	URL         *url.URL
	OriginalURL *url.URL
	Method      string
	Body        []byte
	Sum         digest.Sum
	Record      *crawler.ArchivedResponseRecord
}

// ErrorForStatus returns a *crawler.HTTPStatusError for statuses outside 2xx
// and 3xx.
func (r *Response) ErrorForStatus() error {
	return crawler.CheckStatus(r.URL.String(), r.StatusCode)
}

// Document parses the body as HTML.
func (r *Response) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html from %s: %w", r.URL, err)
	}
	return doc, nil
}
