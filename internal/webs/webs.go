// Package webs crawls Washington's Electronic Business Solution (WEBS), the
// state procurement portal. Each handler runs one step of the crawl and
// returns the steps that follow it.
package webs

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/cookies"
	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/fetcher"
	"github.com/JakeFAU/govscout-crawler/internal/form"
)

// DefaultBaseURL is the production vendor portal.
const DefaultBaseURL = "https://pr-webs-vendor.des.wa.gov"

const (
	homePath      = "/Home.aspx"
	loginPath     = "/LoginPage.aspx"
	searchBidPath = "/Search_Bid.aspx"

	formName = "Form1"
)

// Config controls where the crawl starts and how pages are fetched.
type Config struct {
	// BaseURL supplies the default login and home pages when a step has no Url.
	BaseURL string
	Fetch   fetcher.Config
}

// Crawler implements the WEBS operations.
type Crawler struct {
	base     *url.URL
	fetch    fetcher.Config
	secrets  crawler.SecretStore
	archiver fetcher.Archiver
	logger   *zap.Logger
}

// New constructs a Crawler. A nil archiver leaves fetched pages unrecorded.
func New(cfg Config, secrets crawler.SecretStore, archiver fetcher.Archiver, logger *zap.Logger) (*Crawler, error) {
	if secrets == nil {
		return nil, fmt.Errorf("secret store is required")
	}
	raw := strings.TrimRight(cfg.BaseURL, "/")
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", raw)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		base:     base,
		fetch:    cfg.Fetch,
		secrets:  secrets,
		archiver: archiver,
		logger:   logger,
	}, nil
}

// Register binds every WEBS operation to its handler.
func (c *Crawler) Register(reg *crawler.Registry) error {
	handlers := map[crawler.Operation]crawler.Handler{
		crawler.WebsStartCrawl:                  c.StartCrawl,
		crawler.WebsFetchOpportunityListingPage: c.FetchOpportunityListingPage,
		crawler.WebsFetchOpportunityDetailPage:  c.FetchOpportunityDetailPage,
	}
	for op, h := range handlers {
		if err := reg.Register(op, h); err != nil {
			return err
		}
	}
	return nil
}

// LoginURL is the default StartCrawl target.
func (c *Crawler) LoginURL() string {
	return c.base.String() + loginPath
}

// HomeURL is the default listing target.
func (c *Crawler) HomeURL() string {
	return c.base.String() + homePath
}

// FetchOpportunityDetailPage is registered so detail steps parse and route,
// but it does not fetch anything yet.
func (c *Crawler) FetchOpportunityDetailPage(_ context.Context, _ crawler.Invocation, req crawler.CrawlRequest) ([]crawler.NextRequest, error) {
	target := ""
	if req.URL != nil {
		target = *req.URL
	}
	return nil, fmt.Errorf("%w: %s %s", crawler.ErrNotImplemented, crawler.WebsFetchOpportunityDetailPage, target)
}

// step is the per-invocation state shared by the handlers: the session that
// carries the jar forward and the parameters copied into every next request.
type step struct {
	session *fetcher.Session
	params  crawler.CrawlParameters
	logger  *zap.Logger
}

func (c *Crawler) newStep(inv crawler.Invocation, req crawler.CrawlRequest, op crawler.Operation) *step {
	userAgent := c.fetch.UserAgent
	if userAgent == "" {
		userAgent = fetcher.DefaultUserAgent
	}
	params := req.WithDefaults(userAgent)
	crawlID := req.CrawlIDOr(inv.RequestID)
	params.CrawlID = &crawlID

	cfg := c.fetch
	cfg.UserAgent = params.UserAgent
	logger := c.logger.With(zap.String("crawl_id", crawlID), zap.String("operation", op.String()))
	return &step{
		session: fetcher.NewSession(cfg, params.Cookies, crawlID, c.archiver, logger),
		params:  params,
		logger:  logger,
	}
}

// next builds a follow-up request carrying the session's cookies forward.
func (s *step) next(op crawler.Operation, target string) crawler.NextRequest {
	params := s.params
	params.Cookies = s.session.Jar()
	return crawler.NextRequest{
		Operation:       op,
		URL:             crawler.StringPtr(target),
		CrawlParameters: params,
	}
}

// get fetches a page and fails on an error status.
func (s *step) get(ctx context.Context, what, target string) (*fetcher.Response, error) {
	resp, err := s.session.Get(ctx, target)
	if err != nil {
		s.logger.Error("failed to fetch "+what, zap.String("url", target), zap.Error(err))
		return nil, err
	}
	if err := resp.ErrorForStatus(); err != nil {
		s.logger.Error("failed to fetch "+what, zap.String("url", target), zap.Int("status", resp.StatusCode))
		return nil, err
	}
	return resp, nil
}

// submit sends f the way a browser would and fails on an error status.
func (s *step) submit(ctx context.Context, what string, f *form.Form) (*fetcher.Response, error) {
	resp, err := s.session.Do(ctx, f.Method, f.URL.String(), f.Values())
	if err != nil {
		s.logger.Error("failed to submit "+what, zap.String("url", f.URL.String()), zap.Error(err))
		return nil, err
	}
	if err := resp.ErrorForStatus(); err != nil {
		s.logger.Error("failed to submit "+what, zap.String("url", f.URL.String()), zap.Int("status", resp.StatusCode))
		return nil, err
	}
	return resp, nil
}

// parseForm reads Form1 out of a response, resolving its action against the
// URL the response was served from.
func parseForm(resp *fetcher.Response) (*form.Form, *goquery.Document, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, nil, err
	}
	f, err := form.Parse(resp.URL, doc, formName)
	if err != nil {
		return nil, nil, err
	}
	return f, doc, nil
}

func requestURL(req crawler.CrawlRequest, fallback string) (*url.URL, error) {
	raw := fallback
	if req.URL != nil && *req.URL != "" {
		raw = *req.URL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url %q: %w", crawler.ErrTransport, raw, err)
	}
	return u, nil
}

// Seed returns the StartCrawl step that begins a crawl. Empty arguments are
// left for the handler to default.
func Seed(loginURL, userAgent, crawlID string) crawler.NextRequest {
	seed := crawler.NextRequest{
		Operation:       crawler.WebsStartCrawl,
		CrawlParameters: crawler.CrawlParameters{UserAgent: userAgent, Cookies: cookies.New()},
	}
	if loginURL != "" {
		seed.URL = crawler.StringPtr(loginURL)
	}
	if crawlID != "" {
		seed.CrawlID = crawler.StringPtr(crawlID)
	}
	return seed
}
