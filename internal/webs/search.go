package webs

import (
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
	"github.com/JakeFAU/govscout-crawler/internal/form"
)

const (
	searchLinkSelector  = "a#leftnav_hypSearch.leftnav-hyperlink"
	opportunitySelector = "tr.Grid3File1, tr.Grid3File2"
	detailLinkSelector  = "a.ctext-hyperlink"

	commCodesField = "radCommCodes"
	countiesField  = "radCounties"

	// The portal returns 100 opportunities per page.
	opportunitiesInitialSize = 4096
)

// FetchOpportunityListingPage walks from the home page to the opportunity
// search, searches every commodity code and county, and emits a detail step
// for each opportunity on every result page.
func (c *Crawler) FetchOpportunityListingPage(ctx context.Context, inv crawler.Invocation, req crawler.CrawlRequest) ([]crawler.NextRequest, error) {
	homeURL, err := requestURL(req, c.HomeURL())
	if err != nil {
		return nil, err
	}
	s := c.newStep(inv, req, crawler.WebsFetchOpportunityListingPage)

	home, err := s.get(ctx, "home page", homeURL.String())
	if err != nil {
		return nil, err
	}
	homeDoc, err := home.Document()
	if err != nil {
		return nil, err
	}
	searchURL := findSearchURL(homeURL, homeDoc, s.logger)

	search, err := s.get(ctx, "search opportunities page", searchURL.String())
	if err != nil {
		return nil, err
	}
	searchForm, _, err := parseForm(search)
	if err != nil {
		s.logger.Error("failed to parse search opportunities form", zap.Error(err))
		return nil, err
	}
	searchForm.Set(commCodesField, "1")
	searchForm.Set(countiesField, "1")

	first, err := s.submit(ctx, "search opportunities form", searchForm)
	if err != nil {
		return nil, err
	}
	firstDoc, err := first.Document()
	if err != nil {
		return nil, err
	}

	next := make([]crawler.NextRequest, 0, opportunitiesInitialSize)
	next = s.appendOpportunities(next, firstDoc, searchURL)

	pager, err := form.Parse(searchURL, firstDoc, formName)
	if err != nil {
		s.logger.Error("failed to parse opportunity listing form", zap.Error(err))
		return nil, err
	}
	events := form.FindPagerEvents(firstDoc, s.logger)
	s.logger.Info("parsed first opportunity page",
		zap.Int("opportunities", len(next)),
		zap.Int("pages", len(events)+1),
	)

	for _, ev := range events {
		page := pager.Clone()
		page.ApplyEvent(ev)
		resp, err := s.submit(ctx, "opportunity listing page "+ev.Target, page)
		if err != nil {
			return nil, err
		}
		doc, err := resp.Document()
		if err != nil {
			return nil, err
		}
		next = s.appendOpportunities(next, doc, searchURL)
	}
	return next, nil
}

// findSearchURL locates the Search Opportunities link in the left navigation,
// falling back to the well-known path when the link is absent.
func findSearchURL(home *url.URL, doc *goquery.Document, logger *zap.Logger) *url.URL {
	fallback := home.ResolveReference(&url.URL{Path: searchBidPath})
	link := doc.Find(searchLinkSelector).First()
	if link.Length() == 0 {
		logger.Warn("search opportunities link not found; using default search url", zap.String("url", fallback.String()))
		return fallback
	}
	href, ok := link.Attr("href")
	if !ok {
		logger.Warn("search opportunities link has no href; using default search url", zap.String("url", fallback.String()))
		return fallback
	}
	resolved, err := home.Parse(href)
	if err != nil {
		logger.Warn("search opportunities link is not a url; using default search url",
			zap.String("href", href), zap.Error(err))
		return fallback
	}
	return resolved
}

// appendOpportunities adds a detail step for each opportunity row, in
// document order. Rows without a usable link are skipped.
func (s *step) appendOpportunities(next []crawler.NextRequest, doc *goquery.Document, page *url.URL) []crawler.NextRequest {
	doc.Find(opportunitySelector).Each(func(_ int, row *goquery.Selection) {
		a := row.Find(detailLinkSelector).First()
		if a.Length() == 0 {
			s.logger.Warn("no hyperlink found for opportunity")
			return
		}
		href, ok := a.Attr("href")
		if !ok {
			s.logger.Warn("opportunity link missing href")
			return
		}
		detail, err := page.Parse(href)
		if err != nil {
			s.logger.Warn("failed to parse opportunity url", zap.String("href", href), zap.Error(err))
			return
		}
		next = append(next, s.next(crawler.WebsFetchOpportunityDetailPage, detail.String()))
	})
	return next
}
