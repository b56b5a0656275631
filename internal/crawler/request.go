package crawler

import (
	"github.com/JakeFAU/govscout-crawler/internal/cookies"
)

// CrawlParameters travel with every step of one crawl lineage.
type CrawlParameters struct {
	CrawlID   *string      `json:"CrawlId"`
	UserAgent string       `json:"UserAgent"`
	Cookies   *cookies.Jar `json:"Cookies"`
}

// WithDefaults fills in the user agent and an empty jar when absent.
func (p CrawlParameters) WithDefaults(userAgent string) CrawlParameters {
	if p.UserAgent == "" {
		p.UserAgent = userAgent
	}
	if p.Cookies == nil {
		p.Cookies = cookies.New()
	}
	return p
}

// CrawlIDOr returns the crawl id, or fallback when none has been assigned.
func (p CrawlParameters) CrawlIDOr(fallback string) string {
	if p.CrawlID != nil && *p.CrawlID != "" {
		return *p.CrawlID
	}
	return fallback
}

// CrawlRequest is an inbound crawl step. Its operation is not yet validated.
type CrawlRequest struct {
	Operation string  `json:"Operation"`
	URL       *string `json:"Url"`
	CrawlParameters
}

// NextRequest is a validated step emitted by an operation handler.
type NextRequest struct {
	Operation Operation `json:"Operation"`
	URL       *string   `json:"Url"`
	CrawlParameters
}

// Invocation describes the compute invocation that carries a batch of steps.
type Invocation struct {
	// RequestID seeds the crawl id of steps that start a new crawl.
	RequestID string
	// TraceID is propagated to outbound messages when set.
	TraceID string
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
