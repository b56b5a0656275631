package webs

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

// Secret names holding the portal credentials.
const (
	UsernameSecret = "Webs/Username"
	PasswordSecret = "Webs/Password"
)

const (
	emailField    = "txtEmail"
	passwordField = "txtPassword"
)

// StartCrawl logs in to the portal and hands the authenticated session to
// the first listing step.
func (c *Crawler) StartCrawl(ctx context.Context, inv crawler.Invocation, req crawler.CrawlRequest) ([]crawler.NextRequest, error) {
	loginURL, err := requestURL(req, c.LoginURL())
	if err != nil {
		return nil, err
	}
	s := c.newStep(inv, req, crawler.WebsStartCrawl)

	resp, err := s.get(ctx, "login page", loginURL.String())
	if err != nil {
		return nil, err
	}

	s.logger.Info("submitting login", zap.String("url", resp.URL.String()))
	login, _, err := parseForm(resp)
	if err != nil {
		s.logger.Error("failed to parse login form", zap.Error(err))
		return nil, err
	}
	username, err := c.secrets.Get(ctx, UsernameSecret)
	if err != nil {
		return nil, err
	}
	password, err := c.secrets.Get(ctx, PasswordSecret)
	if err != nil {
		return nil, err
	}
	login.Set(emailField, username)
	login.Set(passwordField, password)

	if _, err := s.submit(ctx, "login form", login); err != nil {
		return nil, err
	}
	s.logger.Info("login submitted", zap.Int("cookies", s.session.Jar().Len()))

	return []crawler.NextRequest{
		s.next(crawler.WebsFetchOpportunityListingPage, homeFor(resp.URL)),
	}, nil
}

// homeFor returns the home page on the host that served the login page.
func homeFor(u *url.URL) string {
	home := url.URL{Scheme: u.Scheme, Host: u.Host, Path: homePath}
	return home.String()
}
