// Package cookies provides a cookie jar whose state survives serialization
// between crawl steps, session cookies included.
package cookies

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

type entry struct {
	Record
	name   string
	value  string
	secure bool
	seq    uint64
}

// Jar is a lock-protected cookie store. It implements http.CookieJar so the
// transport can capture cookies on every redirect hop, and it can be read
// back by the caller once an exchange completes.
type Jar struct {
	mu      sync.RWMutex
	entries []*entry
	seq     uint64
	now     func() time.Time
}

var _ http.CookieJar = (*Jar)(nil)

// New returns an empty jar.
func New() *Jar {
	return &Jar{now: time.Now}
}

// Set merges every Set-Cookie header value into the jar, scoped to u.
func (j *Jar) Set(header http.Header, u *url.URL) {
	var parsed []*http.Cookie
	for _, line := range header.Values("Set-Cookie") {
		c, err := http.ParseSetCookie(line)
		if err != nil {
			continue
		}
		parsed = append(parsed, c)
	}
	j.SetCookies(u, parsed)
}

// Get returns the Cookie header value applicable to u.
func (j *Jar) Get(u *url.URL) (string, bool) {
	cs := j.Cookies(u)
	if len(cs) == 0 {
		return "", false
	}
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; "), true
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cs []*http.Cookie) {
	if u == nil || len(cs) == 0 {
		return
	}
	host := canonicalHost(u)
	if host == "" {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.clock()
	for _, c := range cs {
		j.insert(u, host, c, now)
	}
	j.pruneLocked(now)
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	if u == nil {
		return nil
	}
	host := canonicalHost(u)
	reqPath := u.EscapedPath()
	if reqPath == "" {
		reqPath = "/"
	}
	secure := u.Scheme == "https"

	j.mu.RLock()
	now := j.clock()
	var matched []*entry
	for _, e := range j.entries {
		if e.Expires.Expired(now) || !e.Domain.Matches(host) || !pathMatch(reqPath, e.Path.Value) {
			continue
		}
		if e.secure && !secure {
			continue
		}
		matched = append(matched, e)
	}
	j.mu.RUnlock()

	sort.SliceStable(matched, func(a, b int) bool {
		la, lb := len(matched[a].Path.Value), len(matched[b].Path.Value)
		if la != lb {
			return la > lb
		}
		return matched[a].seq < matched[b].seq
	})
	out := make([]*http.Cookie, 0, len(matched))
	for _, e := range matched {
		out = append(out, &http.Cookie{Name: e.name, Value: e.value})
	}
	return out
}

// Len returns the number of stored cookies, expired ones included until the
// next write prunes them.
func (j *Jar) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// Records returns the cookies that are unexpired at the current wall clock,
// in insertion order.
func (j *Jar) Records() []Record {
	j.mu.RLock()
	defer j.mu.RUnlock()
	now := j.clock()
	out := make([]Record, 0, len(j.entries))
	for _, e := range j.entries {
		if e.Expires.Expired(now) {
			continue
		}
		out = append(out, e.Record)
	}
	return out
}

// MarshalJSON emits the unexpired cookies. Session cookies are always kept.
func (j *Jar) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.Records())
}

// UnmarshalJSON replaces the jar contents with the encoded records. Freshness
// is not re-validated.
func (j *Jar) UnmarshalJSON(data []byte) error {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode cookie jar: %w", err)
	}
	entries := make([]*entry, 0, len(records))
	for i, rec := range records {
		c, err := http.ParseSetCookie(rec.Raw)
		if err != nil {
			return fmt.Errorf("decode cookie %d: %w", i, err)
		}
		entries = append(entries, &entry{
			Record: rec,
			name:   c.Name,
			value:  c.Value,
			secure: c.Secure,
			seq:    uint64(i),
		})
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = entries
	j.seq = uint64(len(entries))
	return nil
}

func (j *Jar) clock() time.Time {
	if j.now == nil {
		return time.Now()
	}
	return j.now()
}

func (j *Jar) insert(u *url.URL, host string, c *http.Cookie, now time.Time) {
	if c == nil || c.Name == "" {
		return
	}
	domain, ok := cookieDomain(host, c.Domain)
	if !ok {
		return
	}
	path := Path{Value: defaultPath(u)}
	if strings.HasPrefix(c.Path, "/") {
		path = Path{Value: c.Path, Explicit: true}
	}

	var expires Expiry
	switch {
	case c.MaxAge < 0:
		j.removeLocked(c.Name, domain, path.Value)
		return
	case c.MaxAge > 0:
		expires = AtUTC(now.Add(time.Duration(c.MaxAge) * time.Second))
	case !c.Expires.IsZero():
		if !c.Expires.After(now) {
			j.removeLocked(c.Name, domain, path.Value)
			return
		}
		expires = AtUTC(c.Expires)
	default:
		expires = SessionEnd()
	}

	raw := c.Raw
	if raw == "" {
		raw = c.String()
	}
	next := &entry{
		Record: Record{Raw: raw, Path: path, Domain: domain, Expires: expires},
		name:   c.Name,
		value:  c.Value,
		secure: c.Secure,
	}
	for i, e := range j.entries {
		if e.name == c.Name && e.Domain == domain && e.Path.Value == path.Value {
			next.seq = e.seq
			j.entries[i] = next
			return
		}
	}
	next.seq = j.seq
	j.seq++
	j.entries = append(j.entries, next)
}

func (j *Jar) removeLocked(name string, domain Domain, path string) {
	kept := j.entries[:0]
	for _, e := range j.entries {
		if e.name == name && e.Domain == domain && e.Path.Value == path {
			continue
		}
		kept = append(kept, e)
	}
	j.entries = kept
}

func (j *Jar) pruneLocked(now time.Time) {
	kept := j.entries[:0]
	for _, e := range j.entries {
		if e.Expires.Expired(now) {
			continue
		}
		kept = append(kept, e)
	}
	j.entries = kept
}

func canonicalHost(u *url.URL) string {
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}

func cookieDomain(host, attr string) (Domain, bool) {
	attr = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(attr)), ".")
	if attr == "" {
		return HostOnly(host), true
	}
	if net.ParseIP(host) != nil {
		if attr == host {
			return HostOnly(host), true
		}
		return Domain{}, false
	}
	if !domainMatch(host, attr) {
		return Domain{}, false
	}
	if suffix, _ := publicsuffix.PublicSuffix(attr); suffix == attr {
		if attr == host {
			return HostOnly(host), true
		}
		return Domain{}, false
	}
	return Suffix(attr), true
}

func domainMatch(host, domain string) bool {
	if host == domain {
		return true
	}
	return strings.HasSuffix(host, "."+domain)
}

func pathMatch(reqPath, cookiePath string) bool {
	if reqPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || reqPath[len(cookiePath)] == '/'
}

func defaultPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}
