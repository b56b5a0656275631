package cookies

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Record is the serialized form of one stored cookie.
type Record struct {
	Raw     string `json:"raw_cookie"`
	Path    Path   `json:"path"`
	Domain  Domain `json:"domain"`
	Expires Expiry `json:"expires"`
}

// Path is the cookie path plus whether it came from an explicit Path attribute.
type Path struct {
	Value    string
	Explicit bool
}

// MarshalJSON encodes the path as a two element array.
func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Value, p.Explicit})
}

// UnmarshalJSON decodes a [string, bool] pair.
func (p *Path) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode cookie path: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("decode cookie path: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &p.Value); err != nil {
		return fmt.Errorf("decode cookie path value: %w", err)
	}
	if err := json.Unmarshal(pair[1], &p.Explicit); err != nil {
		return fmt.Errorf("decode cookie path flag: %w", err)
	}
	return nil
}

// DomainKind discriminates the domain matcher variants.
type DomainKind int

// Domain matcher variants.
const (
	DomainHostOnly DomainKind = iota
	DomainSuffix
	DomainNotPresent
	DomainEmpty
)

// Domain decides which hosts a cookie is sent to.
type Domain struct {
	Kind  DomainKind
	Value string
}

// HostOnly matches exactly one host.
func HostOnly(host string) Domain {
	return Domain{Kind: DomainHostOnly, Value: host}
}

// Suffix matches a domain and all of its subdomains.
func Suffix(domain string) Domain {
	return Domain{Kind: DomainSuffix, Value: domain}
}

// Matches reports whether host is covered by the domain.
func (d Domain) Matches(host string) bool {
	switch d.Kind {
	case DomainHostOnly:
		return host == d.Value
	case DomainSuffix:
		return domainMatch(host, d.Value)
	default:
		return false
	}
}

// MarshalJSON encodes {"HostOnly": h}, {"Suffix": d}, "NotPresent" or "Empty".
func (d Domain) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case DomainHostOnly:
		return json.Marshal(map[string]string{"HostOnly": d.Value})
	case DomainSuffix:
		return json.Marshal(map[string]string{"Suffix": d.Value})
	case DomainNotPresent:
		return json.Marshal("NotPresent")
	case DomainEmpty:
		return json.Marshal("Empty")
	default:
		return nil, fmt.Errorf("unknown cookie domain kind %d", d.Kind)
	}
}

// UnmarshalJSON accepts every variant produced by MarshalJSON.
func (d *Domain) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return fmt.Errorf("decode cookie domain: %w", err)
		}
		switch tag {
		case "NotPresent":
			*d = Domain{Kind: DomainNotPresent}
		case "Empty":
			*d = Domain{Kind: DomainEmpty}
		default:
			return fmt.Errorf("decode cookie domain: unknown variant %q", tag)
		}
		return nil
	}
	var variant map[string]string
	if err := json.Unmarshal(data, &variant); err != nil {
		return fmt.Errorf("decode cookie domain: %w", err)
	}
	if len(variant) != 1 {
		return fmt.Errorf("decode cookie domain: expected one variant, got %d", len(variant))
	}
	for tag, value := range variant {
		switch tag {
		case "HostOnly":
			*d = HostOnly(strings.ToLower(value))
		case "Suffix":
			*d = Suffix(strings.ToLower(value))
		default:
			return fmt.Errorf("decode cookie domain: unknown variant %q", tag)
		}
	}
	return nil
}

// Expiry is either the end of the logical crawl or an absolute UTC instant.
type Expiry struct {
	at      time.Time
	session bool
}

// SessionEnd expires when the crawl ends rather than when the process does.
func SessionEnd() Expiry {
	return Expiry{session: true}
}

// AtUTC expires at t.
func AtUTC(t time.Time) Expiry {
	return Expiry{at: t.UTC()}
}

// IsSession reports whether the cookie lives until the crawl ends.
func (e Expiry) IsSession() bool {
	return e.session
}

// Time returns the absolute expiry, if any.
func (e Expiry) Time() (time.Time, bool) {
	if e.session {
		return time.Time{}, false
	}
	return e.at, true
}

// Expired reports whether the cookie is past its expiry at now.
func (e Expiry) Expired(now time.Time) bool {
	return !e.session && !e.at.After(now)
}

type atUTC struct {
	AtUtc time.Time `json:"AtUtc"`
}

// MarshalJSON encodes "SessionEnd" or {"AtUtc": RFC3339}.
func (e Expiry) MarshalJSON() ([]byte, error) {
	if e.session {
		return json.Marshal("SessionEnd")
	}
	return json.Marshal(atUTC{AtUtc: e.at.UTC()})
}

// UnmarshalJSON decodes either expiry variant.
func (e *Expiry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return fmt.Errorf("decode cookie expiry: %w", err)
		}
		if tag != "SessionEnd" {
			return fmt.Errorf("decode cookie expiry: unknown variant %q", tag)
		}
		*e = SessionEnd()
		return nil
	}
	var at atUTC
	if err := json.Unmarshal(data, &at); err != nil {
		return fmt.Errorf("decode cookie expiry: %w", err)
	}
	if at.AtUtc.IsZero() {
		return fmt.Errorf("decode cookie expiry: missing AtUtc")
	}
	*e = AtUTC(at.AtUtc)
	return nil
}
