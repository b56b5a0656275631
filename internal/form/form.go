// Package form replicates browser form submission for ASP.NET WebForms pages.
package form

import (
	"fmt"
	"maps"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/govscout-crawler/internal/crawler"
)

// Form is a parsed HTML form. Its fields are copied out of the document.
type Form struct {
	// ID is the form element id, empty when the form has none.
	ID     string
	Method string
	URL    *url.URL
	fields map[string]string
}

// Parse locates the form whose name attribute equals name and collects its
// fields the way a browser would serialize them on submit.
func Parse(base *url.URL, doc *goquery.Document, name string) (*Form, error) {
	sel := doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, ok := s.Attr("name")
		return ok && v == name
	}).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: form with name %q", crawler.ErrFormNotFound, name)
	}

	method := strings.ToUpper(strings.TrimSpace(sel.AttrOr("method", "")))
	if method == "" {
		method = "POST"
	}

	target := base
	if action, ok := sel.Attr("action"); ok {
		resolved, err := base.Parse(action)
		if err != nil {
			return nil, fmt.Errorf("resolve form action %q: %w", action, err)
		}
		target = resolved
	}

	id, hasID := sel.Attr("id")
	f := &Form{
		Method: method,
		URL:    target,
		fields: make(map[string]string),
	}
	if hasID {
		f.ID = id
	}

	owned := func(s *goquery.Selection, nested bool) bool {
		owner, ok := s.Attr("form")
		if !ok {
			return nested
		}
		return hasID && owner == id
	}

	sel.Find("input").Each(func(_ int, s *goquery.Selection) {
		if owned(s, true) {
			f.addInput(s)
		}
	})
	sel.Find("textarea").Each(func(_ int, s *goquery.Selection) {
		if owned(s, true) {
			f.addTextarea(s)
		}
	})
	if hasID {
		doc.Find("input").Each(func(_ int, s *goquery.Selection) {
			if owned(s, false) {
				f.addInput(s)
			}
		})
		doc.Find("textarea").Each(func(_ int, s *goquery.Selection) {
			if owned(s, false) {
				f.addTextarea(s)
			}
		})
	}
	return f, nil
}

func (f *Form) addInput(s *goquery.Selection) {
	name, ok := s.Attr("name")
	if !ok {
		return
	}
	switch strings.ToLower(s.AttrOr("type", "text")) {
	case "image":
		// Simulates a click at the far corner of the image.
		if x, ok := s.Attr("width"); ok {
			f.fields[name+".x"] = x
		}
		if y, ok := s.Attr("height"); ok {
			f.fields[name+".y"] = y
		}
	case "reset", "submit":
	default:
		f.fields[name] = s.AttrOr("value", "")
	}
}

func (f *Form) addTextarea(s *goquery.Selection) {
	name, ok := s.Attr("name")
	if !ok {
		return
	}
	f.fields[name] = s.Text()
}

// Set inserts or replaces a field and reports whether a value was replaced.
func (f *Form) Set(name, value string) bool {
	_, replaced := f.fields[name]
	f.fields[name] = value
	return replaced
}

// Get returns a field value.
func (f *Form) Get(name string) (string, bool) {
	v, ok := f.fields[name]
	return v, ok
}

// Fields returns a copy of the field map.
func (f *Form) Fields() map[string]string {
	return maps.Clone(f.fields)
}

// Values returns the fields as a urlencoded body.
func (f *Form) Values() url.Values {
	out := make(url.Values, len(f.fields))
	for k, v := range f.fields {
		out.Set(k, v)
	}
	return out
}

// Clone returns an independent copy of the form.
func (f *Form) Clone() *Form {
	u := *f.URL
	return &Form{
		ID:     f.ID,
		Method: f.Method,
		URL:    &u,
		fields: maps.Clone(f.fields),
	}
}
