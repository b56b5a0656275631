package form

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Hidden fields carrying the control that triggered a postback.
const (
	EventTargetField   = "__EVENTTARGET"
	EventArgumentField = "__EVENTARGUMENT"
)

const (
	postBackPrefix = "javascript:__doPostBack("
	postBackSuffix = ")"
	pagerSelector  = "tr.Grid3Pager a[href]"
)

// ErrNotPostBack is returned for links that are not __doPostBack calls.
var ErrNotPostBack = errors.New("not a postback link")

// FormEvent is the target and argument encoded by a postback link.
type FormEvent struct {
	Target   string
	Argument string
}

// ParsePostBack decodes javascript:__doPostBack('TARGET','ARGUMENT').
func ParsePostBack(href string) (FormEvent, error) {
	if !strings.HasPrefix(href, postBackPrefix) || !strings.HasSuffix(href, postBackSuffix) ||
		len(href) < len(postBackPrefix)+len(postBackSuffix) {
		return FormEvent{}, fmt.Errorf("%w: %q", ErrNotPostBack, href)
	}
	inner := href[len(postBackPrefix) : len(href)-len(postBackSuffix)]
	inner = strings.ReplaceAll(inner, "&#39;", "'")

	parts := strings.Split(inner, ",")
	if len(parts) != 2 {
		return FormEvent{}, fmt.Errorf("%w: expected 2 arguments in %q", ErrNotPostBack, href)
	}
	target, ok := unquote(parts[0])
	if !ok {
		return FormEvent{}, fmt.Errorf("%w: unquoted target in %q", ErrNotPostBack, href)
	}
	argument, ok := unquote(parts[1])
	if !ok {
		return FormEvent{}, fmt.Errorf("%w: unquoted argument in %q", ErrNotPostBack, href)
	}
	return FormEvent{Target: target, Argument: argument}, nil
}

func unquote(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return "", false
	}
	return s[1 : len(s)-1], true
}

// FindPagerEvents returns the postback events behind the pager links of a
// result grid, in document order. Links that are not postbacks are skipped.
func FindPagerEvents(doc *goquery.Document, logger *zap.Logger) []FormEvent {
	if logger == nil {
		logger = zap.NewNop()
	}
	var events []FormEvent
	doc.Find(pagerSelector).Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		ev, err := ParsePostBack(href)
		if err != nil {
			logger.Warn("skipping pager link", zap.String("href", href), zap.Error(err))
			return
		}
		events = append(events, ev)
	})
	return events
}

// ApplyEvent injects ev into the hidden postback fields.
func (f *Form) ApplyEvent(ev FormEvent) {
	f.Set(EventTargetField, ev.Target)
	f.Set(EventArgumentField, ev.Argument)
}
