package fetcher

import (
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// decodingTransport undoes the response content encoding before the collector
// reads the body. colly only understands gzip, and WEBS may answer with
// deflate or br. The encoding headers are dropped once the body no longer
// matches them.
type decodingTransport struct {
	base http.RoundTripper
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err //nolint:wrapcheck // surfaced through the client as *url.Error
	}
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	if encoding == "" || encoding == "identity" {
		return resp, nil
	}

	body, err := decodeBody(encoding, resp.Body)
	if err != nil {
		resp.Body.Close() //nolint:errcheck,gosec // already failing
		return nil, err
	}
	resp.Body = body
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

func decodeBody(encoding string, body io.ReadCloser) (io.ReadCloser, error) {
	switch encoding {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		return &decodedBody{Reader: gz, decoder: gz, raw: body}, nil
	case "deflate":
		zr, err := zlib.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("deflate decode: %w", err)
		}
		return &decodedBody{Reader: zr, decoder: zr, raw: body}, nil
	case "br":
		return &decodedBody{Reader: brotli.NewReader(body), raw: body}, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// decodedBody closes both the decoder and the underlying connection body.
type decodedBody struct {
	io.Reader
	decoder io.Closer
	raw     io.Closer
}

func (b *decodedBody) Close() error {
	var errs []error
	if b.decoder != nil {
		errs = append(errs, b.decoder.Close())
	}
	errs = append(errs, b.raw.Close())
	return errors.Join(errs...)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		DisableCompression:    true,
	}
}
