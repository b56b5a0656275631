package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport covers network, TLS and DNS failures.
	ErrTransport = errors.New("transport failure")
	// ErrFormNotFound indicates the expected form is missing from a page.
	ErrFormNotFound = errors.New("form not found")
	// ErrElementNotFound indicates an expected element is missing from a page.
	ErrElementNotFound = errors.New("element not found")
	// ErrSecretRetrieval indicates a secret was missing, empty or unreadable.
	ErrSecretRetrieval = errors.New("secret retrieval failure")
	// ErrArchiveStore covers blob and metadata store failures other than a
	// confirmed not-found probe.
	ErrArchiveStore = errors.New("archive store failure")
	// ErrOperationParse indicates a malformed or unknown operation tag.
	ErrOperationParse = errors.New("operation parse failure")
	// ErrNotImplemented is returned by operations that have no implementation.
	ErrNotImplemented = errors.New("not implemented")
	// ErrBlobNotFound is returned by BlobStore.Head when no object exists.
	ErrBlobNotFound = errors.New("blob not found")
)

// HTTPStatusError reports a response whose status is outside 2xx-3xx.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP request to %s failed: status code %d", e.URL, e.StatusCode)
}

// CheckStatus returns an HTTPStatusError when status is outside 200-399.
func CheckStatus(url string, status int) error {
	if status < 200 || status > 399 {
		return &HTTPStatusError{URL: url, StatusCode: status}
	}
	return nil
}
