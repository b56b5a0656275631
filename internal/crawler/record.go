package crawler

import (
	"fmt"
	"time"
)

// ArchivedResponseRecord is written once per fetch. Records are never
// deduplicated; many may point at the same blob.
type ArchivedResponseRecord struct {
	CrawlID         string
	RequestID       string
	OriginalURL     string
	FinalURL        string
	Timestamp       time.Time
	Method          string
	StatusCode      int
	ContentType     string
	ContentLanguage string
	ContentLength   int64
	ETag            string
	MD5             string
	SHA256          string
	BlobBucket      string
	BlobKey         string
}

// FormatTimestamp renders t as seconds.nanoseconds with nine fractional digits.
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%09d", t.Unix(), t.Nanosecond())
}
