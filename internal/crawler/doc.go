// Package crawler defines the types shared by every crawl subsystem: crawl
// steps and their parameters, operation tags and the handler registry, the
// archived response record, and the storage and queue boundaries.
package crawler
