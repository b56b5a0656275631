// Package api hosts the admin HTTP server run alongside the poll worker.
// Notable routes:
//   - GET /healthz and /readyz for container probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawls to enqueue a StartCrawl step.
//   - GET /v1/operations to list the registered operations.
package api
