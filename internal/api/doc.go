// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/jobs for crawl submission, with /cancel and /documents below it.
//   - GET /v1/schedules and /v1/stats for recurring crawls and fleet totals.
package api
