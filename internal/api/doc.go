// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/documents to enqueue year/number targets, GET /v1/jobs/{id}
//     to follow them.
//   - GET /v1/documents/{id} and /v1/documents/{id}/articles to read the
//     catalog, articles grouped as a base row followed by its updates.
package api
