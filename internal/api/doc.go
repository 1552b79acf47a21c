// Package api hosts the ops HTTP server that runs alongside a crawl.
// Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/stats for a live UploadStats snapshot.
//   - GET /v1/folders for the category folders resolved so far.
package api
