// Package api hosts the HTTP server, middleware, and read-only REST handlers for
// operators watching batch runs. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/runs and /v1/runs/{run_id} for run progress via the
//     store.RunRepository interface.
package api
