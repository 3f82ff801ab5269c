// Package api hosts the HTTP server, middleware, and REST handlers of the harvester.
// Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/isins, /v1/shares and /v1/shares/search for stored data.
//   - POST /v1/runs and GET /v1/runs/{run_id} for asynchronous harvesting runs.
package api
