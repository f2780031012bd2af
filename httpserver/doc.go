// Package httpserver exposes the provisioning gateway over HTTP.
//
// The public API is two POST endpoints: /create-account runs the full
// provisioning workflow and /check-btc-machine is a standalone ownership
// lookup. Health and diagnostic endpoints (livez, readyz, drain, undrain,
// optional pprof) sit next to them for load balancers and operators, and
// Prometheus metrics are served from a separate listener.
package httpserver
