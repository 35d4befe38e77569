// Package observability provides structured logging and Prometheus metrics
// for the gateway.
//
// Logging is zap-based; NewLogger builds the process logger from config and
// FromContext decorates it with the chi request id. Metrics is a
// self-contained Prometheus registry that also serves as the event sink for
// token rotation, async polling and upstream failures.
package observability
