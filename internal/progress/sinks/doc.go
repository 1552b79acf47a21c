// Package sinks implements concrete record consumers for the progress hub:
// Prometheus collectors and structured logging. Each sink satisfies the
// progress.Sink interface.
package sinks
