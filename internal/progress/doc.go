// Package progress batches finished archive records on a background goroutine
// and fans them out to slower sinks such as the run ledger, a Pub/Sub topic,
// or Prometheus collectors, so crawl workers never wait on them.
package progress
