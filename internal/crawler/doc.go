// Package crawler implements the sitemap crawl orchestrator: it walks the
// sitemap tree through a work queue, deduplicates page URLs, extracts article
// text, and hands both artifacts of every page to the archiver.
package crawler
