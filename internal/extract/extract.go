// Package extract renders the article body of a page as structured plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Default selectors for the article layout.
const (
	DefaultContainerSelector = "div#ftwp-postcontent"
	crawledAtLayout          = "2006-01-02 15:04:05"
	contentSelector          = "h2, h3, p, li"
)

// DefaultNoiseSelectors removes the table of contents and the "about the source" block.
var DefaultNoiseSelectors = []string{"nav", "div.content_insert"}

// ErrMissingContainer means the page has no article container; the page is skipped.
var ErrMissingContainer = errors.New("article container not found")

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Config selects the article container and the subtrees dropped before rendering.
type Config struct {
	ContainerSelector string
	NoiseSelectors    []string
}

// Extractor renders article containers. It is safe for concurrent use.
type Extractor struct {
	container string
	noise     []string
	clock     Clock
}

// New builds an Extractor. Empty config fields fall back to the defaults.
func New(cfg Config, clock Clock) *Extractor {
	container := strings.TrimSpace(cfg.ContainerSelector)
	if container == "" {
		container = DefaultContainerSelector
	}
	noise := cfg.NoiseSelectors
	if noise == nil {
		noise = DefaultNoiseSelectors
	}
	if clock == nil {
		clock = utcClock{}
	}
	return &Extractor{container: container, noise: noise, clock: clock}
}

// ExtractHTML parses body and renders its article container.
func (e *Extractor) ExtractHTML(body []byte, url string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return e.Extract(doc, url)
}

// Extract renders the article container of doc. The first match of each noise
// selector inside the container is removed from doc before rendering.
func (e *Extractor) Extract(doc *goquery.Document, url string) (string, error) {
	container := doc.Find(e.container).First()
	if container.Length() == 0 {
		return "", fmt.Errorf("extract %s: %w", url, ErrMissingContainer)
	}
	for _, sel := range e.noise {
		container.Find(sel).First().Remove()
	}

	lines := []string{url, "Crawled at: " + e.clock.Now().UTC().Format(crawledAtLayout)}
	emitted := false
	container.Find(contentSelector).Each(func(_ int, s *goquery.Selection) {
		text := flattenText(s)
		if text == "" {
			return
		}
		tag := goquery.NodeName(s)
		if tag == "h2" && emitted {
			lines = append(lines, "")
		}
		if tag == "li" {
			text = "- " + text
		}
		lines = append(lines, text)
		emitted = true
	})
	return strings.Join(lines, "\n"), nil
}

// flattenText joins the trimmed, non-empty text nodes under s with single spaces.
func flattenText(s *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

type utcClock struct{}

func (utcClock) Now() time.Time {
	return time.Now().UTC()
}
