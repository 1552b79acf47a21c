// Package sitemap classifies fetched sitemap documents as either a sitemap
// index or a leaf URL set and lists their entries.
package sitemap

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Kind identifies the shape of a sitemap document.
type Kind string

// Sitemap document kinds.
const (
	KindIndex  Kind = "index"
	KindURLSet Kind = "urlset"
)

const (
	rootIndex   = "sitemapindex"
	rootURLSet  = "urlset"
	entryIndex  = "sitemap"
	entryURLSet = "url"
	locElement  = "loc"
)

// ErrUnknownFormat reports a document whose root is neither an index nor a URL set.
var ErrUnknownFormat = errors.New("unknown sitemap format")

// Node is a resolved sitemap document. Locs lists child sitemap URLs for an
// index and page URLs for a URL set, in document order.
type Node struct {
	Kind Kind
	Locs []string
}

// ParseError carries the top-level element names observed in a document that
// could not be classified, so callers can log diagnostics.
type ParseError struct {
	Keys []string
	Err  error
}

func (e *ParseError) Error() string {
	if len(e.Keys) == 0 {
		return fmt.Sprintf("parse sitemap: %v", e.Err)
	}
	return fmt.Sprintf("parse sitemap (keys: %s): %v", strings.Join(e.Keys, ", "), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Resolver turns raw sitemap bytes into a Node.
type Resolver struct{}

// NewResolver constructs a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve parses body and classifies it. Unrecognized or malformed documents
// yield a *ParseError.
func (r *Resolver) Resolve(body []byte) (Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return Node{}, &ParseError{Err: fmt.Errorf("decode xml: %w", err)}
	}
	roots := elementChildren(doc)
	if len(roots) != 1 {
		return Node{}, &ParseError{Keys: names(roots), Err: ErrUnknownFormat}
	}
	root := roots[0]
	switch root.Data {
	case rootIndex:
		return Node{Kind: KindIndex, Locs: locs(entries(root, entryIndex))}, nil
	case rootURLSet:
		return Node{Kind: KindURLSet, Locs: locs(entries(root, entryURLSet))}, nil
	default:
		return Node{}, &ParseError{Keys: names(roots), Err: ErrUnknownFormat}
	}
}

// entries returns every direct child of root named name. A document with a
// single entry and one with many both come back as a slice.
func entries(root *xmlquery.Node, name string) []*xmlquery.Node {
	var out []*xmlquery.Node
	for _, child := range elementChildren(root) {
		if child.Data == name {
			out = append(out, child)
		}
	}
	return out
}

func locs(nodes []*xmlquery.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		for _, child := range elementChildren(n) {
			if child.Data != locElement {
				continue
			}
			if loc := strings.TrimSpace(child.InnerText()); loc != "" {
				out = append(out, loc)
			}
			break
		}
	}
	return out
}

func elementChildren(n *xmlquery.Node) []*xmlquery.Node {
	var out []*xmlquery.Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			out = append(out, child)
		}
	}
	return out
}

func names(nodes []*xmlquery.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Data)
	}
	return out
}
