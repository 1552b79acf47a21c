package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	unknownCategory = "unknown"
	defaultSlug     = "index"
	maxSlugLength   = 200
	textCategorySuf = "_text"
)

var (
	invalidCategoryChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)
)

// Category derives the taxonomy bucket from the first path segment of rawURL.
// URLs outside siteHost and its subdomains, or without a "/<segment>/"
// prefix, map to "unknown". An empty siteHost accepts any host. Percent
// escapes are kept so distinct non-ASCII segments stay distinct.
func Category(siteHost, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return unknownCategory
	}
	if siteHost != "" && !onSite(u.Hostname(), siteHost) {
		return unknownCategory
	}
	rest := strings.TrimPrefix(u.EscapedPath(), "/")
	segment, _, found := strings.Cut(rest, "/")
	if !found || segment == "" {
		return unknownCategory
	}
	return invalidCategoryChars.ReplaceAllString(segment, "_")
}

func onSite(host, siteHost string) bool {
	host = strings.ToLower(host)
	siteHost = strings.ToLower(siteHost)
	return host == siteHost || strings.HasSuffix(host, "."+siteHost)
}

// TextCategory is the folder that receives extracted text for category.
func TextCategory(category string) string {
	return category + textCategorySuf
}

// Slug derives a safe base filename from the final path segment of rawURL.
// A category landing page ("/thuoc/") and the site root both yield "index".
// The segment is sanitised in its escaped form, like Category.
func Slug(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.EscapedPath()
	}
	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return defaultSlug
	}
	if len(segments) == 1 && strings.HasSuffix(path, "/") {
		return defaultSlug
	}
	slug := invalidFilenameChars.ReplaceAllString(segments[len(segments)-1], "_")
	if slug == "" || strings.HasPrefix(slug, ".") {
		return defaultSlug
	}
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return slug
}

// NormalizeURL standardizes a URL to avoid duplicates.
// It lowercases the scheme and host, removes default ports, sorts query
// parameters, and removes fragments.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return unknownCategory
	}
	return strings.ToLower(u.Hostname())
}

// rawArtifact picks the filename extension and mime type for a raw body.
func rawArtifact(slug, contentType string) (string, string) {
	if contentType == "" || strings.Contains(strings.ToLower(contentType), "html") {
		return slug + ".html", "text/html"
	}
	return slug + ".txt", "text/plain"
}
