package extract

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

const articlePage = `<!doctype html>
<html><head><title>Viêm họng</title></head>
<body>
<header><p>Site header</p></header>
<div id="ftwp-postcontent">
  <nav><ul><li>Mục lục 1</li><li>Mục lục 2</li></ul></nav>
  <p>Intro with <strong>bold</strong> and <a href="/x">a link</a>.</p>
  <h2>Causes</h2>
  <p>   </p>
  <h3>Bacteria</h3>
  <ul><li>Strep</li><li>  </li><li>Staph <em>aureus</em></li></ul>
  <div class="content_insert"><p>About the hospital</p></div>
  <h2></h2>
  <h2>Treatment</h2>
  <p>Rest.</p>
</div>
<footer><p>Footer</p></footer>
</body></html>`

func newTestExtractor() *Extractor {
	return New(Config{}, fixedClock{now: time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("ICT", 7*3600))})
}

func TestExtractHTMLFormatsArticle(t *testing.T) {
	got, err := newTestExtractor().ExtractHTML([]byte(articlePage), "https://site.example/benh/viem-hong/")
	require.NoError(t, err)

	want := strings.Join([]string{
		"https://site.example/benh/viem-hong/",
		"Crawled at: 2024-05-06 00:08:09",
		"Intro with bold and a link .",
		"",
		"Causes",
		"Bacteria",
		"- Strep",
		"- Staph aureus",
		"",
		"Treatment",
		"Rest.",
	}, "\n")
	require.Equal(t, want, got)
}

func TestExtractDropsNoise(t *testing.T) {
	got, err := newTestExtractor().ExtractHTML([]byte(articlePage), "u")
	require.NoError(t, err)
	require.NotContains(t, got, "Mục lục")
	require.NotContains(t, got, "About the hospital")
	require.NotContains(t, got, "Site header")
	require.NotContains(t, got, "Footer")
}

func TestExtractFirstHeadingHasNoSeparator(t *testing.T) {
	page := `<div id="ftwp-postcontent"><h2>  </h2><h2>First</h2><p>Body</p></div>`
	got, err := newTestExtractor().ExtractHTML([]byte(page), "u")
	require.NoError(t, err)
	require.Equal(t, "u\nCrawled at: 2024-05-06 00:08:09\nFirst\nBody", got)
}

func TestExtractIsDeterministic(t *testing.T) {
	ex := newTestExtractor()
	first, err := ex.ExtractHTML([]byte(articlePage), "u")
	require.NoError(t, err)
	second, err := ex.ExtractHTML([]byte(articlePage), "u")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestExtractMissingContainer(t *testing.T) {
	_, err := newTestExtractor().ExtractHTML([]byte(`<html><body><p>Forbidden</p></body></html>`), "u")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMissingContainer))
}

func TestExtractCustomSelectors(t *testing.T) {
	ex := New(Config{ContainerSelector: "article", NoiseSelectors: []string{"aside"}}, fixedClock{})
	got, err := ex.ExtractHTML([]byte(`<article><aside><p>advert</p></aside><p>kept</p></article>`), "u")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(got, "\nkept"))
	require.NotContains(t, got, "advert")
}
