package content

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// DefaultAdKeywords flag the promotional blocks WeChat articles commonly
// carry. Lines containing any of these are stripped when content cleaning is
// enabled.
var DefaultAdKeywords = []string{
	"广告",
	"推广",
	"赞赏",
	"点击关注",
	"长按识别",
	"扫码关注",
	"二维码",
	"sponsored",
	"advertisement",
}

// Document is the processed article content handed back to the crawler.
type Document struct {
	// Body is the article rendered as Markdown
	Body string

	// Images lists the image URLs found under the content root, in
	// document order
	Images []string

	// WordCount counts non-whitespace runes in the body, which is the
	// meaningful measure for CJK text
	WordCount int

	// ImageCount is len(Images)
	ImageCount int
}

// Pipeline turns a raw page snapshot into a cleaned Markdown document.
type Pipeline struct {
	policy     *bluemonday.Policy
	adKeywords []string
}

// NewPipeline builds a pipeline. With no keywords the default ad list is
// used.
func NewPipeline(adKeywords []string) *Pipeline {
	if len(adKeywords) == 0 {
		adKeywords = DefaultAdKeywords
	}
	return &Pipeline{
		policy:     htmlPolicy(),
		adKeywords: adKeywords,
	}
}

// htmlPolicy sanitizes raw markup before parsing. UGC as a base, keeping the
// id/class attributes the content-root lookup depends on and WeChat's
// lazy-load image source.
func htmlPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("id", "class").Globally()
	p.AllowAttrs("data-src").OnElements("img")
	return p
}

// Process converts a raw snapshot into a Document. clean strips ad-keyword
// lines from the rendered body.
func (p *Pipeline) Process(rawHTML string, clean bool) (*Document, error) {
	sanitized := p.policy.Sanitize(rawHTML)

	root, err := parseContentRoot(sanitized)
	if err != nil {
		return nil, err
	}

	body := renderMarkdown(root)
	if clean {
		body = p.stripAdLines(body)
	}

	doc := &Document{
		Body:      body,
		Images:    collectImages(root),
		WordCount: countRunes(body),
	}
	doc.ImageCount = len(doc.Images)
	return doc, nil
}

// stripAdLines drops every line containing an ad keyword.
func (p *Pipeline) stripAdLines(body string) string {
	lines := strings.Split(body, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if p.isAdLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func (p *Pipeline) isAdLine(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range p.adKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// collectImages gathers image URLs under the content root in document
// order, deduplicated.
func collectImages(root *html.Node) []string {
	var urls []string
	seen := make(map[string]bool)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.ToLower(n.Data) == "img" {
			if src := imageSource(n); src != "" && !seen[src] {
				seen[src] = true
				urls = append(urls, src)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return urls
}

func countRunes(s string) int {
	count := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			count++
		}
	}
	return count
}
