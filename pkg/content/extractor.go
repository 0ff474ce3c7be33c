package content

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Sentinel values used when a field cannot be extracted.
const (
	UnknownTitle  = "unknown title"
	UnknownAuthor = "unknown author"
)

// Meta is the best-effort article metadata pulled from raw page content.
type Meta struct {
	Title       string
	Author      string
	PublishedAt string
}

// Extractor pulls article metadata from serialized page content. It is a
// replaceable strategy so tests can run against synthetic fixtures instead
// of real-world page structure.
type Extractor interface {
	Extract(rawHTML string) Meta
}

// Selector chains for WeChat article pages, most specific first. The first
// match wins.
var (
	wechatTitleSelectors  = []string{"#activity-name", "h1.rich_media_title", ".rich_media_title"}
	wechatAuthorSelectors = []string{"#js_name", ".rich_media_meta_nickname", "#js_author_name", ".wx_follow_nickname"}
	wechatTimeSelectors   = []string{"#publish_time", "em#publish_time", ".publish_time"}
)

// Regex fallbacks for pages where the DOM queries come up empty (e.g. the
// markup arrived partially serialized).
var (
	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?s)<h1[^>]*id="activity-name"[^>]*>(.*?)</h1>`),
		regexp.MustCompile(`(?s)<h1[^>]*class="[^"]*rich_media_title[^"]*"[^>]*>(.*?)</h1>`),
		regexp.MustCompile(`property="og:title"\s+content="([^"]+)"`),
		regexp.MustCompile(`(?s)<title[^>]*>(.*?)</title>`),
	}
	authorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?s)<[^>]*id="js_name"[^>]*>(.*?)</`),
		regexp.MustCompile(`property="og:article:author"\s+content="([^"]+)"`),
		regexp.MustCompile(`name="author"\s+content="([^"]+)"`),
	}
	timePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?s)<em[^>]*id="publish_time"[^>]*>(.*?)</em>`),
		regexp.MustCompile(`(?s)<[^>]*id="publish_time"[^>]*>(.*?)</`),
	}
	tagPattern = regexp.MustCompile(`<[^>]+>`)
)

// WeChatExtractor extracts metadata from WeChat official-account article
// markup. Extraction is best effort and never fails: absent fields yield the
// sentinel values.
type WeChatExtractor struct{}

func NewWeChatExtractor() *WeChatExtractor {
	return &WeChatExtractor{}
}

func (e *WeChatExtractor) Extract(rawHTML string) Meta {
	meta := Meta{Title: UnknownTitle, Author: UnknownAuthor}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err == nil {
		if v := firstText(doc, wechatTitleSelectors); v != "" {
			meta.Title = v
		}
		if v := firstText(doc, wechatAuthorSelectors); v != "" {
			meta.Author = v
		}
		if v := firstText(doc, wechatTimeSelectors); v != "" {
			meta.PublishedAt = v
		}
	}

	if meta.Title == UnknownTitle {
		if v := firstPattern(rawHTML, titlePatterns); v != "" {
			meta.Title = v
		}
	}
	if meta.Author == UnknownAuthor {
		if v := firstPattern(rawHTML, authorPatterns); v != "" {
			meta.Author = v
		}
	}
	if meta.PublishedAt == "" {
		meta.PublishedAt = firstPattern(rawHTML, timePatterns)
	}
	return meta
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if v := strings.TrimSpace(doc.Find(sel).First().Text()); v != "" {
			return v
		}
	}
	return ""
}

func firstPattern(raw string, patterns []*regexp.Regexp) string {
	for _, p := range patterns {
		m := p.FindStringSubmatch(raw)
		if len(m) < 2 {
			continue
		}
		v := strings.TrimSpace(tagPattern.ReplaceAllString(m[1], ""))
		if v != "" {
			return v
		}
	}
	return ""
}

// ReadabilityExtractor is a generic fallback for non-WeChat pages, built on
// go-readability's article parser.
type ReadabilityExtractor struct{}

func NewReadabilityExtractor() *ReadabilityExtractor {
	return &ReadabilityExtractor{}
}

func (e *ReadabilityExtractor) Extract(rawHTML string) Meta {
	meta := Meta{Title: UnknownTitle, Author: UnknownAuthor}
	// readability resolves relative links against the page URL; the snapshot
	// arrives without one, so any well-formed base will do.
	base, _ := url.Parse("https://mp.weixin.qq.com/")
	article, err := readability.FromReader(strings.NewReader(rawHTML), base)
	if err != nil {
		return meta
	}
	if t := strings.TrimSpace(article.Title); t != "" {
		meta.Title = t
	}
	if b := strings.TrimSpace(article.Byline); b != "" {
		meta.Author = b
	}
	return meta
}
