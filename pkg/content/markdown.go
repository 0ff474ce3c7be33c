package content

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// renderMarkdown converts a cleaned HTML subtree into Markdown. The
// converter covers the structural elements WeChat articles actually use:
// headings, paragraphs, emphasis, links, images, lists, quotes and code.
func renderMarkdown(root *html.Node) string {
	var b strings.Builder
	renderNode(&b, root, 0)
	out := blankLines.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}

func renderNode(b *strings.Builder, n *html.Node, listDepth int) {
	if isSkipped(n) {
		return
	}

	switch n.Type {
	case html.TextNode:
		text := collapseSpace(n.Data)
		if text != "" {
			b.WriteString(text)
		}
		return
	case html.ElementNode:
		renderElement(b, n, listDepth)
		return
	}

	renderChildren(b, n, listDepth)
}

func renderChildren(b *strings.Builder, n *html.Node, listDepth int) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c, listDepth)
	}
}

func renderElement(b *strings.Builder, n *html.Node, listDepth int) {
	tag := strings.ToLower(n.Data)
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(tag[1] - '0')
		b.WriteString("\n\n")
		b.WriteString(strings.Repeat("#", level))
		b.WriteString(" ")
		renderChildren(b, n, listDepth)
		b.WriteString("\n\n")
	case "p", "section", "div", "article":
		b.WriteString("\n\n")
		renderChildren(b, n, listDepth)
		b.WriteString("\n\n")
	case "br":
		b.WriteString("\n")
	case "hr":
		b.WriteString("\n\n---\n\n")
	case "strong", "b":
		b.WriteString("**")
		renderChildren(b, n, listDepth)
		b.WriteString("**")
	case "em", "i":
		b.WriteString("*")
		renderChildren(b, n, listDepth)
		b.WriteString("*")
	case "a":
		var inner strings.Builder
		renderChildren(&inner, n, listDepth)
		text := strings.TrimSpace(inner.String())
		href := attrValue(n, "href")
		switch {
		case text == "" && href == "":
		case href == "":
			b.WriteString(text)
		default:
			fmt.Fprintf(b, "[%s](%s)", text, href)
		}
	case "img":
		if src := imageSource(n); src != "" {
			alt := attrValue(n, "alt")
			fmt.Fprintf(b, "\n\n![%s](%s)\n\n", alt, src)
		}
	case "ul", "ol":
		b.WriteString("\n")
		item := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || strings.ToLower(c.Data) != "li" {
				continue
			}
			item++
			b.WriteString(strings.Repeat("  ", listDepth))
			if tag == "ol" {
				fmt.Fprintf(b, "%d. ", item)
			} else {
				b.WriteString("- ")
			}
			renderChildren(b, c, listDepth+1)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	case "blockquote":
		var inner strings.Builder
		renderChildren(&inner, n, listDepth)
		b.WriteString("\n\n")
		for _, line := range strings.Split(strings.TrimSpace(inner.String()), "\n") {
			b.WriteString("> ")
			b.WriteString(strings.TrimSpace(line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	case "pre":
		var inner strings.Builder
		collectText(&inner, n)
		b.WriteString("\n\n```\n")
		b.WriteString(strings.TrimRight(inner.String(), "\n"))
		b.WriteString("\n```\n\n")
	case "code":
		b.WriteString("`")
		renderChildren(b, n, listDepth)
		b.WriteString("`")
	default:
		renderChildren(b, n, listDepth)
	}
}

// imageSource prefers data-src, which WeChat uses for lazy-loaded images.
func imageSource(n *html.Node) string {
	if src := attrValue(n, "data-src"); src != "" {
		return src
	}
	return attrValue(n, "src")
}

// collectText gathers raw text, preserving newlines (used for <pre> blocks).
func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}

// collapseSpace folds runs of whitespace into single spaces. A leading or
// trailing space is kept as one space: it separates the text from adjacent
// inline elements.
func collapseSpace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	out := strings.Join(fields, " ")
	if first, _ := utf8.DecodeRuneInString(s); unicode.IsSpace(first) {
		out = " " + out
	}
	if last, _ := utf8.DecodeLastRuneInString(s); unicode.IsSpace(last) {
		out += " "
	}
	return out
}
