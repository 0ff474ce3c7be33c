package content

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// contentRootID is where WeChat renders the article body.
const contentRootID = "js_content"

// skippedElements are removed entirely during cleaning: they carry no
// article content and frequently hold tracking or ad markup.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"svg":      true,
	"form":     true,
	"object":   true,
	"embed":    true,
}

// parseContentRoot parses raw HTML and returns the article content root:
// the #js_content container when present, otherwise <body>, otherwise the
// document itself.
func parseContentRoot(rawHTML string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	if n := findByID(doc, contentRootID); n != nil {
		return n, nil
	}
	if n := findElement(doc, "body"); n != nil {
		return n, nil
	}
	return doc, nil
}

// findByID walks the tree for the element with the given id attribute.
func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && attrValue(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// findElement returns the first element with the given tag name.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// isSkipped reports whether a node should be dropped during rendering.
func isSkipped(n *html.Node) bool {
	if n.Type == html.CommentNode {
		return true
	}
	if n.Type != html.ElementNode {
		return false
	}
	return skippedElements[strings.ToLower(n.Data)]
}
