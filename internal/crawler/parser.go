package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// HTMLExtractor finds hyperlinks in HTML documents.
//
// Design decision: We use golang.org/x/net/html for parsing rather than
// regex because:
//  1. It correctly handles malformed HTML common on the web
//  2. Provides a proper DOM-like structure
//  3. Document order is simply a pre-order walk of the tree
type HTMLExtractor struct{}

// NewHTMLExtractor creates an HTMLExtractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// ExtractLinks returns the href values of <a> and <area> elements in
// document order. Values are trimmed and empty ones are dropped; nothing else
// is filtered, so the caller decides what is crawlable.
//
// When the document declares <base href>, relative hrefs are rewritten into
// absolute URLs against it, because the caller only knows the page URL.
func (e *HTMLExtractor) ExtractLinks(body []byte, base *url.URL) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	links := make([]string, 0)
	var docBase *url.URL

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "base":
				// Only the first <base> with an href counts.
				if docBase == nil {
					docBase = resolveBase(getAttr(n, "href"), base)
				}
			case "a", "area":
				if href := strings.TrimSpace(getAttr(n, "href")); href != "" {
					links = append(links, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if docBase == nil {
		return links, nil
	}
	for i, href := range links {
		ref, err := url.Parse(href)
		if err != nil || ref.IsAbs() {
			continue
		}
		links[i] = docBase.ResolveReference(ref).String()
	}
	return links, nil
}

// resolveBase turns a <base href> value into an absolute URL.
// It returns nil when the value is unusable.
func resolveBase(href string, page *url.URL) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	if page != nil {
		ref = page.ResolveReference(ref)
	}
	if !ref.IsAbs() || ref.Host == "" {
		return nil
	}
	return ref
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
