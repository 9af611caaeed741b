package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const scraperUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Scraper fetches a web page and extracts its main text content.
type Scraper struct {
	client *http.Client
}

// NewScraper creates a Scraper with the given request timeout.
func NewScraper(timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scraper{client: &http.Client{Timeout: timeout}}
}

// FromURL fetches the page and extracts title, main content and metadata.
// Content selection tries, in order: a main content container, substantial
// paragraphs, substantial divs.
func (s *Scraper) FromURL(ctx context.Context, rawURL string) (*Document, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", scraperUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: HTTP %d", rawURL, resp.StatusCode)
	}

	root, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rawURL, err)
	}
	stripNoise(root)

	content := extractMainContent(root)
	if strings.TrimSpace(content) == "" {
		return nil, ErrNoContent
	}

	title := findTitle(root)
	if title == "" {
		title = "No title"
	}

	metadata := extractPageMetadata(root)
	metadata["source_url"] = rawURL
	return &Document{Content: content, Title: title, Metadata: metadata}, nil
}

// noiseTags are removed wholesale before content extraction.
var noiseTags = map[string]bool{
	"script": true,
	"style":  true,
	"nav":    true,
	"footer": true,
	"header": true,
}

// stripNoise removes non-content elements from the tree.
func stripNoise(n *html.Node) {
	var c *html.Node
	for child := n.FirstChild; child != nil; child = c {
		c = child.NextSibling
		if child.Type == html.ElementNode && noiseTags[child.Data] {
			n.RemoveChild(child)
			continue
		}
		stripNoise(child)
	}
}

// mainContainers are tried first, in priority order.
var mainContainers = []string{"main", "article"}

func extractMainContent(root *html.Node) string {
	for _, tag := range mainContainers {
		if node := findElement(root, tag); node != nil {
			return elementText(node)
		}
	}
	if node := findRoleMain(root); node != nil {
		return elementText(node)
	}

	var parts []string
	walk(root, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			if text := strings.TrimSpace(elementText(n)); len(text) > 20 {
				parts = append(parts, text)
			}
		}
	})
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}

	walk(root, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" {
			text := strings.TrimSpace(elementText(n))
			if len(text) > 100 && len(strings.Fields(text)) > 20 {
				parts = append(parts, text)
			}
		}
	})
	return strings.Join(parts, "\n\n")
}

func findTitle(root *html.Node) string {
	if node := findElement(root, "title"); node != nil {
		return strings.TrimSpace(elementText(node))
	}
	return ""
}

// metaNames maps HTML meta tag names to metadata keys.
var metaNames = map[string]string{
	"description":            "description",
	"keywords":               "keywords",
	"author":                 "author",
	"article:published_time": "published_date",
	"date":                   "published_date",
}

func extractPageMetadata(root *html.Node) map[string]string {
	metadata := make(map[string]string)
	walk(root, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "meta" {
			return
		}
		var name, content string
		for _, attr := range n.Attr {
			switch attr.Key {
			case "name", "property":
				name = attr.Val
			case "content":
				content = attr.Val
			}
		}
		if key, ok := metaNames[name]; ok && content != "" {
			if _, exists := metadata[key]; !exists {
				metadata[key] = content
			}
		}
	})
	return metadata
}

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

func findRoleMain(n *html.Node) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Key == "role" && attr.Val == "main" {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findRoleMain(c); found != nil {
			return found
		}
	}
	return nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// elementText collects the element's text, one trimmed non-empty line per
// text node.
func elementText(n *html.Node) string {
	var b strings.Builder
	walk(n, func(node *html.Node) {
		if node.Type == html.TextNode {
			if text := strings.TrimSpace(node.Data); text != "" {
				if b.Len() > 0 {
					b.WriteString("\n")
				}
				b.WriteString(text)
			}
		}
	})
	return b.String()
}
