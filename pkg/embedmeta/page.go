package embedmeta

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

func (c *Client) getFromPage(ctx context.Context, pageURL string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	md := Metadata{
		Title:        getMetaContent(doc, "og:title"),
		ThumbnailURL: getMetaContent(doc, "og:image"),
		AuthorName:   getLinkContent(doc),
	}
	if md.Title == "" {
		md.Title = getTitle(doc)
	}

	return &md, nil
}

func getTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := getTitle(c); title != "" {
			return title
		}
	}
	return ""
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

// getMetaContent returns the content of <meta property="..."> for an
// OpenGraph property.
func getMetaContent(n *html.Node, property string) string {
	if n.Type == html.ElementNode && n.Data == "meta" {
		if p, _ := getAttr(n, "property"); p == property {
			content, _ := getAttr(n, "content")
			return content
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if content := getMetaContent(c, property); content != "" {
			return content
		}
	}
	return ""
}

func getLinkContent(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "link" {
		if prop, _ := getAttr(n, "itemprop"); prop == "name" {
			content, _ := getAttr(n, "content")
			return content
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if content := getLinkContent(c); content != "" {
			return content
		}
	}
	return ""
}
