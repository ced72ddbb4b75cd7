package embedmeta

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Metadata struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type Client struct {
	hc        *http.Client
	oembedURL string
}

// NewClient returns a metadata client. oembedURL is the provider oEmbed
// endpoint, when empty only the page itself is inspected.
func NewClient(oembedURL string, timeout time.Duration) *Client {
	return &Client{
		hc:        &http.Client{Timeout: timeout},
		oembedURL: oembedURL,
	}
}

// Get resolves the metadata of an embed url, falling back to the page markup
// when the provider refuses the oEmbed request.
func (c *Client) Get(ctx context.Context, embedURL string) (*Metadata, error) {
	if c.oembedURL != "" {
		md, err := c.getWithOEmbed(ctx, embedURL)
		if err == nil {
			return md, nil
		}

		if !errors.Is(err, ErrNotEmbeddable) {
			return nil, fmt.Errorf("failed to get metadata with oembed: %w", err)
		}
	}

	md, err := c.getFromPage(ctx, embedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata from page: %w", err)
	}

	return md, nil
}
