package embedmeta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

var (
	ErrNotFound      = errors.New("embed not found")
	ErrNotEmbeddable = errors.New("embed is not embeddable")
)

func (c *Client) getWithOEmbed(ctx context.Context, embedURL string) (*Metadata, error) {
	u, err := url.Parse(c.oembedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse oembed url: %w", err)
	}

	q := u.Query()
	q.Set("url", embedURL)
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusNotFound:
			return nil, ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotImplemented:
			return nil, ErrNotEmbeddable
		default:
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
	}

	var md Metadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return nil, fmt.Errorf("failed to decode oembed response: %w", err)
	}

	return &md, nil
}
