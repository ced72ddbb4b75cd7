package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sharetube/party/internal/repository/room"
	"github.com/sharetube/party/pkg/embedmeta"
)

type iMetadataClient interface {
	Get(ctx context.Context, embedURL string) (*embedmeta.Metadata, error)
}

type catalogItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	EmbedURL     string `json:"embed_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type catalog struct {
	hc       *http.Client
	baseURL  string
	metadata iMetadataClient
	logger   *slog.Logger
}

// NewCatalog returns a lookup backed by the catalog HTTP API. metadata may be
// nil, otherwise it fills in the title and thumbnail the catalog lacks.
func NewCatalog(baseURL string, timeout time.Duration, metadata iMetadataClient, logger *slog.Logger) *catalog {
	return &catalog{
		hc:       &http.Client{Timeout: timeout},
		baseURL:  baseURL,
		metadata: metadata,
		logger:   logger,
	}
}

func (c *catalog) itemURL(kind, id string) (string, error) {
	var collection string
	switch kind {
	case room.ContentKindMovie:
		collection = "movies"
	case room.ContentKindEpisode:
		collection = "episodes"
	default:
		return "", ErrContentNotFound
	}

	return url.JoinPath(c.baseURL, collection, id)
}

func (c *catalog) GetContent(ctx context.Context, ref room.ContentRef) (room.Content, error) {
	c.logger.DebugContext(ctx, "called", "ref", ref)
	kind, id := ref.Kind()
	itemURL, err := c.itemURL(kind, id)
	if err != nil {
		c.logger.DebugContext(ctx, "returned", "error", err)
		return room.Content{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, itemURL, nil)
	if err != nil {
		return room.Content{}, fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "returned", "error", err)
		return room.Content{}, fmt.Errorf("failed to request catalog: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		c.logger.DebugContext(ctx, "returned", "error", ErrContentNotFound)
		return room.Content{}, ErrContentNotFound
	default:
		return room.Content{}, fmt.Errorf("unexpected catalog status code: %d", resp.StatusCode)
	}

	var item catalogItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return room.Content{}, fmt.Errorf("failed to decode catalog item: %w", err)
	}

	content := room.Content{
		Kind:         kind,
		ID:           id,
		Title:        item.Title,
		EmbedURL:     item.EmbedURL,
		ThumbnailURL: item.ThumbnailURL,
	}

	if c.metadata != nil && content.EmbedURL != "" && (content.Title == "" || content.ThumbnailURL == "") {
		md, err := c.metadata.Get(ctx, content.EmbedURL)
		if err != nil {
			c.logger.InfoContext(ctx, "failed to get embed metadata", "error", err, "embed_url", content.EmbedURL)
		} else {
			if content.Title == "" {
				content.Title = md.Title
			}
			if content.ThumbnailURL == "" {
				content.ThumbnailURL = md.ThumbnailURL
			}
		}
	}

	c.logger.DebugContext(ctx, "returned", "content", content)
	return content, nil
}
