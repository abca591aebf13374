package repositories

import (
	"context"
	"fmt"
	"strings"
)

// MediaRepository resolves video source references into playable URLs
type MediaRepository struct {
	client *Client
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(client *Client) *MediaRepository {
	return &MediaRepository{client: client}
}

// ResolveSource turns a video source reference into a streamable URL.
// References that are already absolute URLs pass through untouched; opaque
// upload keys are resolved by the media endpoint of the course API.
func (r *MediaRepository) ResolveSource(ctx context.Context, ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}

	params := struct {
		Key string `json:"key"`
	}{Key: ref}

	var resp struct {
		URL string `json:"url"`
	}

	if err := r.client.post(ctx, "/media/resolve", params, &resp); err != nil {
		return "", fmt.Errorf("failed to resolve media source %q: %w", ref, err)
	}
	if resp.URL == "" {
		return "", fmt.Errorf("media resolver returned empty url for %q", ref)
	}

	return resp.URL, nil
}
