package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appErr "github.com/xxxsen/knowhub/internal/pkg/errors"
)

const feedRequestTimeout = 30 * time.Second

type feedConfig struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// feedSource pulls documents from a generic JSON feed endpoint: a GET
// that returns an array of items, optionally behind a bearer token.
type feedSource struct {
	cfg    feedConfig
	client *http.Client
}

func newFeedSource(credentials string) (Source, error) {
	var cfg feedConfig
	if err := json.Unmarshal([]byte(credentials), &cfg); err != nil {
		return nil, fmt.Errorf("decode feed credentials: %w", err)
	}
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.URL == "" {
		return nil, fmt.Errorf("feed url is required")
	}
	return &feedSource{
		cfg:    cfg,
		client: &http.Client{Timeout: feedRequestTimeout},
	}, nil
}

func (s *feedSource) Type() string {
	return "feed"
}

func (s *feedSource) fetch(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrUpstream, err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: feed rejected credentials: %s", appErr.ErrUpstream, resp.Status)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: feed request failed: %s: %s", appErr.ErrUpstream, resp.Status, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func (s *feedSource) FetchItems(ctx context.Context) ([]Item, error) {
	resp, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var items []Item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: decode feed payload: %v", appErr.ErrUpstream, err)
	}
	out := make([]Item, 0, len(items))
	for _, item := range items {
		item.ExternalID = strings.TrimSpace(item.ExternalID)
		if item.ExternalID == "" {
			continue
		}
		if item.Title == "" {
			item.Title = item.ExternalID
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *feedSource) TestConnection(ctx context.Context) error {
	resp, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// RefreshCredentials is a no-op for token feeds; the stored token stays
// valid until the user replaces it.
func (s *feedSource) RefreshCredentials(ctx context.Context) (string, bool, error) {
	return "", false, nil
}

func init() {
	Register("feed", newFeedSource)
}
