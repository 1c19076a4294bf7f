// Package search wraps the Google Custom Search API used to ground prompts
// with a few snippets about the target role and company.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cvagent/internal/config"
)

const (
	searchEndpoint = "https://www.googleapis.com/customsearch/v1"
	maxResults     = 3

	// FallbackContext is returned whenever the lookup fails for any reason.
	// Context is best-effort: it must never abort a generation request.
	FallbackContext = "No additional context available."
)

// Client performs context lookups against Google Custom Search.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	engineID   string
	logger     *slog.Logger
}

// NewClient builds a search client from config.
func NewClient(cfg config.SearchConfig, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   searchEndpoint,
		apiKey:     cfg.APIKey,
		engineID:   cfg.EngineID,
		logger:     logger,
	}
}

type searchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Lookup returns a newline-joined digest of the top search results for the
// query. Any transport or API failure degrades to FallbackContext.
func (c *Client) Lookup(ctx context.Context, query string) string {
	body, err := c.fetch(ctx, query)
	if err != nil {
		c.logger.Warn("context lookup failed", slog.Any("error", err), slog.String("query", query))
		return FallbackContext
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Warn("context lookup returned invalid JSON", slog.Any("error", err))
		return FallbackContext
	}
	if len(parsed.Items) == 0 {
		return FallbackContext
	}

	snippets := make([]string, 0, maxResults)
	for i, item := range parsed.Items {
		if i >= maxResults {
			break
		}
		snippet := strings.TrimSpace(item.Snippet)
		if snippet == "" {
			continue
		}
		snippets = append(snippets, snippet)
	}
	if len(snippets) == 0 {
		return FallbackContext
	}
	return strings.Join(snippets, "\n")
}

func (c *Client) fetch(ctx context.Context, query string) ([]byte, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("num", fmt.Sprintf("%d", maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call search api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search api returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	return body, nil
}
