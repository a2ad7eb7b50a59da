package nse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// SearchResult is one ETF entry from the trading-app search endpoint.
type SearchResult struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}

type searchResponse struct {
	Data struct {
		Content []struct {
			EntityType   string `json:"entity_type"`
			Title        string `json:"title"`
			NseScripCode string `json:"nse_scrip_code"`
		} `json:"content"`
	} `json:"data"`
}

// SearchETFs queries the trading-app search endpoint by keyword and filters
// the response down to ETF entries. Stateless pass-through: no session, no
// caching.
func (c *Client) SearchETFs(ctx context.Context, keyword string) ([]SearchResult, error) {
	if c.cfg.SearchURL == "" {
		return nil, fmt.Errorf("search endpoint not configured")
	}
	searchURL := c.cfg.SearchURL + "?query=" + url.QueryEscape(keyword)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", keyword, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return nil, fmt.Errorf("%w: search %q -> %d: %s", ErrUpstreamStatus, keyword, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("search %q: decode: %w", keyword, err)
	}

	out := make([]SearchResult, 0, len(sr.Data.Content))
	for _, e := range sr.Data.Content {
		if !strings.EqualFold(e.EntityType, "ETF") {
			continue
		}
		out = append(out, SearchResult{
			Symbol: e.NseScripCode,
			Name:   e.Title,
			Type:   "ETF",
		})
	}
	return out, nil
}
