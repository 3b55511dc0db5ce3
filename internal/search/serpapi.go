package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

const serpAPIURL = "https://serpapi.com/search"

// SerpAPI queries the SerpAPI Google search endpoint.
type SerpAPI struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewSerpAPI creates a SerpAPI searcher.
func NewSerpAPI(apiKey string) *SerpAPI {
	return &SerpAPI{
		apiKey:     apiKey,
		baseURL:    serpAPIURL,
		httpClient: newHTTPClient(),
	}
}

type serpAPIResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// Search runs query and returns up to maxResults organic hits.
func (s *SerpAPI) Search(ctx context.Context, query string, maxResults int) (model.SearchResponse, error) {
	maxResults = clampResults(maxResults)

	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", s.apiKey)
	params.Set("num", strconv.Itoa(maxResults))
	params.Set("hl", "pt-br")
	params.Set("gl", "br")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return model.SearchResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return model.SearchResponse{}, fmt.Errorf("failed to search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return model.SearchResponse{}, statusError("serpapi", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.SearchResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed serpAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.SearchResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != "" {
		return model.SearchResponse{}, fmt.Errorf("serpapi: %s", parsed.Error)
	}

	results := make([]model.SearchResult, 0, maxResults)
	for _, r := range parsed.OrganicResults {
		if len(results) == maxResults {
			break
		}
		if r.Link == "" {
			continue
		}
		results = append(results, model.SearchResult{
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
		})
	}

	return model.SearchResponse{
		Query:   query,
		Summary: summarize(results),
		Results: results,
	}, nil
}
