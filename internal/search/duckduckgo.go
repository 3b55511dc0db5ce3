package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

const duckDuckGoURL = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the DuckDuckGo HTML results page. It needs no API key.
type DuckDuckGo struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewDuckDuckGo creates a DuckDuckGo searcher.
func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{
		baseURL:    duckDuckGoURL,
		userAgent:  "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko)",
		httpClient: newHTTPClient(),
	}
}

// Search runs query and returns up to maxResults hits.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) (model.SearchResponse, error) {
	maxResults = clampResults(maxResults)

	params := url.Values{}
	params.Set("q", query)
	params.Set("kl", "br-pt")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return model.SearchResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return model.SearchResponse{}, fmt.Errorf("failed to search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return model.SearchResponse{}, statusError("duckduckgo", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return model.SearchResponse{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	results := make([]model.SearchResult, 0, maxResults)
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		target := resolveRedirect(href)
		if title == "" || target == "" {
			return true
		}
		results = append(results, model.SearchResult{
			Title:   title,
			URL:     target,
			Snippet: strings.Join(strings.Fields(s.Find(".result__snippet").Text()), " "),
		})
		return len(results) < maxResults
	})

	return model.SearchResponse{
		Query:   query,
		Summary: summarize(results),
		Results: results,
	}, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" {
		return ""
	}
	return u.String()
}
