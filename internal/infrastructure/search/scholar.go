package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ResearchHarvester/internal/domain"
	"ResearchHarvester/internal/ports"
)

var yearExpr = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// dateLayouts are tried in order before falling back to bare-year matching.
var dateLayouts = []string{
	"2006-01-02",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2006",
	"2006",
}

// ScholarClient implements ports.SearchProvider against a SerpAPI-style
// scholar endpoint.
type ScholarClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

var _ ports.SearchProvider = (*ScholarClient)(nil)

// NewScholarClient builds a reusable client; a nil http.Client gets a
// sensible default timeout.
func NewScholarClient(endpoint, apiKey string, client *http.Client, logger *slog.Logger) *ScholarClient {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ScholarClient{endpoint: endpoint, apiKey: apiKey, client: client, logger: logger}
}

type scholarResponse struct {
	OrganicResults []scholarResult `json:"organic_results"`
	Error          string          `json:"error"`
}

type scholarResult struct {
	Title           string `json:"title"`
	Link            string `json:"link"`
	Snippet         string `json:"snippet"`
	Source          string `json:"source"`
	PublicationDate string `json:"publication_date"`
	CitedBy         int    `json:"cited_by"`
}

// Search queries the provider and maps results onto candidates. Items
// without a usable link are skipped; malformed dates degrade to unknown
// instead of failing the call.
func (c *ScholarClient) Search(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("search endpoint is not configured")
	}

	params := url.Values{}
	params.Set("engine", "google_scholar")
	params.Set("q", query)
	params.Set("num", strconv.Itoa(limit))
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "ResearchHarvester/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search provider returned %s", resp.Status)
	}

	var payload scholarResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("search provider error: %s", payload.Error)
	}

	candidates := make([]domain.Candidate, 0, len(payload.OrganicResults))
	for _, item := range payload.OrganicResults {
		if item.Link == "" {
			c.logger.Debug("skipping result without link", "title", item.Title)
			continue
		}
		candidates = append(candidates, domain.Candidate{
			ID:          domain.CandidateID(item.Link),
			Title:       strings.TrimSpace(item.Title),
			URL:         item.Link,
			Source:      strings.TrimSpace(item.Source),
			Snippet:     strings.TrimSpace(item.Snippet),
			PublishedAt: parsePublicationDate(item.PublicationDate),
			Citations:   maxInt(item.CitedBy, 0),
			Kind:        domain.ClassifyURL(item.Link),
		})
	}

	c.logger.Debug("search done", "query", query, "results", len(candidates))
	return candidates, nil
}

// parsePublicationDate is best-effort: known layouts first, then a bare
// year anywhere in the string. Failure means unknown, never an error.
func parsePublicationDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC()
		}
	}

	if match := yearExpr.FindString(raw); match != "" {
		year, _ := strconv.Atoi(match)
		return time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC)
	}

	return time.Time{}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
