package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"ResearchHarvester/internal/domain"
	"ResearchHarvester/internal/ports"
)

const maxBodyBytes = 32 << 20 // refuse payloads beyond 32 MiB

// Client implements ports.ContentFetcher. PDFs are downloaded directly;
// everything else goes through the page-rendering provider, which executes
// scripts and returns the final page HTML.
type Client struct {
	renderEndpoint string
	client         *http.Client
	logger         *slog.Logger
}

var _ ports.ContentFetcher = (*Client)(nil)

// NewClient wires the rendering endpoint and an optional HTTP client.
func NewClient(renderEndpoint string, client *http.Client, logger *slog.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{renderEndpoint: renderEndpoint, client: client, logger: logger}
}

// Fetch branches on the kind classified at search time.
func (c *Client) Fetch(ctx context.Context, candidate domain.Candidate) (domain.FetchedContent, error) {
	switch candidate.Kind {
	case domain.KindPDF:
		return c.fetchPDF(ctx, candidate)
	default:
		return c.fetchRendered(ctx, candidate)
	}
}

func (c *Client) fetchPDF(ctx context.Context, candidate domain.Candidate) (domain.FetchedContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate.URL, nil)
	if err != nil {
		return domain.FetchedContent{}, &domain.FetchError{URL: candidate.URL, Reason: domain.FetchNetwork, Err: err}
	}
	req.Header.Set("User-Agent", "ResearchHarvester/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.FetchedContent{}, classifyTransport(candidate.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.FetchedContent{}, &domain.FetchError{
			URL:    candidate.URL,
			Reason: domain.FetchHTTP,
			Err:    fmt.Errorf("status %s", resp.Status),
		}
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "application/pdf") {
		return domain.FetchedContent{}, &domain.FetchError{
			URL:    candidate.URL,
			Reason: domain.FetchHTTP,
			Err:    fmt.Errorf("expected application/pdf, got %q", contentType),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.FetchedContent{}, classifyTransport(candidate.URL, err)
	}

	c.logger.Debug("pdf downloaded", "url", candidate.URL, "bytes", len(body))
	return domain.FetchedContent{Candidate: candidate, Kind: domain.KindPDF, Body: body}, nil
}

type renderRequest struct {
	URL string `json:"url"`
}

type renderResponse struct {
	Status  string `json:"status"`
	Content string `json:"content"`
	Error   string `json:"error"`
}

func (c *Client) fetchRendered(ctx context.Context, candidate domain.Candidate) (domain.FetchedContent, error) {
	if c.renderEndpoint == "" {
		return domain.FetchedContent{}, &domain.FetchError{
			URL:    candidate.URL,
			Reason: domain.FetchNetwork,
			Err:    errors.New("render endpoint is not configured"),
		}
	}

	payload, err := json.Marshal(renderRequest{URL: candidate.URL})
	if err != nil {
		return domain.FetchedContent{}, &domain.FetchError{URL: candidate.URL, Reason: domain.FetchNetwork, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.renderEndpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.FetchedContent{}, &domain.FetchError{URL: candidate.URL, Reason: domain.FetchNetwork, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.FetchedContent{}, classifyTransport(candidate.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.FetchedContent{}, &domain.FetchError{
			URL:    candidate.URL,
			Reason: domain.FetchHTTP,
			Err:    fmt.Errorf("renderer returned %s", resp.Status),
		}
	}

	var rendered renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&rendered); err != nil {
		return domain.FetchedContent{}, &domain.FetchError{URL: candidate.URL, Reason: domain.FetchNetwork, Err: err}
	}
	if rendered.Status != "success" {
		detail := rendered.Error
		if detail == "" {
			detail = "renderer reported failure"
		}
		return domain.FetchedContent{}, &domain.FetchError{
			URL:    candidate.URL,
			Reason: domain.FetchHTTP,
			Err:    errors.New(detail),
		}
	}

	c.logger.Debug("page rendered", "url", candidate.URL, "bytes", len(rendered.Content))
	return domain.FetchedContent{Candidate: candidate, Kind: domain.KindHTML, Body: []byte(rendered.Content)}, nil
}

// classifyTransport distinguishes timeouts from other network failures so
// the report can tell them apart.
func classifyTransport(url string, err error) *domain.FetchError {
	reason := domain.FetchNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		reason = domain.FetchTimeout
	}
	return &domain.FetchError{URL: url, Reason: reason, Err: err}
}
