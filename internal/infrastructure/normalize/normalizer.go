package normalize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ResearchHarvester/internal/domain"
	"ResearchHarvester/internal/ports"
)

// Normalizer implements ports.ContentNormalizer. HTML payloads are parsed
// locally; PDF payloads go to the remote converter service.
type Normalizer struct {
	converterEndpoint string
	client            *http.Client
	logger            *slog.Logger
}

var _ ports.ContentNormalizer = (*Normalizer)(nil)

// New builds a normalizer; a nil http.Client gets a default generous enough
// for large PDFs.
func New(converterEndpoint string, client *http.Client, logger *slog.Logger) *Normalizer {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &Normalizer{converterEndpoint: converterEndpoint, client: client, logger: logger}
}

// Normalize converts fetched bytes into clean text plus metadata. Metadata
// extracted from the document wins; the candidate's search-time fields only
// fill the gaps.
func (n *Normalizer) Normalize(ctx context.Context, topic domain.Topic, fetched domain.FetchedContent) (domain.ProcessedContent, error) {
	if len(bytes.TrimSpace(fetched.Body)) == 0 {
		return domain.ProcessedContent{}, &domain.NormalizationError{
			Reason: domain.NormalizeCorrupt,
			Err:    errors.New("empty payload"),
		}
	}

	var (
		extracted extraction
		err       error
	)
	switch fetched.Kind {
	case domain.KindHTML:
		extracted, err = extractHTML(fetched.Body)
	case domain.KindPDF:
		extracted, err = n.convertPDF(ctx, fetched.Body)
	default:
		err = &domain.NormalizationError{
			Reason: domain.NormalizeUnsupported,
			Err:    fmt.Errorf("unknown content kind %q", fetched.Kind),
		}
	}
	if err != nil {
		return domain.ProcessedContent{}, err
	}

	if strings.TrimSpace(extracted.Text) == "" {
		return domain.ProcessedContent{}, &domain.NormalizationError{
			Reason: domain.NormalizeCorrupt,
			Err:    errors.New("extraction produced no text"),
		}
	}

	processed := domain.ProcessedContent{
		Candidate:   fetched.Candidate,
		Topic:       topic,
		Text:        extracted.Text,
		Title:       extracted.Title,
		Authors:     extracted.Authors,
		Keywords:    extracted.Keywords,
		PublishedAt: extracted.PublishedAt,
	}
	if processed.Title == "" {
		processed.Title = fetched.Candidate.Title
	}
	if processed.PublishedAt.IsZero() {
		processed.PublishedAt = fetched.Candidate.PublishedAt
	}

	n.logger.Debug("normalized", "candidate", fetched.Candidate.ID, "kind", fetched.Kind, "chars", len(processed.Text))
	return processed, nil
}

type extraction struct {
	Text        string
	Title       string
	Authors     []string
	Keywords    []string
	PublishedAt time.Time
}

// extractHTML pulls the title, author/keyword meta tags, and visible body
// text out of a rendered page.
func extractHTML(body []byte) (extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return extraction{}, &domain.NormalizationError{Reason: domain.NormalizeCorrupt, Err: err}
	}

	var out extraction
	out.Title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find(`meta[name="author"], meta[name="citation_author"]`).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
			out.Authors = append(out.Authors, strings.TrimSpace(v))
		}
	})
	if v, ok := doc.Find(`meta[name="keywords"]`).First().Attr("content"); ok {
		for _, kw := range strings.Split(v, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				out.Keywords = append(out.Keywords, kw)
			}
		}
	}
	if v, ok := doc.Find(`meta[name="citation_publication_date"]`).First().Attr("content"); ok {
		for _, layout := range []string{"2006-01-02", "2006/01/02", "2006"} {
			if parsed, perr := time.Parse(layout, strings.TrimSpace(v)); perr == nil {
				out.PublishedAt = parsed.UTC()
				break
			}
		}
	}

	doc.Find("script, style, nav, header, footer, noscript").Remove()
	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	out.Text = collapseWhitespace(root.Text())
	return out, nil
}

type converterResponse struct {
	Text    string   `json:"text"`
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Error   string   `json:"error"`
}

// convertPDF ships the document to the converter service and maps its
// failures onto normalization errors.
func (n *Normalizer) convertPDF(ctx context.Context, body []byte) (extraction, error) {
	if n.converterEndpoint == "" {
		return extraction{}, &domain.NormalizationError{
			Reason: domain.NormalizeUnsupported,
			Err:    errors.New("converter endpoint is not configured"),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.converterEndpoint, bytes.NewReader(body))
	if err != nil {
		return extraction{}, &domain.NormalizationError{Reason: domain.NormalizeCorrupt, Err: err}
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := n.client.Do(req)
	if err != nil {
		return extraction{}, &domain.NormalizationError{Reason: domain.NormalizeCorrupt, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnsupportedMediaType:
		return extraction{}, &domain.NormalizationError{
			Reason: domain.NormalizeUnsupported,
			Err:    fmt.Errorf("converter rejected media type"),
		}
	case resp.StatusCode != http.StatusOK:
		return extraction{}, &domain.NormalizationError{
			Reason: domain.NormalizeCorrupt,
			Err:    fmt.Errorf("converter returned %s", resp.Status),
		}
	}

	var converted converterResponse
	if err := json.NewDecoder(resp.Body).Decode(&converted); err != nil {
		return extraction{}, &domain.NormalizationError{Reason: domain.NormalizeCorrupt, Err: err}
	}
	if converted.Error != "" {
		return extraction{}, &domain.NormalizationError{
			Reason: domain.NormalizeCorrupt,
			Err:    errors.New(converted.Error),
		}
	}

	return extraction{
		Text:    collapseWhitespace(converted.Text),
		Title:   converted.Title,
		Authors: converted.Authors,
	}, nil
}

// collapseWhitespace squeezes runs of blanks and newlines so downstream
// consumers get stable, compact text.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.Join(strings.Fields(line), " "); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
