package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ResearchHarvester/internal/domain"
	"ResearchHarvester/internal/logging"
)

func pdfCandidate(url string) domain.Candidate {
	return domain.Candidate{ID: "c1", URL: url, Kind: domain.KindPDF}
}

func htmlCandidate(url string) domain.Candidate {
	return domain.Candidate{ID: "c1", URL: url, Kind: domain.KindHTML}
}

func TestFetchPDF(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7 payload"))
	}))
	defer server.Close()

	client := NewClient("", server.Client(), logging.New("error"))
	got, err := client.Fetch(context.Background(), pdfCandidate(server.URL+"/paper.pdf"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != domain.KindPDF {
		t.Fatalf("expected pdf kind, got %s", got.Kind)
	}
	if string(got.Body) != "%PDF-1.7 payload" {
		t.Fatalf("unexpected body: %q", got.Body)
	}
}

func TestFetchPDFWrongContentType(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not a pdf</html>"))
	}))
	defer server.Close()

	client := NewClient("", server.Client(), logging.New("error"))
	_, err := client.Fetch(context.Background(), pdfCandidate(server.URL+"/paper.pdf"))

	var fe *domain.FetchError
	if !errors.As(err, &fe) || fe.Reason != domain.FetchHTTP {
		t.Fatalf("expected http_status fetch error, got %v", err)
	}
}

func TestFetchPDFStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient("", server.Client(), logging.New("error"))
	_, err := client.Fetch(context.Background(), pdfCandidate(server.URL+"/paper.pdf"))

	var fe *domain.FetchError
	if !errors.As(err, &fe) || fe.Reason != domain.FetchHTTP {
		t.Fatalf("expected http_status fetch error, got %v", err)
	}
}

func TestFetchRendered(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req renderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode render request: %v", err)
		}
		if req.URL != "https://example.org/article" {
			t.Errorf("unexpected url forwarded: %q", req.URL)
		}
		json.NewEncoder(w).Encode(renderResponse{Status: "success", Content: "extracted article text"})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), logging.New("error"))
	got, err := client.Fetch(context.Background(), htmlCandidate("https://example.org/article"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != domain.KindHTML {
		t.Fatalf("expected html kind, got %s", got.Kind)
	}
	if string(got.Body) != "extracted article text" {
		t.Fatalf("unexpected body: %q", got.Body)
	}
}

func TestFetchRenderedReportedFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(renderResponse{Status: "error", Error: "navigation blocked"})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), logging.New("error"))
	_, err := client.Fetch(context.Background(), htmlCandidate("https://example.org/article"))

	var fe *domain.FetchError
	if !errors.As(err, &fe) || fe.Reason != domain.FetchHTTP {
		t.Fatalf("expected http_status fetch error, got %v", err)
	}
}

func TestFetchTimeoutClassification(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client := NewClient("", server.Client(), logging.New("error"))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Fetch(ctx, pdfCandidate(server.URL+"/slow.pdf"))

	var fe *domain.FetchError
	if !errors.As(err, &fe) || fe.Reason != domain.FetchTimeout {
		t.Fatalf("expected timeout fetch error, got %v", err)
	}
}

func TestFetchRenderedWithoutEndpoint(t *testing.T) {
	t.Parallel()

	client := NewClient("", nil, logging.New("error"))
	_, err := client.Fetch(context.Background(), htmlCandidate("https://example.org/article"))

	var fe *domain.FetchError
	if !errors.As(err, &fe) || fe.Reason != domain.FetchNetwork {
		t.Fatalf("expected network fetch error, got %v", err)
	}
}
