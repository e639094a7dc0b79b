package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewNewsAPIService(t *testing.T) {
	service := NewNewsAPIService("test-api-key")
	if service == nil {
		t.Fatal("NewNewsAPIService should not return nil")
	}
	if service.apiKey != "test-api-key" {
		t.Errorf("apiKey = %v, want 'test-api-key'", service.apiKey)
	}
	if service.httpClient == nil {
		t.Error("httpClient should not be nil")
	}
	if service.baseURL != "https://newsapi.org/v2" {
		t.Errorf("baseURL = %v, want 'https://newsapi.org/v2'", service.baseURL)
	}
}

func TestNewsAPIResponse_Deserialization(t *testing.T) {
	jsonResponse := `{
		"status": "ok",
		"totalResults": 100,
		"articles": [
			{
				"source": {"id": "techcrunch", "name": "TechCrunch"},
				"author": "Sarah Perez",
				"title": "Apple Stock Rises on Strong Earnings",
				"description": "Apple Inc reported better-than-expected earnings...",
				"url": "https://techcrunch.com/apple-earnings",
				"urlToImage": "https://example.com/image.jpg",
				"publishedAt": "2024-01-15T14:30:00Z",
				"content": "Full article content here..."
			},
			{
				"source": {"id": null, "name": "Reuters"},
				"author": "John Smith",
				"title": "Tech Stocks Rally",
				"description": "Technology stocks rallied on Wednesday...",
				"url": "https://reuters.com/tech-rally",
				"urlToImage": "https://example.com/image2.jpg",
				"publishedAt": "2024-01-15T10:00:00Z",
				"content": "Another article content..."
			}
		]
	}`

	var resp NewsAPIResponse
	if err := json.Unmarshal([]byte(jsonResponse), &resp); err != nil {
		t.Fatalf("Failed to unmarshal NewsAPIResponse: %v", err)
	}

	if resp.Status != "ok" {
		t.Errorf("Status = %v, want 'ok'", resp.Status)
	}
	if len(resp.Articles) != 2 {
		t.Fatalf("Articles length = %v, want 2", len(resp.Articles))
	}

	article := resp.Articles[0]
	if article.Title != "Apple Stock Rises on Strong Earnings" {
		t.Errorf("Article[0].Title = %v", article.Title)
	}
	if article.Source.Name != "TechCrunch" {
		t.Errorf("Article[0].Source.Name = %v, want 'TechCrunch'", article.Source.Name)
	}
}

func TestGetNews_Success(t *testing.T) {
	newTestRegistry()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/everything" {
			t.Errorf("path = %v, want /everything", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "test-key" {
			t.Errorf("X-Api-Key = %v, want test-key", got)
		}
		if got := r.URL.Query().Get("pageSize"); got != "25" {
			t.Errorf("pageSize = %v, want 25", got)
		}
		fmt.Fprint(w, `{
			"status": "ok",
			"totalResults": 1,
			"articles": [
				{
					"source": {"id": "cnbc", "name": "CNBC"},
					"author": "Jane Doe",
					"title": "Markets Open Higher",
					"description": "Stocks opened higher on Monday...",
					"url": "https://cnbc.com/markets",
					"urlToImage": "https://example.com/img.jpg",
					"publishedAt": "2024-01-15T09:30:00Z",
					"content": "..."
				}
			]
		}`)
	}))
	defer server.Close()

	service := NewNewsAPIService("test-key")
	service.baseURL = server.URL

	articles, err := service.GetNews(context.Background(), "AAPL", 25)
	if err != nil {
		t.Fatalf("GetNews failed: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	if articles[0].Source != "CNBC" {
		t.Errorf("Source = %v, want CNBC", articles[0].Source)
	}
	if articles[0].PublishedAt.IsZero() {
		t.Error("PublishedAt should be parsed")
	}
}

func TestGetNews_BadTimestampFallsBackToNow(t *testing.T) {
	newTestRegistry()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"status": "ok",
			"totalResults": 1,
			"articles": [
				{
					"source": {"id": null, "name": "Unknown"},
					"title": "Test",
					"description": "Test",
					"url": "https://example.com",
					"publishedAt": "not-a-timestamp"
				}
			]
		}`)
	}))
	defer server.Close()

	service := NewNewsAPIService("test-key")
	service.baseURL = server.URL

	articles, err := service.GetNews(context.Background(), "AAPL", 10)
	if err != nil {
		t.Fatalf("GetNews failed: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	if articles[0].PublishedAt.IsZero() {
		t.Error("PublishedAt should default to current time on parse failure")
	}
}

func TestGetHeadlines_Success(t *testing.T) {
	newTestRegistry()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/top-headlines" {
			t.Errorf("path = %v, want /top-headlines", r.URL.Path)
		}
		if got := r.URL.Query().Get("category"); got != "business" {
			t.Errorf("category = %v, want business", got)
		}
		fmt.Fprint(w, `{"status": "ok", "totalResults": 0, "articles": []}`)
	}))
	defer server.Close()

	service := NewNewsAPIService("test-key")
	service.baseURL = server.URL

	articles, err := service.GetHeadlines(context.Background(), "Tesla", 10)
	if err != nil {
		t.Fatalf("GetHeadlines failed: %v", err)
	}
	if len(articles) != 0 {
		t.Errorf("expected 0 articles, got %d", len(articles))
	}
}

func TestGetHeadlines_NonOKStatus(t *testing.T) {
	newTestRegistry()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status": "error", "code": "apiKeyInvalid"}`)
	}))
	defer server.Close()

	service := NewNewsAPIService("bad-key")
	service.baseURL = server.URL

	_, err := service.GetHeadlines(context.Background(), "AAPL", 10)
	if err == nil {
		t.Error("expected error for 401 response, got nil")
	}
}

func TestGetNews_LimitClamping(t *testing.T) {
	newTestRegistry()

	var gotPageSize string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPageSize = r.URL.Query().Get("pageSize")
		fmt.Fprint(w, `{"status": "ok", "totalResults": 0, "articles": []}`)
	}))
	defer server.Close()

	service := NewNewsAPIService("test-key")
	service.baseURL = server.URL

	tests := []struct {
		name     string
		limit    int
		wantSize string
	}{
		{"zero limit defaults to 10", 0, "10"},
		{"negative limit defaults to 10", -5, "10"},
		{"valid limit passes through", 25, "25"},
		{"over max caps at 100", 150, "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := service.GetNews(context.Background(), "AAPL", tt.limit); err != nil {
				t.Fatalf("GetNews failed: %v", err)
			}
			if gotPageSize != tt.wantSize {
				t.Errorf("pageSize = %v, want %v", gotPageSize, tt.wantSize)
			}
		})
	}
}
