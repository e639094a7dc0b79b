package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"stockboard/models"
	"stockboard/observability"
)

// NewsAPIService handles communication with NewsAPI.org. It feeds the
// news widget.
type NewsAPIService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewNewsAPIService creates a new NewsAPIService instance
func NewNewsAPIService(apiKey string) *NewsAPIService {
	return &NewsAPIService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://newsapi.org/v2",
	}
}

// NewsAPIResponse represents the response from NewsAPI
type NewsAPIResponse struct {
	Status       string `json:"status"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
		Content     string `json:"content"`
	} `json:"articles"`
}

// GetNews returns news articles for a query (typically a stock symbol or company name)
func (s *NewsAPIService) GetNews(ctx context.Context, query string, limit int) ([]models.NewsArticle, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerNewsAPI, "everything")
	timer := metrics.NewTimer()

	var articles []models.NewsArticle
	err := WithRetry(ctx, DefaultRetryConfig, func() error {
		params := url.Values{}
		params.Set("q", query)
		params.Set("language", "en")
		params.Set("sortBy", "publishedAt")
		params.Set("pageSize", fmt.Sprintf("%d", limit))

		newsResp, err := s.fetch(ctx, "/everything?"+params.Encode())
		if err != nil {
			return err
		}

		articles = s.toArticles(newsResp)
		return nil
	})

	timer.ObserveExternalAPI(BreakerNewsAPI, "everything")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerNewsAPI, "everything", "request_failed")
		return nil, err
	}

	return articles, nil
}

// GetHeadlines returns top business headlines mentioning a company or stock
func (s *NewsAPIService) GetHeadlines(ctx context.Context, query string, limit int) ([]models.NewsArticle, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerNewsAPI, "top_headlines")
	timer := metrics.NewTimer()

	params := url.Values{}
	params.Set("q", query)
	params.Set("country", "us")
	params.Set("category", "business")
	params.Set("pageSize", fmt.Sprintf("%d", limit))

	newsResp, err := s.fetch(ctx, "/top-headlines?"+params.Encode())

	timer.ObserveExternalAPI(BreakerNewsAPI, "top_headlines")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerNewsAPI, "top_headlines", "request_failed")
		return nil, err
	}

	return s.toArticles(newsResp), nil
}

func (s *NewsAPIService) fetch(ctx context.Context, path string) (*NewsAPIResponse, error) {
	resp, err := WithCircuitBreaker(ctx, BreakerNewsAPI, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("X-Api-Key", s.apiKey)
		return s.httpClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NewsAPI returned status %d", resp.StatusCode)
	}

	var newsResp NewsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&newsResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &newsResp, nil
}

func (s *NewsAPIService) toArticles(newsResp *NewsAPIResponse) []models.NewsArticle {
	articles := make([]models.NewsArticle, 0, len(newsResp.Articles))
	for _, item := range newsResp.Articles {
		publishedAt, err := time.Parse(time.RFC3339, item.PublishedAt)
		if err != nil {
			observability.Warn("failed to parse article timestamp, using current time",
				"timestamp", item.PublishedAt,
				"error", err)
			publishedAt = time.Now()
		}

		articles = append(articles, models.NewsArticle{
			Title:       item.Title,
			Description: item.Description,
			URL:         item.URL,
			Source:      item.Source.Name,
			Author:      item.Author,
			ImageURL:    item.URLToImage,
			PublishedAt: publishedAt,
		})
	}
	return articles
}
