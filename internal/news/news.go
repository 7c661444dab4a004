// Package news
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantdesk/backend/internal/advisor"
)

const (
	defaultBaseURL = "https://newsapi.org/v2"
	cacheTTL       = 10 * time.Minute
	maxArticles    = 5
)

// Article is one news item as served to the frontend.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

// Intelligence is the AI summary of the current news cycle.
type Intelligence struct {
	MainNarrative  string  `json:"main_narrative"`
	WhaleImpact    string  `json:"whale_impact"`
	SentimentScore float64 `json:"ai_sentiment_score"`
}

// Report bundles headlines and their summary; Timestamp is ms since epoch.
type Report struct {
	Articles     []Article    `json:"articles"`
	Intelligence Intelligence `json:"intelligence"`
	Timestamp    int64        `json:"timestamp"`
}

// Service aggregates crypto headlines and summarizes them, caching the result
// so upstream quotas are not burned on every request.
type Service struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	advisor    *advisor.Client
	logger     *zap.Logger

	mu       sync.Mutex
	cached   *Report
	cachedAt time.Time
}

// NewService creates a news service. Without an API key it degrades to the
// canned narrative.
func NewService(apiKey string, adv *advisor.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		advisor:    adv,
		logger:     logger,
	}
}

// MarketIntelligence returns the current report, served from cache when it is
// younger than the TTL. Upstream failures degrade, they never propagate.
func (s *Service) MarketIntelligence(ctx context.Context) *Report {
	s.mu.Lock()
	if s.cached != nil && time.Since(s.cachedAt) < cacheTTL {
		cached := s.cached
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	articles := s.fetchHeadlines(ctx)

	intelligence := Intelligence{
		MainNarrative:  "Consolidating market structure amidst quiet news cycle.",
		WhaleImpact:    "Medium",
		SentimentScore: 0.1,
	}
	if s.advisor != nil && s.advisor.Enabled() && len(articles) > 0 {
		var summarized Intelligence
		if err := s.advisor.GenerateJSON(ctx, "", headlinePrompt(articles), &summarized); err != nil {
			s.logger.Warn("headline summarization failed", zap.Error(err))
		} else {
			intelligence = summarized
		}
	}

	report := &Report{
		Articles:     articles,
		Intelligence: intelligence,
		Timestamp:    time.Now().UnixMilli(),
	}

	s.mu.Lock()
	s.cached = report
	s.cachedAt = time.Now()
	s.mu.Unlock()
	return report
}

func (s *Service) fetchHeadlines(ctx context.Context) []Article {
	if s.apiKey == "" {
		return nil
	}

	q := url.Values{}
	q.Set("q", "bitcoin OR ethereum OR crypto")
	q.Set("language", "en")
	q.Set("sortBy", "publishedAt")
	q.Set("pageSize", fmt.Sprintf("%d", maxArticles))
	q.Set("apiKey", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/everything?"+q.Encode(), nil)
	if err != nil {
		return nil
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("news fetch failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		s.logger.Warn("news fetch failed", zap.Int("status", resp.StatusCode))
		return nil
	}

	var body struct {
		Articles []Article `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		s.logger.Warn("news decode failed", zap.Error(err))
		return nil
	}
	return body.Articles
}

func headlinePrompt(articles []Article) string {
	var headlines []string
	for _, a := range articles {
		headlines = append(headlines, "- "+a.Title)
	}
	return fmt.Sprintf(`Read these headlines:
%s
Output JSON: { "main_narrative": "...", "whale_impact": "...", "ai_sentiment_score": 0.0 }`,
		strings.Join(headlines, "\n"))
}
