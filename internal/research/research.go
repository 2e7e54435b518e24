// Package research looks up external market context for the instruments a
// trader touched. Results feed the analysis prompt; the pipeline treats the
// whole capability as optional.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"trade-coach/internal/circuitbreaker"
	"trade-coach/internal/common/errors"
	commonhttp "trade-coach/internal/common/http"
	"trade-coach/internal/common/logging"
)

// Result is one search hit worth citing in a report.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// Searcher runs a web search and returns the top results.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

const (
	defaultEndpoint = "https://serpapi.com/search.json"
	maxResults      = 5
)

// SerpClient is the production Searcher backed by SerpAPI's Google engine.
type SerpClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	breaker    *circuitbreaker.GoBreakerAdapter
	logger     logging.Logger
}

func NewSerpClient(apiKey string, logger logging.Logger) (*SerpClient, error) {
	if apiKey == "" {
		return nil, errors.ValidationError("serpapi key is required")
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &SerpClient{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		httpClient: commonhttp.NewHTTPClientWithTimeout(30 * time.Second),
		breaker:    circuitbreaker.NewGoBreaker("serpapi", circuitbreaker.SearchConfig, logger),
		logger:     logger,
	}, nil
}

type searchResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"organic_results"`
	Error string `json:"error"`
}

func (c *SerpClient) Search(ctx context.Context, query string) ([]Result, error) {
	if query == "" {
		return nil, errors.ValidationError("search query is required")
	}

	var results []Result
	err := c.breaker.Execute(ctx, func() error {
		var callErr error
		results, callErr = c.call(ctx, query)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (c *SerpClient) call(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("num", fmt.Sprintf("%d", maxResults))
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.InternalError("failed to build search request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.ConnectionError("serpapi", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.ConnectionError("serpapi", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.ConnectionError("serpapi", fmt.Errorf("status %d", resp.StatusCode))
	}

	var decoded searchResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, errors.ConnectionError("serpapi", fmt.Errorf("undecodable response"))
	}
	if decoded.Error != "" {
		return nil, errors.ConnectionError("serpapi", fmt.Errorf("%s", decoded.Error))
	}

	results := make([]Result, 0, len(decoded.OrganicResults))
	for i, hit := range decoded.OrganicResults {
		if i >= maxResults {
			break
		}
		results = append(results, Result{Title: hit.Title, Snippet: hit.Snippet, Link: hit.Link})
	}
	return results, nil
}
