// Package places implements the metered structured-search provider backed by
// the Google Places text-search API.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/ratelimit"
)

// DefaultBaseURL is the production Places API endpoint.
const DefaultBaseURL = "https://places.googleapis.com"

// Field masks are strictly additive: contact extends basic, atmosphere
// extends contact. The mask controls both response payload and billing tier.
var (
	basicFields = []string{
		"places.id",
		"places.displayName",
		"places.formattedAddress",
		"places.location",
		"places.primaryType",
		"nextPageToken",
	}
	contactFields = append(basicFields[:len(basicFields):len(basicFields)],
		"places.nationalPhoneNumber",
		"places.internationalPhoneNumber",
		"places.websiteUri",
	)
	atmosphereFields = append(contactFields[:len(contactFields):len(contactFields)],
		"places.rating",
		"places.userRatingCount",
	)
)

// FieldMask returns the comma-joined field mask for a verbosity level.
// Unknown levels fall back to basic.
func FieldMask(level leads.FieldsLevel) string {
	switch level {
	case leads.FieldsAtmosphere:
		return strings.Join(atmosphereFields, ",")
	case leads.FieldsContact:
		return strings.Join(contactFields, ",")
	default:
		return strings.Join(basicFields, ",")
	}
}

// SearchPage is one page of text-search results.
type SearchPage struct {
	Places        []json.RawMessage `json:"places"`
	NextPageToken string            `json:"nextPageToken"`
}

type searchRequest struct {
	TextQuery    string `json:"textQuery"`
	PageToken    string `json:"pageToken,omitempty"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// Client issues text-search requests with key and field-mask headers.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *ratelimit.Limiter
}

// NewClient constructs a Client. A nil limiter disables throttling.
func NewClient(baseURL string, limiter *ratelimit.Limiter) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.Config{})
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    limiter,
	}
}

// SearchText fetches one page of results for a query. An empty pageToken
// starts a fresh search; a non-empty one continues a prior page.
func (c *Client) SearchText(ctx context.Context, apiKey, query, pageToken, language string, level leads.FieldsLevel) (SearchPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return SearchPage{}, err
	}

	body, err := json.Marshal(searchRequest{TextQuery: query, PageToken: pageToken, LanguageCode: language})
	if err != nil {
		return SearchPage{}, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/places:searchText", bytes.NewReader(body))
	if err != nil {
		return SearchPage{}, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", apiKey)
	req.Header.Set("X-Goog-FieldMask", FieldMask(level))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SearchPage{}, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return SearchPage{}, fmt.Errorf("search returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var page SearchPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return SearchPage{}, fmt.Errorf("failed to decode search response: %w", err)
	}
	return page, nil
}
