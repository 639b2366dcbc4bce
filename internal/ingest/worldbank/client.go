package worldbank

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
)

// DefaultBaseURL is the World Bank indicator API endpoint for all countries.
const DefaultBaseURL = "https://api.worldbank.org/v2/country/all/indicator"

// DefaultIndicatorID is GDP per capita in current US dollars.
const DefaultIndicatorID = "NY.GDP.PCAP.CD"

const defaultPerPage = 1000

// IndicatorRef is the API's {id, value} reference pair.
type IndicatorRef struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Observation is one World Bank indicator observation as returned by the API.
// The field order here fixes the canonical JSON used for record hashing.
type Observation struct {
	Indicator       IndicatorRef `json:"indicator"`
	Country         IndicatorRef `json:"country"`
	CountryISO3Code string       `json:"countryiso3code"`
	Date            string       `json:"date"`
	Value           *float64     `json:"value"`
	Unit            string       `json:"unit"`
	ObsStatus       string       `json:"obs_status"`
	Decimal         int          `json:"decimal"`
}

// Year parses the observation date as a calendar year.
func (o Observation) Year() (int, bool) {
	y, err := strconv.Atoi(o.Date)
	if err != nil || len(o.Date) != 4 {
		return 0, false
	}
	return y, true
}

// Client fetches the full observation set for an indicator.
type Client interface {
	FetchObservations(ctx context.Context, indicatorID string) ([]Observation, error)
}

// HTTPClient is the production Client talking to the World Bank API. Requests
// run through a circuit breaker so a flapping upstream fails fast instead of
// hammering the API across pages.
type HTTPClient struct {
	baseURL string
	perPage int
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithBaseURL overrides the API base URL (useful for testing).
func WithBaseURL(u string) HTTPClientOption {
	return func(c *HTTPClient) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) HTTPClientOption {
	return func(c *HTTPClient) { c.client = hc }
}

// NewHTTPClient creates a World Bank API client.
func NewHTTPClient(opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: DefaultBaseURL,
		perPage: defaultPerPage,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "world_bank_api",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		Timeout: 30 * time.Second,
	})
	return c
}

// page is the paging metadata element of a World Bank API response.
type page struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage any `json:"per_page"`
	Total   int `json:"total"`
}

// FetchObservations iterates all pages of the indicator and returns every
// observation.
func (c *HTTPClient) FetchObservations(ctx context.Context, indicatorID string) ([]Observation, error) {
	var all []Observation

	pageNum := 1
	totalPages := 1
	for pageNum <= totalPages {
		meta, records, err := c.fetchPage(ctx, indicatorID, pageNum)
		if err != nil {
			return nil, err
		}
		if pageNum == 1 && meta.Pages > 0 {
			totalPages = meta.Pages
		}
		all = append(all, records...)
		pageNum++
	}
	return all, nil
}

func (c *HTTPClient) fetchPage(ctx context.Context, indicatorID string, pageNum int) (*page, []Observation, error) {
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(indicatorID), url.Values{
		"format":   {"json"},
		"page":     {strconv.Itoa(pageNum)},
		"per_page": {strconv.Itoa(c.perPage)},
	}.Encode())

	body, err := c.breaker.Execute(func() (any, error) {
		return c.get(ctx, u)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("fetching World Bank page %d: %w", pageNum, err)
	}

	// The API wraps every response in a two-element array: [meta, records].
	var envelope []json.RawMessage
	if err := json.Unmarshal(body.([]byte), &envelope); err != nil {
		return nil, nil, fmt.Errorf("decoding World Bank page %d: %w", pageNum, err)
	}
	if len(envelope) != 2 {
		return nil, nil, fmt.Errorf("unexpected World Bank response shape: %d elements", len(envelope))
	}

	var meta page
	if err := json.Unmarshal(envelope[0], &meta); err != nil {
		return nil, nil, fmt.Errorf("decoding World Bank page metadata: %w", err)
	}
	var records []Observation
	if err := json.Unmarshal(envelope[1], &records); err != nil {
		return nil, nil, fmt.Errorf("decoding World Bank records: %w", err)
	}
	return &meta, records, nil
}

func (c *HTTPClient) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, u)
	}
	return io.ReadAll(resp.Body)
}
