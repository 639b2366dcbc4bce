package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// DefaultAPIBaseURL is the English Wikipedia MediaWiki API endpoint.
const DefaultAPIBaseURL = "https://en.wikipedia.org/w/api.php"

// DefaultPageTitle is the scraped CO2-per-capita page.
const DefaultPageTitle = "List_of_countries_by_carbon_dioxide_emissions_per_capita"

const userAgent = "ecopipe/1.0 (+https://github.com/ecopipe-systems/ecopipe)"

// Snapshot is the scraped table of one page revision: the header row plus
// every data row as header→cell-text, footnotes already scrubbed.
type Snapshot struct {
	PageURL    string              `json:"page_url"`
	RevisionID int64               `json:"revision_id"`
	Headers    []string            `json:"headers"`
	Rows       []map[string]string `json:"rows"`
}

// Client fetches the page revision id (cheap) and the full table snapshot
// (expensive). The revision guard in the controller relies on the first call
// being far cheaper than the second.
type Client interface {
	FetchRevisionID(ctx context.Context) (int64, error)
	FetchSnapshot(ctx context.Context) (*Snapshot, error)
}

// HTTPClient is the production Client backed by the MediaWiki API.
type HTTPClient struct {
	apiBaseURL string
	pageTitle  string
	client     *http.Client
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithAPIBaseURL overrides the MediaWiki API endpoint (useful for testing).
func WithAPIBaseURL(u string) HTTPClientOption {
	return func(c *HTTPClient) { c.apiBaseURL = u }
}

// WithPageTitle overrides the scraped page title.
func WithPageTitle(t string) HTTPClientOption {
	return func(c *HTTPClient) { c.pageTitle = t }
}

// NewHTTPClient creates a MediaWiki-backed client.
func NewHTTPClient(opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		apiBaseURL: DefaultAPIBaseURL,
		pageTitle:  DefaultPageTitle,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FetchRevisionID asks the API for the latest revision id of the page
// without fetching any content.
func (c *HTTPClient) FetchRevisionID(ctx context.Context) (int64, error) {
	body, err := c.get(ctx, url.Values{
		"action": {"query"},
		"format": {"json"},
		"titles": {c.pageTitle},
		"prop":   {"revisions"},
		"rvprop": {"ids"},
	})
	if err != nil {
		return 0, fmt.Errorf("fetching revision id: %w", err)
	}

	var resp struct {
		Query struct {
			Pages map[string]struct {
				Revisions []struct {
					RevID int64 `json:"revid"`
				} `json:"revisions"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decoding revision response: %w", err)
	}
	for _, p := range resp.Query.Pages {
		if len(p.Revisions) > 0 {
			return p.Revisions[0].RevID, nil
		}
	}
	return 0, fmt.Errorf("no revision found for page %q", c.pageTitle)
}

// FetchSnapshot downloads the rendered page HTML and extracts the main
// per-capita emissions table.
func (c *HTTPClient) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	body, err := c.get(ctx, url.Values{
		"action": {"parse"},
		"format": {"json"},
		"page":   {c.pageTitle},
		"prop":   {"text|revid"},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}

	var resp struct {
		Parse struct {
			RevID int64 `json:"revid"`
			Text  struct {
				HTML string `json:"*"`
			} `json:"text"`
		} `json:"parse"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding parse response: %w", err)
	}

	headers, rows, err := extractWikitable(resp.Parse.Text.HTML)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		PageURL:    "https://en.wikipedia.org/wiki/" + c.pageTitle,
		RevisionID: resp.Parse.RevID,
		Headers:    headers,
		Rows:       rows,
	}, nil
}

func (c *HTTPClient) get(ctx context.Context, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, c.apiBaseURL)
	}
	return io.ReadAll(resp.Body)
}

// extractWikitable finds the first table with class "wikitable" and converts
// it to a header list plus header→cell rows.
func extractWikitable(pageHTML string) ([]string, []map[string]string, error) {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing page HTML: %w", err)
	}

	table := findWikitable(doc)
	if table == nil {
		return nil, nil, fmt.Errorf("no wikitable found in page")
	}

	var headers []string
	var rows []map[string]string
	for _, tr := range findAll(table, "tr") {
		ths := findAll(tr, "th")
		if len(headers) == 0 && len(ths) > 0 {
			for _, th := range ths {
				if h := CleanCellText(nodeText(th)); h != "" {
					headers = append(headers, h)
				}
			}
			continue
		}
		tds := findAll(tr, "td")
		if len(tds) == 0 {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(tds) {
				row[h] = CleanCellText(nodeText(tds[i]))
			}
		}
		rows = append(rows, row)
	}
	if len(headers) == 0 {
		return nil, nil, fmt.Errorf("wikitable has no header row")
	}
	return headers, rows, nil
}

func findWikitable(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "table" {
		for _, attr := range n.Attr {
			if attr.Key == "class" && strings.Contains(attr.Val, "wikitable") {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findWikitable(c); t != nil {
			return t
		}
	}
	return nil
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
			continue
		}
		out = append(out, findAll(c, tag)...)
	}
	return out
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// CleanCellText scrubs footnote markers like "[a]" or "[12]" and collapses
// whitespace in a table cell.
func CleanCellText(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '[':
			depth++
		case r == ']':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
