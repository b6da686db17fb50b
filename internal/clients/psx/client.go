// Package psx provides a client for the PSX Data Portal (dps.psx.com.pk)
package psx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/psxlens/internal/common"
	"github.com/bobmcallan/psxlens/internal/interfaces"
	"github.com/bobmcallan/psxlens/internal/models"
)

const (
	DefaultBaseURL   = "https://dps.psx.com.pk"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 2 // requests per second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// Client fetches company reports, PDFs, and prices from the PSX data portal.
type Client struct {
	baseURL    string
	pdfDir     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithPDFDir sets the directory PDFs are cached under
func WithPDFDir(dir string) ClientOption {
	return func(c *Client) {
		c.pdfDir = dir
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new PSX data portal client.
// No API key is required — these are public endpoints.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		pdfDir:  filepath.Join("data", "financial_statements"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchCompanyReports lists the published reports for a symbol, newest first.
// The portal is flaky under load so the listing request is retried.
func (c *Client) FetchCompanyReports(ctx context.Context, symbol string) ([]models.FinancialReport, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	symbol = strings.ToUpper(symbol)
	reqURL := fmt.Sprintf("%s/company/reports/%s", c.baseURL, symbol)

	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", userAgent)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("reports listing: status %d for %s", resp.StatusCode, symbol)
			}

			body, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reports for %s: %w", symbol, err)
	}

	reports, err := parseReportsTable(symbol, body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Str("symbol", symbol).Int("reports", len(reports)).Msg("Fetched company reports")
	return reports, nil
}

// parseReportsTable extracts report rows from the portal's HTML table.
func parseReportsTable(symbol string, body []byte) ([]models.FinancialReport, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse reports page: %w", err)
	}

	var reports []models.FinancialReport
	doc.Find("table").First().Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return // header row
		}
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		typeCell := cells.Eq(0)
		reportType := strings.TrimSpace(typeCell.Text())

		reportURL := ""
		if href, ok := typeCell.Find("a").First().Attr("href"); ok && href != "" {
			if strings.HasPrefix(href, "http") {
				reportURL = href
			} else {
				reportURL = DefaultBaseURL + href
			}
		}

		if reportType == "" || reportURL == "" {
			return
		}

		reports = append(reports, models.FinancialReport{
			Symbol:      symbol,
			ReportType:  reportType,
			PeriodEnded: strings.TrimSpace(cells.Eq(1).Text()),
			PostingDate: parsePostingDate(strings.TrimSpace(cells.Eq(2).Text())),
			ReportURL:   reportURL,
		})
	})

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].PostingDate.After(reports[j].PostingDate)
	})

	return reports, nil
}

// parsePostingDate accepts the two date layouts the portal uses. Unparseable
// dates sort last as the zero time.
func parsePostingDate(raw string) time.Time {
	for _, layout := range []string{"2006-01-02", "2 Jan 2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// GetLatestReport returns the newest published report for a symbol, or nil
// when the portal lists none.
func (c *Client) GetLatestReport(ctx context.Context, symbol string) (*models.FinancialReport, error) {
	reports, err := c.FetchCompanyReports(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, nil
	}
	return &reports[0], nil
}

// DownloadPDF fetches a report PDF to the local cache and returns its path.
// An existing cached file short-circuits the download.
func (c *Client) DownloadPDF(ctx context.Context, url, symbol string) (string, error) {
	symbol = strings.ToUpper(symbol)
	symbolDir := filepath.Join(c.pdfDir, symbol)
	if err := os.MkdirAll(symbolDir, 0o755); err != nil {
		return "", &models.DownloadError{URL: url, Err: err}
	}

	pdfPath := filepath.Join(symbolDir, pdfFilename(url, symbol))
	if _, err := os.Stat(pdfPath); err == nil {
		c.logger.Debug().Str("path", pdfPath).Msg("PDF already cached")
		return pdfPath, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", &models.DownloadError{URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &models.DownloadError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &models.DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &models.DownloadError{URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	tmp, err := os.CreateTemp(symbolDir, ".download-*")
	if err != nil {
		return "", &models.DownloadError{URL: url, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", &models.DownloadError{URL: url, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &models.DownloadError{URL: url, Err: err}
	}
	if err := os.Rename(tmp.Name(), pdfPath); err != nil {
		return "", &models.DownloadError{URL: url, Err: err}
	}

	c.logger.Info().Str("symbol", symbol).Str("path", pdfPath).Msg("Downloaded report PDF")
	return pdfPath, nil
}

// pdfFilename derives a cache filename from the report URL.
func pdfFilename(url, symbol string) string {
	parts := strings.Split(strings.TrimRight(url, "/"), "/")
	name := parts[len(parts)-1]
	if name == "" {
		name = symbol + "_report.pdf"
	}
	if !strings.Contains(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

// timeseriesResponse is the intraday price feed shape. Each data row is
// [timestamp, price, volume].
type timeseriesResponse struct {
	Data [][]json.Number `json:"data"`
}

// GetCurrentPrice returns the latest intraday price for a symbol, or nil when
// the feed has no data. Callers treat a nil price as non-fatal.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (*float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s/timeseries/int/%s", c.baseURL, strings.ToUpper(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price request: status %d for %s", resp.StatusCode, symbol)
	}

	var ts timeseriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&ts); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}

	if len(ts.Data) == 0 {
		return nil, nil
	}
	latest := ts.Data[len(ts.Data)-1]
	if len(latest) < 2 {
		return nil, nil
	}
	price, err := latest[1].Float64()
	if err != nil {
		return nil, nil
	}

	c.logger.Debug().Str("symbol", symbol).Float64("price", price).Msg("Fetched current price")
	return &price, nil
}

// Ensure Client implements the source interfaces
var (
	_ interfaces.DocumentSource = (*Client)(nil)
	_ interfaces.PriceSource    = (*Client)(nil)
)
