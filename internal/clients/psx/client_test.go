package psx

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/psxlens/internal/models"
)

const reportsPage = `<html><body>
<table>
<tr><th>Report</th><th>Period Ended</th><th>Posted</th></tr>
<tr><td><a href="/download/document/12345.pdf">Quarterly Report</a></td><td>Mar 31, 2025</td><td>2025-04-28</td></tr>
<tr><td><a href="/download/document/11111.pdf">Annual Report</a></td><td>Dec 31, 2024</td><td>2025-03-15</td></tr>
<tr><td>Notice without link</td><td></td><td>2025-05-01</td></tr>
</table>
</body></html>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(WithBaseURL(server.URL), WithPDFDir(t.TempDir()), WithRateLimit(1000))
}

func TestFetchCompanyReports(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/company/reports/HBL", r.URL.Path)
		fmt.Fprint(w, reportsPage)
	})

	reports, err := client.FetchCompanyReports(context.Background(), "hbl")
	require.NoError(t, err)
	require.Len(t, reports, 2)

	// Newest posting date first; the row without a link is dropped.
	assert.Equal(t, "Quarterly Report", reports[0].ReportType)
	assert.Equal(t, "Mar 31, 2025", reports[0].PeriodEnded)
	assert.Equal(t, "HBL", reports[0].Symbol)
	assert.Equal(t, "https://dps.psx.com.pk/download/document/12345.pdf", reports[0].ReportURL)
	assert.Equal(t, "Annual Report", reports[1].ReportType)
	assert.True(t, reports[0].PostingDate.After(reports[1].PostingDate))
}

func TestFetchCompanyReportsRetriesServerErrors(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, reportsPage)
	})

	reports, err := client.FetchCompanyReports(context.Background(), "HBL")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, reports, 2)
}

func TestGetLatestReport(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, reportsPage)
	})

	report, err := client.GetLatestReport(context.Background(), "HBL")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "Quarterly Report", report.ReportType)
}

func TestGetLatestReportNone(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>No reports</p></body></html>")
	})

	report, err := client.GetLatestReport(context.Background(), "HBL")
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestDownloadPDF(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("%PDF-1.4 content"))
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	client := NewClient(WithPDFDir(dir), WithRateLimit(1000))

	path, err := client.DownloadPDF(context.Background(), server.URL+"/download/report_q1.pdf", "engro")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ENGRO", "report_q1.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 content", string(data))

	// Second call hits the cache, not the server.
	cached, err := client.DownloadPDF(context.Background(), server.URL+"/download/report_q1.pdf", "engro")
	require.NoError(t, err)
	assert.Equal(t, path, cached)
	assert.Equal(t, 1, requests)
}

func TestDownloadPDFError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	client := NewClient(WithPDFDir(t.TempDir()), WithRateLimit(1000))

	_, err := client.DownloadPDF(context.Background(), server.URL+"/gone.pdf", "HBL")
	require.Error(t, err)

	var dlErr *models.DownloadError
	require.ErrorAs(t, err, &dlErr)
}

func TestPDFFilename(t *testing.T) {
	assert.Equal(t, "12345.pdf", pdfFilename("https://dps.psx.com.pk/download/document/12345.pdf", "HBL"))
	assert.Equal(t, "12345.pdf", pdfFilename("https://dps.psx.com.pk/download/document/12345", "HBL"))
	assert.Equal(t, "HBL_report.pdf", pdfFilename("", "HBL"))
}

func TestGetCurrentPrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/timeseries/int/OGDC", r.URL.Path)
		fmt.Fprint(w, `{"status": 1, "data": [[1714000000, 110.25, 5000], [1714000060, 111.50, 3000]]}`)
	})

	price, err := client.GetCurrentPrice(context.Background(), "ogdc")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, 111.50, *price)
}

func TestGetCurrentPriceNoData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": 1, "data": []}`)
	})

	price, err := client.GetCurrentPrice(context.Background(), "OGDC")
	require.NoError(t, err)
	assert.Nil(t, price)
}

func TestDetectCurrency(t *testing.T) {
	assert.Equal(t, "PKR", DetectCurrency("amounts in PKR thousands"))
	assert.Equal(t, "PKR", DetectCurrency("State Bank of Pakistan"))
	assert.Equal(t, "USD", DetectCurrency("all figures in $ millions"))
	assert.Equal(t, "EUR", DetectCurrency("reported in €"))
	assert.Equal(t, "GBP", DetectCurrency("reported in £"))
	assert.Equal(t, "", DetectCurrency("no currency markers here"))
}
