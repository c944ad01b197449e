package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/backend/pkg/logger"
)

// Client fetches filings from the SEC EDGAR system. EDGAR requires a
// descriptive User-Agent on every request.
type Client struct {
	baseURL    string
	dataURL    string
	userAgent  string
	httpClient *http.Client
}

type Filing struct {
	AccessionNumber string
	Form            string
	FilingDate      string
	PrimaryDocument string
	DocumentURL     string
}

func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://www.sec.gov"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		dataURL:   "https://data.sec.gov",
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("edgar returned status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// ListFilings returns the most recent filings for a CIK, optionally
// filtered by form type (e.g. "10-K").
func (c *Client) ListFilings(ctx context.Context, cik, formType string, limit int) ([]Filing, error) {
	trimmed := strings.TrimLeft(cik, "0")
	if len(trimmed) > 10 {
		return nil, fmt.Errorf("invalid CIK %q", cik)
	}
	paddedCIK := strings.Repeat("0", 10-len(trimmed)) + trimmed
	url := fmt.Sprintf("%s/submissions/CIK%s.json", c.dataURL, paddedCIK)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var submissions struct {
		CIK     string `json:"cik"`
		Name    string `json:"name"`
		Filings struct {
			Recent struct {
				AccessionNumber []string `json:"accessionNumber"`
				Form            []string `json:"form"`
				FilingDate      []string `json:"filingDate"`
				PrimaryDocument []string `json:"primaryDocument"`
			} `json:"recent"`
		} `json:"filings"`
	}

	if err := json.Unmarshal(body, &submissions); err != nil {
		return nil, fmt.Errorf("failed to parse submissions: %w", err)
	}

	recent := submissions.Filings.Recent
	var filings []Filing
	for i := range recent.AccessionNumber {
		if formType != "" && recent.Form[i] != formType {
			continue
		}

		accession := strings.ReplaceAll(recent.AccessionNumber[i], "-", "")
		docURL := fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s",
			c.baseURL,
			strings.TrimLeft(cik, "0"),
			accession,
			recent.PrimaryDocument[i],
		)

		filings = append(filings, Filing{
			AccessionNumber: recent.AccessionNumber[i],
			Form:            recent.Form[i],
			FilingDate:      recent.FilingDate[i],
			PrimaryDocument: recent.PrimaryDocument[i],
			DocumentURL:     docURL,
		})

		if limit > 0 && len(filings) >= limit {
			break
		}
	}

	logger.Info("Filings listed",
		zap.String("cik", cik),
		zap.String("form_type", formType),
		zap.Int("count", len(filings)),
	)

	return filings, nil
}

// FetchDocument downloads one filing document as raw HTML.
func (c *Client) FetchDocument(ctx context.Context, url string) (string, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}

	logger.Info("Filing document fetched",
		zap.String("url", url),
		zap.Int("bytes", len(body)),
	)

	return string(body), nil
}
