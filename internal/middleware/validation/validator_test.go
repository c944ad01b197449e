package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newTestApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{}))
	app.Post("/api/v1/query", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post("/api/v1/filings", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post("/api/v1/filings/import", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestQueryValidation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "plain financial question passes",
			body:       `{"query": "Why did net revenue drop after the update to ASC 606?"}`,
			wantStatus: fiber.StatusOK,
		},
		{
			name:       "sql shaped input rejected",
			body:       `{"query": "revenue'; DROP TABLE filings; --"}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "script tag rejected",
			body:       `{"query": "<script>alert(1)</script>"}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "missing query rejected",
			body:       `{"session_id": "abc"}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "oversized query rejected",
			body:       `{"query": "` + strings.Repeat("a", 6000) + `"}`,
			wantStatus: fiber.StatusBadRequest,
		},
	}

	app := newTestApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/query", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestFilingUploadValidation(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{
			name:       "valid filing url passes",
			path:       "/api/v1/filings",
			body:       `{"url": "https://www.sec.gov/Archives/edgar/data/320193/aapl-10k.htm"}`,
			wantStatus: fiber.StatusOK,
		},
		{
			name:       "missing url rejected",
			path:       "/api/v1/filings",
			body:       `{"content": "<html></html>"}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "bad scheme rejected",
			path:       "/api/v1/filings",
			body:       `{"url": "ftp://example.com/filing.htm"}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "import endpoint skips url check",
			path:       "/api/v1/filings/import",
			body:       `{"cik": "320193", "form_type": "10-K"}`,
			wantStatus: fiber.StatusOK,
		},
	}

	app := newTestApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestUnsupportedContentType(t *testing.T) {
	paths := []string{"/api/v1/query", "/api/v1/filings/import"}

	app := newTestApp()
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest("POST", path, strings.NewReader("query=revenue"))
			req.Header.Set("Content-Type", "text/plain")

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != fiber.StatusUnsupportedMediaType {
				t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusUnsupportedMediaType)
			}
		})
	}
}
