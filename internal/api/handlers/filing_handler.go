package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/finsight/backend/internal/edgar"
	"github.com/finsight/backend/internal/ingestion"
	"github.com/finsight/backend/internal/metrics"
	"github.com/finsight/backend/internal/storage/sqlite"
	"github.com/finsight/backend/pkg/logger"
)

type FilingHandler struct {
	processor *ingestion.Processor
	edgar     *edgar.Client
	db        *sqlite.Client
}

func NewFilingHandler(processor *ingestion.Processor, edgarClient *edgar.Client, db *sqlite.Client) *FilingHandler {
	return &FilingHandler{
		processor: processor,
		edgar:     edgarClient,
		db:        db,
	}
}

// UploadFiling indexes one filing. The content can be supplied inline or
// fetched from the URL via EDGAR.
func (h *FilingHandler) UploadFiling(c *fiber.Ctx) error {
	var req struct {
		URL     string `json:"url"`
		Content string `json:"content"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "URL is required",
		})
	}

	content := req.Content
	if content == "" {
		fetched, err := h.edgar.FetchDocument(c.Context(), req.URL)
		if err != nil {
			logger.Error("Failed to fetch filing", zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "Failed to fetch filing from source",
			})
		}
		content = fetched
	}

	if err := h.processor.ProcessFiling(c.Context(), req.URL, content); err != nil {
		logger.Error("Failed to process filing", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process filing",
		})
	}

	metrics.FilingsProcessed.Inc()

	return c.JSON(fiber.Map{
		"message": "Filing processed successfully",
		"url":     req.URL,
	})
}

// ImportFilings pulls recent filings for a company from EDGAR and indexes
// them.
func (h *FilingHandler) ImportFilings(c *fiber.Ctx) error {
	var req struct {
		CIK      string `json:"cik"`
		FormType string `json:"form_type"`
		Limit    int    `json:"limit"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.CIK == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "CIK is required",
		})
	}
	if req.Limit <= 0 {
		req.Limit = 1
	}

	filings, err := h.edgar.ListFilings(c.Context(), req.CIK, req.FormType, req.Limit)
	if err != nil {
		logger.Error("Failed to list filings", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to list filings from EDGAR",
		})
	}

	processed := 0
	for _, filing := range filings {
		content, err := h.edgar.FetchDocument(c.Context(), filing.DocumentURL)
		if err != nil {
			logger.Warn("Failed to fetch filing document",
				zap.String("url", filing.DocumentURL),
				zap.Error(err),
			)
			continue
		}

		if err := h.processor.ProcessFiling(c.Context(), filing.DocumentURL, content); err != nil {
			logger.Warn("Failed to process filing",
				zap.String("url", filing.DocumentURL),
				zap.Error(err),
			)
			continue
		}

		metrics.FilingsProcessed.Inc()
		processed++
	}

	return c.JSON(fiber.Map{
		"message":   "Import completed",
		"listed":    len(filings),
		"processed": processed,
	})
}

func (h *FilingHandler) ListFilings(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	filings, err := h.db.ListFilings(limit)
	if err != nil {
		logger.Error("Failed to list filings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list filings",
		})
	}

	return c.JSON(fiber.Map{
		"filings": filings,
	})
}
