package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/finsight/backend/internal/evaluation"
	"github.com/finsight/backend/pkg/logger"
)

type EvaluationHandler struct {
	evaluator *evaluation.Evaluator
}

func NewEvaluationHandler(evaluator *evaluation.Evaluator) *EvaluationHandler {
	return &EvaluationHandler{
		evaluator: evaluator,
	}
}

// RunEvaluation scores the pipeline against a caller-supplied dataset of
// queries with ground-truth answers.
func (h *EvaluationHandler) RunEvaluation(c *fiber.Ctx) error {
	var req struct {
		Dataset evaluation.Dataset `json:"dataset"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Dataset.Items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Dataset has no items",
		})
	}

	report, err := h.evaluator.RunDatasetEvaluation(c.Context(), &req.Dataset)
	if err != nil {
		logger.Error("Dataset evaluation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Evaluation failed",
		})
	}

	return c.JSON(fiber.Map{
		"report":    report,
		"formatted": evaluation.FormatReport(report),
	})
}
