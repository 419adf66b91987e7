package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-proctor/internal/questionbank"
	"github.com/stemsi/exstem-proctor/internal/response"
)

// QuestionHandler serves the read-only question bank.
type QuestionHandler struct {
	bank *questionbank.Bank
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(bank *questionbank.Bank) *QuestionHandler {
	return &QuestionHandler{bank: bank}
}

// ListQuestions godoc
// GET /api/v1/questions
// Both sets in bank order. The bank holds no answer keys.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"mcq": h.bank.MCQs(),
		"saq": h.bank.SAQs(),
	})
}
