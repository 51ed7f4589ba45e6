package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/haulstack/fuellens-api/internal/models"
	"github.com/haulstack/fuellens-api/internal/utils"
)

// TransactionLister reads back stored fuel transactions.
type TransactionLister interface {
	List(ctx context.Context, limit, offset int) ([]models.FuelTransaction, int, error)
}

// TransactionsHandler serves read access to imported transactions.
type TransactionsHandler struct {
	store TransactionLister
}

// NewTransactionsHandler creates the transactions handler.
func NewTransactionsHandler(store TransactionLister) *TransactionsHandler {
	return &TransactionsHandler{store: store}
}

// GetTransactions returns a page of stored transactions, newest first.
// GET /v1/transactions?page=1&page_size=50
func (h *TransactionsHandler) GetTransactions(c fiber.Ctx) error {
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 50)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	txns, total, err := h.store.List(c.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "failed to list transactions")
	}
	if txns == nil {
		txns = []models.FuelTransaction{}
	}
	return utils.PaginatedResponse(c, txns, page, pageSize, total)
}

func queryInt(c fiber.Ctx, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
