package handlers

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulstack/fuellens-api/internal/models"
)

type MockTransactionLister struct {
	ListFunc func(ctx context.Context, limit, offset int) ([]models.FuelTransaction, int, error)
}

func (m *MockTransactionLister) List(ctx context.Context, limit, offset int) ([]models.FuelTransaction, int, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return nil, 0, nil
}

func newTransactionsApp(lister TransactionLister) *fiber.App {
	handler := NewTransactionsHandler(lister)
	app := fiber.New()
	app.Get("/transactions", handler.GetTransactions)
	return app
}

func TestGetTransactions_Paging(t *testing.T) {
	lister := &MockTransactionLister{
		ListFunc: func(_ context.Context, limit, offset int) ([]models.FuelTransaction, int, error) {
			assert.Equal(t, 10, limit)
			assert.Equal(t, 20, offset)
			return []models.FuelTransaction{
				{ID: 42, Invoice: "INV42", Amount: 100.5},
			}, 21, nil
		},
	}
	app := newTransactionsApp(lister)

	resp, err := app.Test(httptest.NewRequest("GET", "/transactions?page=3&page_size=10", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	result := decodeBody(t, resp)
	data := result["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "INV42", data[0].(map[string]interface{})["invoice"])

	pagination := result["pagination"].(map[string]interface{})
	assert.Equal(t, float64(3), pagination["page"])
	assert.Equal(t, float64(21), pagination["total"])
	assert.Equal(t, float64(3), pagination["pages"])
}

func TestGetTransactions_DefaultsAndClamps(t *testing.T) {
	var gotLimit, gotOffset int
	lister := &MockTransactionLister{
		ListFunc: func(_ context.Context, limit, offset int) ([]models.FuelTransaction, int, error) {
			gotLimit, gotOffset = limit, offset
			return nil, 0, nil
		},
	}
	app := newTransactionsApp(lister)

	resp, err := app.Test(httptest.NewRequest("GET", "/transactions", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 50, gotLimit)
	assert.Equal(t, 0, gotOffset)

	resp, err = app.Test(httptest.NewRequest("GET", "/transactions?page=-2&page_size=9999", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 50, gotLimit)
	assert.Equal(t, 0, gotOffset)

	// Empty result serializes as an empty list, not null.
	result := decodeBody(t, resp)
	assert.NotNil(t, result["data"])
}

func TestGetTransactions_StoreFailure(t *testing.T) {
	lister := &MockTransactionLister{
		ListFunc: func(context.Context, int, int) ([]models.FuelTransaction, int, error) {
			return nil, 0, fmt.Errorf("connection refused")
		},
	}
	app := newTransactionsApp(lister)

	resp, err := app.Test(httptest.NewRequest("GET", "/transactions", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
