package handler

import (
	"net/http"

	"github.com/abdusco/affiliated/internal"
	"github.com/abdusco/affiliated/internal/repo"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

type TransactionHandler struct {
	store *repo.Store
}

func NewTransactionHandler(store *repo.Store) *TransactionHandler {
	return &TransactionHandler{store: store}
}

type TransactionEnvelope struct {
	Transaction TransactionResponse `json:"transaction"`
}

func (h *TransactionHandler) ListTransactions(c echo.Context) error {
	linkID, err := queryID(c, "link_id")
	if err != nil {
		return err
	}
	status, err := queryStatus(c, internal.TransactionPending, internal.TransactionPaid, internal.TransactionCancelled)
	if err != nil {
		return err
	}
	filter := repo.TransactionFilter{LinkID: linkID, Status: status}

	txs, err := h.store.ListTransactions(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	resp := lo.Map(txs, func(t *internal.Transaction, _ int) TransactionResponse {
		return newTransactionResponse(t)
	})
	return c.JSON(http.StatusOK, resp)
}

func (h *TransactionHandler) GetTransaction(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	tx, err := h.store.GetTransaction(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TransactionEnvelope{Transaction: newTransactionResponse(tx)})
}

func (h *TransactionHandler) CreateTransaction(c echo.Context) error {
	var req repo.TransactionInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	tx, err := h.store.CreateTransaction(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, TransactionEnvelope{Transaction: newTransactionResponse(tx)})
}

func (h *TransactionHandler) UpdateTransaction(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req repo.TransactionUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	tx, err := h.store.UpdateTransaction(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TransactionEnvelope{Transaction: newTransactionResponse(tx)})
}
