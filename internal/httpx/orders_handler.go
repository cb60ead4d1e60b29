package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/apperr"
	"github.com/ariefcatur/storefront-orders/internal/logging"
	"github.com/ariefcatur/storefront-orders/internal/metrics"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, in orders.PlaceInput) (int64, error)
	ListForAccount(ctx context.Context, accountID int64) ([]orders.Order, error)
	ListAll(ctx context.Context) (orders.Snapshot, error)
}

// PlaceOrderReq has no createdAt; a client-sent one is dropped by the decoder.
type PlaceOrderReq struct {
	AccountID int64             `json:"accountId"`
	Items     []orders.LineItem `json:"items"`
	Total     decimal.Decimal   `json:"total"`
}

type PlaceOrderResp struct {
	Message string `json:"message"`
	OrderID int64  `json:"orderId"`
}

type OrdersHandler struct {
	Service OrderService
	Log     logging.Logger
	Metrics *metrics.Metrics
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders/{accountId}", h.listForAccount)
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := h.Service.PlaceOrder(ctx, orders.PlaceInput{AccountID: req.AccountID, Items: req.Items, Total: req.Total})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.OrdersPlaced.Inc()
	}
	writeJSON(w, http.StatusCreated, PlaceOrderResp{Message: "order placed", OrderID: id})
}

func (h *OrdersHandler) listForAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountId"), 10, 64)
	if err != nil || accountID <= 0 {
		writeError(w, r, h.Log, apperr.Validation("account id must be a positive integer", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Service.ListForAccount(ctx, accountID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if out == nil {
		out = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, out)
}
