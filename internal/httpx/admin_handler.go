package httpx

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/accounts"
	"github.com/ariefcatur/storefront-orders/internal/apperr"
	"github.com/ariefcatur/storefront-orders/internal/logging"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/go-chi/chi/v5"
)

const HeaderAdminKey = "X-Admin-Key"

type AdminHandler struct {
	Service OrderService
	Log     logging.Logger
	// Key is compared against X-Admin-Key. Empty disables every admin route.
	Key string
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.guard)
		r.Get("/data", h.data)
	})
}

func (h *AdminHandler) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Key == "" {
			writeError(w, r, h.Log, apperr.Forbidden("admin access is disabled", nil))
			return
		}
		got := r.Header.Get(HeaderAdminKey)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Key)) != 1 {
			h.Log.Warn(r.Context(), "admin key rejected", "path", r.URL.Path)
			writeError(w, r, h.Log, apperr.Forbidden("forbidden", nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AdminHandler) data(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	snap, err := h.Service.ListAll(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if snap.Accounts == nil {
		snap.Accounts = []accounts.View{}
	}
	if snap.Orders == nil {
		snap.Orders = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, snap)
}
