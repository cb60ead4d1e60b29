package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/accounts"
	"github.com/ariefcatur/storefront-orders/internal/apperr"
	"github.com/ariefcatur/storefront-orders/internal/logging"
	"github.com/ariefcatur/storefront-orders/internal/metrics"
	"github.com/go-chi/chi/v5"
)

type AccountService interface {
	Register(ctx context.Context, in accounts.RegisterInput) (int64, error)
	Login(ctx context.Context, email, password string) (accounts.View, error)
}

type SignupReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Address  string `json:"address"`
}

type SignupResp struct {
	Message   string `json:"message"`
	AccountID int64  `json:"accountId"`
}

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResp struct {
	Message string        `json:"message"`
	Account accounts.View `json:"account"`
}

type AccountsHandler struct {
	Service AccountService
	Log     logging.Logger
	Metrics *metrics.Metrics
	Limiter *RateLimiter
}

func (h *AccountsHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.Limiter != nil {
			r.Use(h.Limiter.Handler)
		}
		r.Post("/signup", h.signup)
		r.Post("/login", h.login)
	})
}

func (h *AccountsHandler) signup(w http.ResponseWriter, r *http.Request) {
	var req SignupReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := h.Service.Register(ctx, accounts.RegisterInput{
		Name: req.Name, Email: req.Email, Password: req.Password, Address: req.Address,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.AccountsRegistered.Inc()
	}
	writeJSON(w, http.StatusCreated, SignupResp{Message: "account created", AccountID: id})
}

func (h *AccountsHandler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	acc, err := h.Service.Login(ctx, req.Email, req.Password)
	if err != nil {
		if h.Metrics != nil && (errors.Is(err, apperr.ErrAuthentication) || errors.Is(err, apperr.ErrRateLimited)) {
			h.Metrics.LoginFailures.Inc()
		}
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResp{Message: "login successful", Account: acc})
}
