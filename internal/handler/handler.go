package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/auth"
	"github.com/Martins1-1/logsonlinee-sub000/internal/models"
	service "github.com/Martins1-1/logsonlinee-sub000/internal/services"
	pkgerrors "github.com/Martins1-1/logsonlinee-sub000/pkg/errors"
	"github.com/Martins1-1/logsonlinee-sub000/pkg/validator"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	store    service.StoreService
	payments service.PaymentService
}

func NewHandler(store service.StoreService, payments service.PaymentService) *Handler {
	return &Handler{store: store, payments: payments}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Status string            `json:"status,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeServiceError maps domain errors to HTTP statuses. Crediting outcomes
// carry a status field the storefront polls on.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidInput),
		errors.Is(err, pkgerrors.ErrInvalidAmount),
		errors.Is(err, pkgerrors.ErrInsufficientFunds):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, pkgerrors.ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, pkgerrors.ErrForbidden):
		h.writeError(w, http.StatusForbidden, err)
	case errors.Is(err, pkgerrors.ErrProductNotFound),
		errors.Is(err, pkgerrors.ErrUserNotFound),
		errors.Is(err, pkgerrors.ErrPaymentNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, pkgerrors.ErrUsernameExists),
		errors.Is(err, pkgerrors.ErrRequestAlreadyProcessed):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, pkgerrors.ErrVerificationFailed):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: err.Error(), Status: "failed"})
	case errors.Is(err, pkgerrors.ErrPaymentPending):
		writeJSON(w, http.StatusAccepted, errorResponse{Error: err.Error(), Status: "pending"})
	case errors.Is(err, pkgerrors.ErrUserUnresolved):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Status: "orphaned"})
	case errors.Is(err, pkgerrors.ErrGatewayUnavailable):
		h.writeError(w, http.StatusBadGateway, err)
	default:
		zap.S().Errorw("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

// decode reads a JSON body into req and runs struct validation. It writes
// the 400 itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return false
	}
	if fields := validator.Validate(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: fields})
		return false
	}
	return true
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
	}
	return p, ok
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/auth/register", h.Register).Methods("POST")
	r.HandleFunc("/auth/login", h.Login).Methods("POST")
	r.HandleFunc("/payments/webhook", h.Webhook).Methods("POST")
	r.HandleFunc("/products", h.Products).Methods("GET")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/auth/logout", h.Logout).Methods("POST")
	r.HandleFunc("/wallet/balance", h.GetBalance).Methods("GET")
	r.HandleFunc("/payments/initiate", h.InitiateTopUp).Methods("POST")
	r.HandleFunc("/payments/verify/{reference}", h.VerifyPayment).Methods("GET")
	r.HandleFunc("/payments/credit", h.ManualCredit).Methods("POST")
	r.HandleFunc("/payments", h.PaymentHistory).Methods("GET")
	r.HandleFunc("/checkout", h.Checkout).Methods("POST")
	r.HandleFunc("/orders", h.Orders).Methods("GET")
}

func (h *Handler) RegisterAdminRoutes(r *mux.Router) {
	r.HandleFunc("/payments/orphaned", h.OrphanedPayments).Methods("GET")
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.store.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, err := h.store.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	if err := h.store.Logout(r.Context(), p.UserID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	balance, err := h.store.GetBalance(r.Context(), p.UserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

type initiateRequest struct {
	Amount      int64  `json:"amount" validate:"gt=0"`
	RedirectURL string `json:"redirect_url" validate:"omitempty,url"`
}

func (h *Handler) InitiateTopUp(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req initiateRequest
	if !h.decode(w, r, &req) {
		return
	}

	topUp, err := h.payments.InitiateTopUp(r.Context(), p.UserID, req.Amount, req.RedirectURL)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, topUp)
}

type reconcileResponse struct {
	Status string `json:"status"`
	*models.ReconcileResult
}

func (h *Handler) writeReconcile(w http.ResponseWriter, result *models.ReconcileResult, err error) {
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	status := "credited"
	if result.AlreadyProcessed {
		status = "already_processed"
	}
	writeJSON(w, http.StatusOK, reconcileResponse{Status: status, ReconcileResult: result})
}

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	reference := mux.Vars(r)["reference"]
	result, err := h.payments.VerifyPayment(r.Context(), reference, p.UserID)
	h.writeReconcile(w, result, err)
}

type manualCreditRequest struct {
	UserID           string `json:"user_id" validate:"omitempty,uuid"`
	GatewayReference string `json:"gateway_reference" validate:"required,max=200"`
}

func (h *Handler) ManualCredit(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req manualCreditRequest
	if !h.decode(w, r, &req) {
		return
	}

	userID := p.UserID
	if req.UserID != "" {
		userID = uuid.MustParse(req.UserID)
	}
	result, err := h.payments.ManualCredit(r.Context(), p, userID, req.GatewayReference)
	h.writeReconcile(w, result, err)
}

// Webhook always acknowledges. Processing errors are logged by the service.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		zap.S().Warnw("failed to read webhook body", "error", err)
	} else {
		h.payments.HandleWebhook(r.Context(), payload)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (h *Handler) PaymentHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	payments, err := h.payments.History(r.Context(), p.UserID, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (h *Handler) OrphanedPayments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	payments, err := h.payments.ListOrphaned(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.Products(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

type checkoutRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	RequestID string `json:"request_id" validate:"required,max=100"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req checkoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, balance, err := h.store.Checkout(r.Context(), p.UserID, uuid.MustParse(req.ProductID), req.RequestID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"order": order, "balance": balance})
}

func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	orders, err := h.store.Orders(r.Context(), p.UserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}
