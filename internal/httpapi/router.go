// Package httpapi maps the Admission API onto HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nsridhar76/go-orderpipeline/internal/domain"
	"github.com/nsridhar76/go-orderpipeline/internal/service"
)

// OrderService is the Admission API the router serves.
type OrderService interface {
	Submit(ctx context.Context, req service.SubmitRequest) (service.Accepted, error)
	GetOrder(ctx context.Context, orderID string) (service.Lookup, error)
}

type handler struct {
	svc OrderService
	log *slog.Logger
}

// NewRouter wires the order endpoints. metrics may be nil.
func NewRouter(svc OrderService, metrics http.Handler, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	h := &handler{svc: svc, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/{orderID}", h.getOrder)
	})
	return r
}

type createOrderRequest struct {
	OrderID     string  `json:"order_id"`
	Amount      float64 `json:"amount"`
	CustomerID  string  `json:"customer_id,omitempty"`
	Description string  `json:"description,omitempty"`
}

type acceptedResponse struct {
	OrderID string `json:"order_id"`
	Amount  string `json:"amount"`
	Status  string `json:"status"`
	EventID string `json:"event_id"`
}

type orderResponse struct {
	OrderID     string     `json:"order_id"`
	Amount      string     `json:"amount"`
	Tax         string     `json:"tax"`
	Total       string     `json:"total"`
	Status      string     `json:"status"`
	CustomerID  string     `json:"customer_id,omitempty"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CacheHit    bool       `json:"cache_hit"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation_error", Message: "invalid request body"})
		return
	}

	acc, err := h.svc.Submit(r.Context(), service.SubmitRequest{
		OrderID:     req.OrderID,
		Amount:      req.Amount,
		CustomerID:  req.CustomerID,
		Description: req.Description,
		Origin:      r.RemoteAddr,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{
		OrderID: acc.OrderID,
		Amount:  acc.Amount.StringFixed(domain.Scale),
		Status:  "queued",
		EventID: acc.EventID,
	})
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	o := res.Order
	writeJSON(w, http.StatusOK, orderResponse{
		OrderID:     o.OrderID,
		Amount:      o.Amount.StringFixed(domain.Scale),
		Tax:         o.Tax.StringFixed(domain.Scale),
		Total:       o.Total.StringFixed(domain.Scale),
		Status:      string(o.Status),
		CustomerID:  o.CustomerID,
		Description: o.Description,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		ProcessedAt: o.ProcessedAt,
		CacheHit:    res.CacheHit,
	})
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	reason := domain.Reason(err)
	var (
		verr *domain.ValidationError
		dup  *domain.DuplicateError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: reason, Message: verr.Error()})
	case errors.As(err, &dup):
		writeJSON(w, http.StatusConflict, errorResponse{Error: reason, Message: "order already exists", Status: string(dup.Status)})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: reason, Message: "order not found or still processing"})
	case errors.Is(err, domain.ErrQueueUnavailable), errors.Is(err, domain.ErrStoreUnavailable):
		h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: reason, Message: "temporarily unavailable, retry later"})
	default:
		h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal", Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
