// Package order is the order-service: the HTTP surface that accepts new
// orders and status changes, persists them, and fans the resulting events
// out over the message bus.
package order

import (
	"context"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"tableorder/internal/apperr"
	"tableorder/internal/common/config"
	"tableorder/internal/common/db"
	"tableorder/internal/common/httpx"
	"tableorder/internal/common/logger"
	"tableorder/internal/common/mq"
	"tableorder/internal/domain"
	"tableorder/internal/repository"
	"tableorder/internal/validate"
)

type handler struct {
	svc Service
	lg  *logger.Logger
}

func (h *handler) addOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.svc.AddOrder(r.Context(), req)
	if err != nil {
		h.lg.Warn("order_rejected", map[string]any{"error": err.Error()})
		writeError(w, statusFor(err), errorMessage(err))
		return
	}

	h.lg.Info("order_created", map[string]any{"order_number": resp.OrderNumber, "total": resp.TotalAmount})
	writeJSON(w, http.StatusCreated, domain.APIResponse{Success: true, Data: resp})
}

func (h *handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	var req domain.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	o, err := h.svc.UpdateStatus(r.Context(), number, req.Status)
	if err != nil {
		h.lg.Warn("status_change_rejected", map[string]any{"order_number": number, "error": err.Error()})
		writeError(w, statusFor(err), errorMessage(err))
		return
	}

	h.lg.Info("status_changed", map[string]any{"order_number": number, "status": string(o.Status)})
	writeJSON(w, http.StatusOK, domain.APIResponse{Success: true, Data: o})
}

// errorMessage keeps validation detail visible to the caller; everything
// else gets the generic user-facing message for its code.
func errorMessage(err error) string {
	if statusFor(err) == http.StatusBadRequest {
		return err.Error()
	}
	return apperr.GetInfo(err).UserMessage
}

func statusFor(err error) int {
	switch apperr.GetInfo(err).Code {
	case apperr.CodeOrderNotFound:
		return http.StatusNotFound
	case apperr.CodeInvalidName, apperr.CodeInvalidEmail, apperr.CodeInvalidTable, apperr.CodeCartEmpty:
		return http.StatusBadRequest
	case apperr.CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, domain.APIResponse{Success: false, Error: msg})
}

// limit caps the number of requests handled at once; excess requests get 503
// rather than queuing without bound.
func limit(n int, next http.Handler) http.Handler {
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		default:
			writeError(w, http.StatusServiceUnavailable, "server is busy, try again shortly")
		}
	})
}

// Run wires the order-service together and serves until ctx is cancelled.
func Run(ctx context.Context, cfg config.App, port, maxConc int) error {
	lg := logger.New("order-service")

	conn, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	mqc, err := mq.Dial(cfg.Rabbit.Host, cfg.Rabbit.Port, cfg.Rabbit.User, cfg.Rabbit.Pass)
	if err != nil {
		return err
	}
	defer mqc.Close()
	if err := mqc.DeclareAll(); err != nil {
		return err
	}

	rules := validate.NewOrderRules(validate.PresetLimits(cfg.Policy.RestaurantType))
	h := &handler{svc: NewService(repository.NewOrdersPG(conn), mqc, rules), lg: lg}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", h.addOrder)
	mux.HandleFunc("PATCH /orders/{number}/status", h.updateStatus)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httpx.New(":"+strconv.Itoa(port), limit(maxConc, mux))
	return srv.Run(ctx)
}
