// Package tracking is the read side: order lookup by number and paginated
// order history per restaurant. It is also what clients poll when their
// realtime channel is down.
package tracking

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"tableorder/internal/common/config"
	"tableorder/internal/common/db"
	"tableorder/internal/common/httpx"
	"tableorder/internal/common/logger"
	"tableorder/internal/domain"
	"tableorder/internal/repository"
	"tableorder/internal/validate"
)

type handler struct {
	repo  repository.Orders
	rules *validate.OrderRules
	lg    *logger.Logger
}

// orderView decorates an order with the derived progress and timeout fields
// the status screen renders.
type orderView struct {
	domain.Order
	Progress      float64 `json:"progress"`
	TimedOut      bool    `json:"timed_out"`
	RemainingSecs int     `json:"remaining_seconds"`
}

func (h *handler) view(o domain.Order) orderView {
	return orderView{
		Order:         o,
		Progress:      domain.StatusProgress(o.Status),
		TimedOut:      !o.Status.IsTerminal() && h.rules.IsOrderTimedOut(o.CreatedAt),
		RemainingSecs: int(h.rules.RemainingTime(o.CreatedAt).Seconds()),
	}
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	o, err := h.repo.GetByNumber(r.Context(), number)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, domain.APIResponse{Success: false, Error: "order not found"})
		return
	}
	if err != nil {
		h.lg.Error("order_lookup_failed", err, map[string]any{"order_number": number})
		writeJSON(w, http.StatusInternalServerError, domain.APIResponse{Success: false, Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, domain.APIResponse{Success: true, Data: h.view(o)})
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	restaurantID := r.PathValue("id")
	if !validate.RestaurantID(restaurantID) {
		writeJSON(w, http.StatusBadRequest, domain.APIResponse{Success: false, Error: "invalid restaurant id"})
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	orders, total, err := h.repo.ListByRestaurant(r.Context(), restaurantID, page, pageSize)
	if err != nil {
		h.lg.Error("order_list_failed", err, map[string]any{"restaurant_id": restaurantID})
		writeJSON(w, http.StatusInternalServerError, domain.APIResponse{Success: false, Error: "internal error"})
		return
	}

	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, h.view(o))
	}
	p := domain.NewPagination(page, pageSize, total)
	writeJSON(w, http.StatusOK, domain.APIResponse{Success: true, Data: views, Pagination: &p})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// NewHandler builds the tracking routes. Split out from Run so tests can
// serve them without a database behind a real listener.
func NewHandler(repo repository.Orders, rules *validate.OrderRules, lg *logger.Logger) http.Handler {
	h := &handler{repo: repo, rules: rules, lg: lg}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders/{number}", h.getOrder)
	mux.HandleFunc("GET /restaurants/{id}/orders", h.listOrders)
	return mux
}

func Run(ctx context.Context, cfg config.App, port int) error {
	lg := logger.New("tracking-service")

	conn, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	rules := validate.NewOrderRules(validate.PresetLimits(cfg.Policy.RestaurantType))
	srv := httpx.New(":"+strconv.Itoa(port), NewHandler(repository.NewOrdersPG(conn), rules, lg))
	return srv.Run(ctx)
}
