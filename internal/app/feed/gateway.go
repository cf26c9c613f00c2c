// Package feed is the feed-gateway: it bridges row-change events off the
// message bus onto websocket subscribers.
package feed

import (
	"context"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"tableorder/internal/common/config"
	"tableorder/internal/common/httpx"
	"tableorder/internal/common/logger"
	"tableorder/internal/common/mq"
	"tableorder/internal/domain"
	"tableorder/internal/realtime"
)

// Run serves the websocket endpoint and pumps bus events into the hub until
// ctx is cancelled.
func Run(ctx context.Context, cfg config.App, port int) error {
	lg := logger.New("feed-gateway")

	mqc, err := mq.Dial(cfg.Rabbit.Host, cfg.Rabbit.Port, cfg.Rabbit.User, cfg.Rabbit.Pass)
	if err != nil {
		return err
	}
	defer mqc.Close()
	if err := mqc.DeclareAll(); err != nil {
		return err
	}

	hub := realtime.NewHub(lg)
	presence := realtime.NewPresence()
	hub.SetPresence(presence)
	go hub.Run(ctx)
	go func() {
		if err := realtime.RunBridge(ctx, mqc, hub, lg); err != nil && ctx.Err() == nil {
			lg.Error("bridge_stopped", err, nil)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /realtime", hub.Handler())
	mux.HandleFunc("GET /presence/{key}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.APIResponse{
			Success: true,
			Data:    presence.Viewers(r.PathValue("key")),
		})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httpx.New(":"+strconv.Itoa(port), mux)
	return srv.Run(ctx)
}
