// Package api exposes the ingestion endpoints used by game servers and the
// read/admin surface used by operators.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"lodestone/internal/app"
	"lodestone/internal/ban"
	"lodestone/internal/control"
	"lodestone/internal/rcon"
	"lodestone/internal/registry"
	"lodestone/internal/session"
	"lodestone/internal/storage"
	"lodestone/internal/sysinfo"
	"lodestone/internal/ws"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Server struct {
	Registry   *registry.Registry
	Sessions   *session.Store
	Bans       *ban.Store
	Propagator *ban.Propagator
	Store      *storage.GormStore
	Hub        *ws.Hub
	Poller     *rcon.Poller
	Control    *control.Client
	Probe      *sysinfo.Probe

	token        string
	maxBodyBytes int64
	rateCount    int
	rateWindow   time.Duration
	done         chan struct{}
}

func NewAPIServer(container *app.Container) *Server {
	cfg := container.Config
	return &Server{
		Registry:     container.Registry,
		Sessions:     container.Sessions,
		Bans:         container.Bans,
		Propagator:   container.Propagator,
		Store:        container.Store,
		Hub:          container.Hub,
		Poller:       container.Poller,
		Control:      container.Control,
		Probe:        container.Probe,
		token:        cfg.HTTP.Token,
		maxBodyBytes: cfg.HTTP.MaxBodyBytes,
		rateCount:    cfg.HTTP.RateLimitCount,
		rateWindow:   cfg.HTTP.RateLimitWin,
		done:         make(chan struct{}),
	}
}

// Handler builds the full route table with its middleware chain.
func (api *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/servers/register", api.handleRegisterServer)
	mux.HandleFunc("POST /api/servers/heartbeat", api.handleHeartbeat)
	mux.HandleFunc("POST /api/servers/unregister", api.handleUnregisterServer)
	mux.HandleFunc("GET /api/servers", api.handleListServers)
	mux.HandleFunc("GET /api/servers/{name}", api.handleGetServer)
	mux.HandleFunc("GET /api/servers/{name}/logs", api.handleGetServerLogs)
	mux.HandleFunc("POST /api/servers/{name}/logs", api.handlePublishServerLogs)

	mux.HandleFunc("POST /api/players/join", api.handlePlayerJoin)
	mux.HandleFunc("POST /api/players/switch", api.handlePlayerSwitch)
	mux.HandleFunc("POST /api/players/leave", api.handlePlayerLeave)
	mux.HandleFunc("POST /api/players/full-sync", api.handleFullSync)
	mux.HandleFunc("GET /api/players", api.handleListPlayers)
	mux.HandleFunc("GET /api/players/{uuid}", api.handleGetPlayer)
	mux.HandleFunc("GET /api/players/{uuid}/last-seen", api.handleLastSeen)

	mux.HandleFunc("POST /api/bans/ban", api.handleBan)
	mux.HandleFunc("POST /api/bans/unban", api.handleUnban)
	mux.HandleFunc("GET /api/bans", api.handleListBans)
	mux.HandleFunc("GET /api/bans/{uuid}", api.handleIsBanned)
	mux.HandleFunc("GET /api/bans/{uuid}/history", api.handleBanHistory)

	mux.HandleFunc("GET /api/rcon/players", api.handleRCONPlayers)
	mux.HandleFunc("GET /api/status", api.handleStatus)
	mux.HandleFunc("GET /ws", api.Hub.ServeWs)

	protected := api.AuthMiddleware(api.RateLimitMiddleware(mux))

	root := http.NewServeMux()
	root.HandleFunc("GET /health", api.handleHealth)
	root.Handle("GET /metrics", promhttp.Handler())
	root.Handle("/", protected)

	return api.LoggingMiddleware(api.corsMiddleware(root))
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (api *Server) Start(ctx context.Context, listenAddr string) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", listenAddr).Msg("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		close(api.done)
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	close(api.done)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (api *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
