package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"lodestone/internal/app"
	"lodestone/internal/metrics"
	"lodestone/internal/registry"
)

const EventLogLine = "log.line"

type registerServerRequest struct {
	Name           string         `json:"name" validate:"required,max=64"`
	Type           string         `json:"type" validate:"max=32"`
	Host           string         `json:"host" validate:"required"`
	Port           int            `json:"port" validate:"gte=0,lte=65535"`
	MaxPlayers     int            `json:"maxPlayers" validate:"gte=0"`
	CurrentPlayers int            `json:"currentPlayers" validate:"gte=0"`
	Version        string         `json:"version"`
	ControlURL     string         `json:"controlUrl" validate:"omitempty,url"`
	Meta           map[string]any `json:"meta"`
}

type heartbeatRequest struct {
	Name           string         `json:"name" validate:"required"`
	CurrentPlayers *int           `json:"currentPlayers" validate:"omitempty,gte=0"`
	MaxPlayers     *int           `json:"maxPlayers" validate:"omitempty,gte=0"`
	Version        *string        `json:"version"`
	Meta           map[string]any `json:"meta"`
	Status         *string        `json:"status"`
}

type unregisterRequest struct {
	Name string `json:"name" validate:"required"`
}

type logLinesRequest struct {
	Lines []string `json:"lines" validate:"required,min=1,max=500,dive,max=8192"`
}

func logChannel(server string) string {
	return app.LogChannelPrefix + strings.ToLower(server)
}

func (api *Server) handleRegisterServer(w http.ResponseWriter, r *http.Request) {
	var req registerServerRequest
	if !api.decode(w, r, &req) {
		return
	}

	rec, err := api.Registry.Register(registry.RegisterRequest{
		Name:           req.Name,
		Type:           req.Type,
		Host:           req.Host,
		Port:           req.Port,
		MaxPlayers:     req.MaxPlayers,
		CurrentPlayers: req.CurrentPlayers,
		Version:        req.Version,
		ControlURL:     req.ControlURL,
		Meta:           req.Meta,
	})
	if errors.Is(err, registry.ErrNotAllowed) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.IngestEventsTotal.WithLabelValues("register").Inc()
	writeJSON(w, http.StatusOK, rec)
}

func (api *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if !api.decode(w, r, &req) {
		return
	}

	rec, err := api.Registry.Heartbeat(req.Name, registry.HeartbeatUpdate{
		CurrentPlayers: req.CurrentPlayers,
		MaxPlayers:     req.MaxPlayers,
		Version:        req.Version,
		Meta:           req.Meta,
		Status:         req.Status,
	})
	if errors.Is(err, registry.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not registered")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.IngestEventsTotal.WithLabelValues("heartbeat").Inc()
	writeJSON(w, http.StatusOK, rec)
}

func (api *Server) handleUnregisterServer(w http.ResponseWriter, r *http.Request) {
	var req unregisterRequest
	if !api.decode(w, r, &req) {
		return
	}

	removed := api.Registry.Unregister(req.Name)
	if removed {
		api.Hub.ClearHistory(logChannel(req.Name))
	}

	metrics.IngestEventsTotal.WithLabelValues("unregister").Inc()
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (api *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.Registry.List())
}

func (api *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	rec, ok := api.Registry.Get(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "not registered")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"server":  rec,
		"players": nonNil(api.Sessions.OnServer(rec.Name)),
	})
}

func (api *Server) handlePublishServerLogs(w http.ResponseWriter, r *http.Request) {
	rec, ok := api.Registry.Get(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "not registered")
		return
	}

	var req logLinesRequest
	if !api.decode(w, r, &req) {
		return
	}

	channel := logChannel(rec.Name)
	for _, line := range req.Lines {
		api.Hub.Publish(channel, EventLogLine, line)
	}

	writeJSON(w, http.StatusOK, map[string]int{"published": len(req.Lines)})
}

// handleGetServerLogs returns the retained log lines of a server.
func (api *Server) handleGetServerLogs(w http.ResponseWriter, r *http.Request) {
	raw := api.Hub.History(logChannel(r.PathValue("name")))

	out := make([]json.RawMessage, 0, len(raw))
	for _, msg := range raw {
		out = append(out, msg)
	}
	writeJSON(w, http.StatusOK, out)
}
