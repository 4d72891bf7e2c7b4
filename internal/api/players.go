package api

import (
	"net/http"
	"time"

	"lodestone/internal/domain"
	"lodestone/internal/metrics"
	"lodestone/internal/session"

	"github.com/rs/zerolog/log"
)

type joinRequest struct {
	UUID   string `json:"uuid" validate:"required,max=64"`
	Name   string `json:"name" validate:"required,max=64"`
	Client string `json:"client" validate:"max=64"`
	Server string `json:"server" validate:"max=64"`
}

type switchRequest struct {
	UUID   string `json:"uuid" validate:"required,max=64"`
	Name   string `json:"name" validate:"max=64"`
	Server string `json:"server" validate:"max=64"`
	Client string `json:"client" validate:"max=64"`
}

type leaveRequest struct {
	UUID   string `json:"uuid" validate:"required,max=64"`
	Name   string `json:"name" validate:"max=64"`
	Client string `json:"client" validate:"max=64"`
}

type syncPlayer struct {
	UUID     string     `json:"uuid" validate:"required,max=64"`
	Name     string     `json:"name" validate:"required,max=64"`
	Client   string     `json:"client" validate:"max=64"`
	Server   string     `json:"server" validate:"max=64"`
	JoinedAt *time.Time `json:"joinedAt"`
}

type fullSyncRequest struct {
	Server  string       `json:"server" validate:"required,max=64"`
	Players []syncPlayer `json:"players" validate:"dive"`
}

type joinResponse struct {
	Session domain.Session `json:"session"`
	Banned  bool           `json:"banned"`
	Ban     *domain.Ban    `json:"ban,omitempty"`
}

type switchResponse struct {
	Session *domain.Session `json:"session,omitempty"`
	Updated bool            `json:"updated"`
}

type leaveResponse struct {
	Session *domain.Session `json:"session,omitempty"`
	Removed bool            `json:"removed"`
}

type playerResponse struct {
	UUID    string                  `json:"uuid"`
	Session *domain.Session         `json:"session,omitempty"`
	Profile *domain.PlayerProfile   `json:"profile,omitempty"`
	Clients []domain.ClientSighting `json:"clients"`
	Ban     *domain.Ban             `json:"ban,omitempty"`
}

func (api *Server) handlePlayerJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !api.decode(w, r, &req) {
		return
	}

	sess := api.Sessions.Join(r.Context(), session.JoinEvent{
		UUID:   req.UUID,
		Name:   req.Name,
		Client: req.Client,
		Server: req.Server,
	})
	api.Bans.TouchName(r.Context(), req.UUID, req.Name)
	metrics.IngestEventsTotal.WithLabelValues("join").Inc()

	resp := joinResponse{Session: sess}
	if b, banned := api.Bans.IsBanned(req.UUID); banned {
		resp.Banned = true
		resp.Ban = &b
	}
	writeJSON(w, http.StatusOK, resp)
}

func (api *Server) handlePlayerSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if !api.decode(w, r, &req) {
		return
	}

	sess, ok := api.Sessions.Switch(r.Context(), session.SwitchEvent{
		UUID:   req.UUID,
		Name:   req.Name,
		Server: req.Server,
		Client: req.Client,
	})
	metrics.IngestEventsTotal.WithLabelValues("switch").Inc()

	resp := switchResponse{Updated: ok}
	if ok {
		resp.Session = &sess
	}
	writeJSON(w, http.StatusOK, resp)
}

func (api *Server) handlePlayerLeave(w http.ResponseWriter, r *http.Request) {
	var req leaveRequest
	if !api.decode(w, r, &req) {
		return
	}

	sess, ok := api.Sessions.Leave(r.Context(), session.LeaveEvent{
		UUID:   req.UUID,
		Name:   req.Name,
		Client: req.Client,
	})
	metrics.IngestEventsTotal.WithLabelValues("leave").Inc()

	resp := leaveResponse{Removed: ok}
	if ok {
		resp.Session = &sess
	}
	writeJSON(w, http.StatusOK, resp)
}

func (api *Server) handleFullSync(w http.ResponseWriter, r *http.Request) {
	var req fullSyncRequest
	if !api.decode(w, r, &req) {
		return
	}

	entries := make([]session.SyncEntry, 0, len(req.Players))
	for _, p := range req.Players {
		e := session.SyncEntry{UUID: p.UUID, Name: p.Name, Client: p.Client, Server: p.Server}
		if p.JoinedAt != nil {
			e.JoinedAt = *p.JoinedAt
		}
		entries = append(entries, e)
		api.Bans.TouchName(r.Context(), p.UUID, p.Name)
	}

	res := api.Sessions.FullSync(r.Context(), req.Server, entries)
	metrics.IngestEventsTotal.WithLabelValues("full-sync").Inc()

	writeJSON(w, http.StatusOK, map[string]int{"processed": res.Processed, "dropped": res.Dropped})
}

func (api *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	if server := r.URL.Query().Get("server"); server != "" {
		writeJSON(w, http.StatusOK, nonNil(api.Sessions.OnServer(server)))
		return
	}
	writeJSON(w, http.StatusOK, api.Sessions.List())
}

func (api *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("uuid")
	resp := playerResponse{UUID: id, Clients: []domain.ClientSighting{}}

	if sess, ok := api.Sessions.Get(id); ok {
		resp.Session = &sess
	}
	if b, ok := api.Bans.IsBanned(id); ok {
		resp.Ban = &b
	}

	profile, err := api.Store.GetProfile(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("uuid", id).Msg("failed to load player profile")
		writeError(w, http.StatusInternalServerError, "could not load profile")
		return
	}
	resp.Profile = profile

	clients, err := api.Store.ListClientSightings(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("uuid", id).Msg("failed to load client history")
	} else if clients != nil {
		resp.Clients = clients
	}

	if resp.Session == nil && resp.Profile == nil && resp.Ban == nil {
		writeError(w, http.StatusNotFound, "unknown player")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (api *Server) handleLastSeen(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("uuid")

	var live *domain.Session
	if sess, ok := api.Sessions.Get(id); ok {
		live = &sess
	}

	var profile *domain.PlayerProfile
	if live == nil {
		p, err := api.Store.GetProfile(r.Context(), id)
		if err != nil {
			log.Error().Err(err).Str("uuid", id).Msg("failed to load player profile")
			writeError(w, http.StatusInternalServerError, "could not load profile")
			return
		}
		profile = p
	}

	writeJSON(w, http.StatusOK, domain.DeriveLastSeen(id, live, profile))
}
