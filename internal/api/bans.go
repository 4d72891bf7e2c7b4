package api

import (
	"errors"
	"net/http"
	"time"

	"lodestone/internal/ban"
	"lodestone/internal/domain"

	"github.com/rs/zerolog/log"
)

type banRequest struct {
	UUID      string     `json:"uuid" validate:"required,max=64"`
	Name      string     `json:"name" validate:"required,max=64"`
	Reason    string     `json:"reason" validate:"max=512"`
	By        string     `json:"by" validate:"max=64"`
	ExpiresAt *time.Time `json:"expiresAt"`
	// Duration is an alternative to ExpiresAt, e.g. "72h".
	Duration string `json:"duration"`
}

type unbanRequest struct {
	UUID string `json:"uuid" validate:"required,max=64"`
	By   string `json:"by" validate:"max=64"`
}

type banStatusResponse struct {
	Banned bool        `json:"banned"`
	Ban    *domain.Ban `json:"ban,omitempty"`
}

func (api *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	var req banRequest
	if !api.decode(w, r, &req) {
		return
	}

	expires := req.ExpiresAt
	if expires == nil && req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid duration")
			return
		}
		at := time.Now().Add(d)
		expires = &at
	}

	b, err := api.Bans.Ban(r.Context(), ban.Request{
		UUID:      req.UUID,
		Name:      req.Name,
		Reason:    req.Reason,
		By:        req.By,
		ExpiresAt: expires,
	})
	if errors.Is(err, ban.ErrExpiryInPast) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, ban.ErrAlreadyBanned) {
		writeJSON(w, http.StatusConflict, struct {
			Error string     `json:"error"`
			Ban   domain.Ban `json:"ban"`
		}{err.Error(), b})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("uuid", req.UUID).Msg("ban failed")
		writeError(w, http.StatusInternalServerError, "could not store ban")
		return
	}

	api.Propagator.OnBan(b)
	writeJSON(w, http.StatusOK, b)
}

func (api *Server) handleUnban(w http.ResponseWriter, r *http.Request) {
	var req unbanRequest
	if !api.decode(w, r, &req) {
		return
	}

	_, err := api.Bans.Unban(r.Context(), req.UUID, req.By)
	if errors.Is(err, ban.ErrNotBanned) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Str("uuid", req.UUID).Msg("unban failed")
		writeError(w, http.StatusInternalServerError, "could not store unban")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"unbanned": true})
}

func (api *Server) handleListBans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.Bans.List())
}

// handleIsBanned is the login-time check; a hit also reminds first-contact
// servers of the ban.
func (api *Server) handleIsBanned(w http.ResponseWriter, r *http.Request) {
	b, ok := api.Bans.IsBanned(r.PathValue("uuid"))
	if !ok {
		writeJSON(w, http.StatusOK, banStatusResponse{Banned: false})
		return
	}
	api.Propagator.OnLookup(b)
	writeJSON(w, http.StatusOK, banStatusResponse{Banned: true, Ban: &b})
}

func (api *Server) handleBanHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("uuid")
	entries, err := api.Bans.History(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("uuid", id).Msg("failed to load ban history")
		writeError(w, http.StatusInternalServerError, "could not load history")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries))
}
