package api

import (
	"net/http"

	"lodestone/internal/domain"
	"lodestone/internal/rcon"
)

func (api *Server) handleRCONPlayers(w http.ResponseWriter, r *http.Request) {
	results := api.Poller.Poll(r.Context())
	total := 0
	for _, res := range results {
		total += len(res.Players)
	}
	writeJSON(w, http.StatusOK, struct {
		Total   int           `json:"total"`
		Servers []rcon.Result `json:"servers"`
	}{total, nonNil(results)})
}

func (api *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := domain.CoordinatorStats{
		Sessions:   api.Sessions.Count(),
		ActiveBans: api.Bans.Count(),
		Consumers:  api.Hub.Consumers(),
	}

	if api.Probe != nil {
		u := api.Probe.Sample()
		stats.PID = u.PID
		stats.CPU = u.CPU
		stats.RAM = u.RAM
		stats.Goroutines = u.Goroutines
		stats.StartedAt = u.StartedAt
	}

	servers := api.Registry.List()
	stats.Servers = len(servers)
	for _, s := range servers {
		if s.Online() {
			stats.Online++
		}
	}

	writeJSON(w, http.StatusOK, stats)
}
