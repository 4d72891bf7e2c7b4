package domain

import "time"

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

type ServerRecord struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           string         `json:"type"`
	Host           string         `json:"host"`
	Port           int            `json:"port"`
	ControlURL     string         `json:"controlUrl,omitempty"`
	MaxPlayers     int            `json:"maxPlayers"`
	CurrentPlayers int            `json:"currentPlayers"`
	Version        string         `json:"version,omitempty"`
	Meta           map[string]any `json:"meta,omitempty"`
	Status         string         `json:"status"`
	ReportedStatus string         `json:"reportedStatus,omitempty"`
	LastHeartbeat  time.Time      `json:"lastHeartbeat"`
	FirstSeen      time.Time      `json:"firstSeen"`
}

// Online reports the computed liveness of the record.
func (s ServerRecord) Online() bool {
	return s.Status == StatusOnline
}

type CoordinatorStats struct {
	PID        int32     `json:"pid"`
	CPU        float64   `json:"cpu"`
	RAM        uint64    `json:"ram"`
	Goroutines int       `json:"goroutines"`
	StartedAt  time.Time `json:"startedAt"`
	Servers    int       `json:"servers"`
	Online     int       `json:"online"`
	Sessions   int       `json:"sessions"`
	ActiveBans int       `json:"activeBans"`
	Consumers  int       `json:"consumers"`
}
