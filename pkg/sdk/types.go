package sdk

import (
	"encoding/json"
	"time"
)

type Server struct {
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
	LastHeartbeat  time.Time      `json:"lastHeartbeat"`
}

type ServerDetail struct {
	Server  Server    `json:"server"`
	Players []Session `json:"players"`
}

type Session struct {
	UUID          string    `json:"uuid"`
	Name          string    `json:"name"`
	CurrentServer string    `json:"currentServer,omitempty"`
	Client        string    `json:"client,omitempty"`
	JoinedAt      time.Time `json:"joinedAt"`
	LastActiveAt  time.Time `json:"lastActiveTs"`
}

type Profile struct {
	UUID       string     `json:"uuid"`
	Name       string     `json:"name"`
	LastJoin   *time.Time `json:"lastJoin,omitempty"`
	LastLeave  *time.Time `json:"lastLeave,omitempty"`
	LastClient string     `json:"lastClient,omitempty"`
	LastServer string     `json:"lastServer,omitempty"`
}

type ClientSighting struct {
	Client    string    `json:"client"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}

type Player struct {
	UUID    string           `json:"uuid"`
	Session *Session         `json:"session,omitempty"`
	Profile *Profile         `json:"profile,omitempty"`
	Clients []ClientSighting `json:"clients"`
	Ban     *Ban             `json:"ban,omitempty"`
}

type LastSeen struct {
	UUID   string     `json:"uuid"`
	Source string     `json:"source"`
	At     *time.Time `json:"at,omitempty"`
	Server string     `json:"server,omitempty"`
	Client string     `json:"client,omitempty"`
}

type Ban struct {
	UUID      string     `json:"uuid"`
	Name      string     `json:"name"`
	Reason    string     `json:"reason"`
	By        string     `json:"by"`
	IssuedAt  time.Time  `json:"issuedAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Active    bool       `json:"active"`
}

type BanStatus struct {
	Banned bool `json:"banned"`
	Ban    *Ban `json:"ban,omitempty"`
}

type BanHistoryEntry struct {
	ID     string    `json:"id"`
	UUID   string    `json:"uuid"`
	Name   string    `json:"name"`
	Action string    `json:"action"`
	Actor  string    `json:"actor"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

type BanRequest struct {
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	Reason   string `json:"reason,omitempty"`
	By       string `json:"by,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type RCONResult struct {
	Server  string   `json:"server"`
	Players []string `json:"players"`
}

type RCONPlayers struct {
	Total   int          `json:"total"`
	Servers []RCONResult `json:"servers"`
}

type Status struct {
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

// Event is one fan-out message as received over the websocket.
type Event struct {
	Channel   string          `json:"channel"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
