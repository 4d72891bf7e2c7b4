package domain

import "time"

type Session struct {
	UUID          string    `json:"uuid"`
	Name          string    `json:"name"`
	CurrentServer string    `json:"currentServer,omitempty"`
	Client        string    `json:"client,omitempty"`
	JoinedAt      time.Time `json:"joinedAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	LastActiveAt  time.Time `json:"lastActiveTs"`
}

type PlayerProfile struct {
	UUID       string     `json:"uuid"`
	Name       string     `json:"name"`
	LastJoin   *time.Time `json:"lastJoin,omitempty"`
	LastLeave  *time.Time `json:"lastLeave,omitempty"`
	LastClient string     `json:"lastClient,omitempty"`
	LastServer string     `json:"lastServer,omitempty"`
}

type ClientSighting struct {
	UUID      string    `json:"uuid"`
	Client    string    `json:"client"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}

const (
	SeenOnline    = "online"
	SeenLastLeave = "last-leave"
	SeenLastJoin  = "last-join"
	SeenNever     = "never"
)

type LastSeen struct {
	UUID   string     `json:"uuid"`
	Source string     `json:"source"`
	At     *time.Time `json:"at,omitempty"`
	Server string     `json:"server,omitempty"`
	Client string     `json:"client,omitempty"`
}

// DeriveLastSeen prefers the live session, then the last recorded leave,
// then the last recorded join.
func DeriveLastSeen(uuid string, live *Session, profile *PlayerProfile) LastSeen {
	if live != nil {
		at := live.LastActiveAt
		return LastSeen{UUID: uuid, Source: SeenOnline, At: &at, Server: live.CurrentServer, Client: live.Client}
	}
	if profile != nil {
		if profile.LastLeave != nil {
			return LastSeen{UUID: uuid, Source: SeenLastLeave, At: profile.LastLeave, Server: profile.LastServer, Client: profile.LastClient}
		}
		if profile.LastJoin != nil {
			return LastSeen{UUID: uuid, Source: SeenLastJoin, At: profile.LastJoin, Server: profile.LastServer, Client: profile.LastClient}
		}
	}
	return LastSeen{UUID: uuid, Source: SeenNever}
}
