package domain

import "time"

const (
	BanActionBan   = "BAN"
	BanActionUnban = "UNBAN"

	SystemActor   = "system"
	OperatorActor = "operator"
)

type Ban struct {
	UUID      string     `json:"uuid"`
	Name      string     `json:"name"`
	Reason    string     `json:"reason"`
	By        string     `json:"by"`
	IssuedAt  time.Time  `json:"issuedAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Active    bool       `json:"active"`
}

// Expired reports whether the ban has a deadline that is not after now.
func (b Ban) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}

// InForce is true for an active ban that has not expired yet.
func (b Ban) InForce(now time.Time) bool {
	return b.Active && !b.Expired(now)
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
