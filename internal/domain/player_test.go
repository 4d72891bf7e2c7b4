package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveLastSeen(t *testing.T) {
	joined := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	left := joined.Add(time.Hour)
	active := left.Add(time.Hour)

	live := &Session{UUID: "u1", CurrentServer: "hub", Client: "java.1.20", LastActiveAt: active}
	profile := &PlayerProfile{UUID: "u1", LastJoin: &joined, LastLeave: &left, LastServer: "anarchy", LastClient: "java.1.19"}
	joinOnly := &PlayerProfile{UUID: "u1", LastJoin: &joined, LastServer: "hub"}

	tests := []struct {
		name    string
		live    *Session
		profile *PlayerProfile
		source  string
		at      *time.Time
		server  string
	}{
		{"online wins", live, profile, SeenOnline, &active, "hub"},
		{"last leave", nil, profile, SeenLastLeave, &left, "anarchy"},
		{"last join", nil, joinOnly, SeenLastJoin, &joined, "hub"},
		{"never", nil, nil, SeenNever, nil, ""},
		{"empty profile", nil, &PlayerProfile{UUID: "u1"}, SeenNever, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveLastSeen("u1", tt.live, tt.profile)
			assert.Equal(t, tt.source, got.Source)
			assert.Equal(t, tt.at, got.At)
			assert.Equal(t, tt.server, got.Server)
		})
	}
}

func TestBanInForce(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, Ban{Active: true}.InForce(now))
	assert.True(t, Ban{Active: true, ExpiresAt: &future}.InForce(now))
	assert.False(t, Ban{Active: true, ExpiresAt: &past}.InForce(now))
	assert.False(t, Ban{Active: true, ExpiresAt: &now}.InForce(now))
	assert.False(t, Ban{Active: false}.InForce(now))
}
