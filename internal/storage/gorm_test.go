package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lodestone/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := NewGormStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBanLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveBan(ctx, domain.Ban{UUID: "u1", Name: "A", Reason: "x", By: "mod", IssuedAt: now, Active: true}))
	require.NoError(t, s.SaveBan(ctx, domain.Ban{UUID: "u2", Name: "B", IssuedAt: now.Add(time.Minute), Active: true}))

	active, err := s.ListActiveBans(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "u2", active[0].UUID)

	require.NoError(t, s.DeactivateBan(ctx, "u1"))
	active, err = s.ListActiveBans(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "u2", active[0].UUID)

	// Re-ban reuses the row.
	require.NoError(t, s.SaveBan(ctx, domain.Ban{UUID: "u1", Name: "A2", IssuedAt: now, Active: true}))
	active, err = s.ListActiveBans(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestBanHistoryOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, action := range []string{domain.BanActionBan, domain.BanActionUnban, domain.BanActionBan} {
		require.NoError(t, s.AppendBanHistory(ctx, domain.BanHistoryEntry{
			ID:     string(rune('a' + i)),
			UUID:   "u1",
			Action: action,
			Actor:  "mod",
			At:     at,
		}))
	}
	require.NoError(t, s.AppendBanHistory(ctx, domain.BanHistoryEntry{ID: "z", UUID: "other", Action: domain.BanActionBan, At: at}))

	hist, err := s.ListBanHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, []string{"BAN", "UNBAN", "BAN"}, []string{hist[0].Action, hist[1].Action, hist[2].Action})
}

func TestProfileJoinLeave(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	joined := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	left := joined.Add(30 * time.Minute)

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, s.RecordJoin(ctx, "u1", "Alice", "java.1.20", "hub", joined))
	require.NoError(t, s.RecordLeave(ctx, "u1", "", "", "anarchy", left))

	p, err = s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, "java.1.20", p.LastClient)
	assert.Equal(t, "anarchy", p.LastServer)
	require.NotNil(t, p.LastJoin)
	require.NotNil(t, p.LastLeave)
	assert.True(t, p.LastJoin.Equal(joined))
	assert.True(t, p.LastLeave.Equal(left))
}

func TestClientSightings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordJoin(ctx, "u1", "Alice", "java.1.20", "hub", t0))
	require.NoError(t, s.RecordJoin(ctx, "u1", "Alice", "bedrock.1.21", "hub", t0.Add(time.Hour)))
	require.NoError(t, s.RecordLeave(ctx, "u1", "Alice", "java.1.20", "hub", t0.Add(2*time.Hour)))

	sightings, err := s.ListClientSightings(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sightings, 2)
	assert.Equal(t, "java.1.20", sightings[0].Client)
	assert.True(t, sightings[0].FirstSeen.Equal(t0))
	assert.True(t, sightings[0].LastSeen.Equal(t0.Add(2*time.Hour)))
	assert.Equal(t, "bedrock.1.21", sightings[1].Client)
}
