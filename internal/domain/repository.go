package domain

import (
	"context"
	"time"
)

type BanRepository interface {
	SaveBan(ctx context.Context, ban Ban) error
	DeactivateBan(ctx context.Context, uuid string) error
	ListActiveBans(ctx context.Context) ([]Ban, error)
	AppendBanHistory(ctx context.Context, entry BanHistoryEntry) error
	ListBanHistory(ctx context.Context, uuid string) ([]BanHistoryEntry, error)
}

type ProfileRepository interface {
	RecordJoin(ctx context.Context, uuid, name, client, server string, at time.Time) error
	RecordLeave(ctx context.Context, uuid, name, client, server string, at time.Time) error
	GetProfile(ctx context.Context, uuid string) (*PlayerProfile, error)
	ListClientSightings(ctx context.Context, uuid string) ([]ClientSighting, error)
}

type Repository interface {
	BanRepository
	ProfileRepository
}
