// Package storage persists bans, ban history and player profiles in SQLite
// through GORM.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lodestone/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Ban struct {
	UUID      string `gorm:"primaryKey"`
	Name      string
	Reason    string
	By        string
	IssuedAt  time.Time
	ExpiresAt *time.Time
	Active    bool `gorm:"index"`
}

type BanHistory struct {
	ID     string    `gorm:"primaryKey"`
	UUID   string    `gorm:"index"`
	Name   string
	Action string
	Actor  string
	Reason string
	At     time.Time `gorm:"index"`
}

func (BanHistory) TableName() string { return "ban_history" }

type PlayerProfile struct {
	UUID       string `gorm:"primaryKey"`
	Name       string `gorm:"index"`
	LastJoin   *time.Time
	LastLeave  *time.Time
	LastClient string
	LastServer string
}

type ClientSighting struct {
	UUID      string `gorm:"primaryKey"`
	Client    string `gorm:"primaryKey"`
	FirstSeen time.Time
	LastSeen  time.Time
}

type GormStore struct {
	db *gorm.DB
}

// zerologWriter lets GORM's logger print through zerolog.
type zerologWriter struct{}

func (zerologWriter) Printf(format string, args ...interface{}) {
	log.Error().Str("component", "gorm").Msgf(format, args...)
}

func NewGormStore(path string) (*GormStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	newLogger := gormlogger.New(
		zerologWriter{},
		gormlogger.Config{
			IgnoreRecordNotFoundError: true,
			LogLevel:                  gormlogger.Error,
		},
	)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newLogger})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&Ban{}, &BanHistory{}, &PlayerProfile{}, &ClientSighting{})
	if err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) SaveBan(ctx context.Context, b domain.Ban) error {
	row := &Ban{
		UUID:      b.UUID,
		Name:      b.Name,
		Reason:    b.Reason,
		By:        b.By,
		IssuedAt:  b.IssuedAt,
		ExpiresAt: b.ExpiresAt,
		Active:    b.Active,
	}
	return s.db.WithContext(ctx).Save(row).Error
}

func (s *GormStore) DeactivateBan(ctx context.Context, uuid string) error {
	return s.db.WithContext(ctx).Model(&Ban{}).Where("uuid = ?", uuid).Update("active", false).Error
}

func (s *GormStore) ListActiveBans(ctx context.Context) ([]domain.Ban, error) {
	var rows []Ban
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("issued_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}

	bans := make([]domain.Ban, len(rows))
	for i, r := range rows {
		bans[i] = domain.Ban{
			UUID:      r.UUID,
			Name:      r.Name,
			Reason:    r.Reason,
			By:        r.By,
			IssuedAt:  r.IssuedAt,
			ExpiresAt: r.ExpiresAt,
			Active:    r.Active,
		}
	}
	return bans, nil
}

func (s *GormStore) AppendBanHistory(ctx context.Context, e domain.BanHistoryEntry) error {
	return s.db.WithContext(ctx).Create(&BanHistory{
		ID:     e.ID,
		UUID:   e.UUID,
		Name:   e.Name,
		Action: e.Action,
		Actor:  e.Actor,
		Reason: e.Reason,
		At:     e.At,
	}).Error
}

func (s *GormStore) ListBanHistory(ctx context.Context, uuid string) ([]domain.BanHistoryEntry, error) {
	var rows []BanHistory
	if err := s.db.WithContext(ctx).Where("uuid = ?", uuid).Order("at asc").Order("rowid asc").Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]domain.BanHistoryEntry, len(rows))
	for i, r := range rows {
		entries[i] = domain.BanHistoryEntry{
			ID:     r.ID,
			UUID:   r.UUID,
			Name:   r.Name,
			Action: r.Action,
			Actor:  r.Actor,
			Reason: r.Reason,
			At:     r.At,
		}
	}
	return entries, nil
}

func (s *GormStore) RecordJoin(ctx context.Context, uuid, name, client, server string, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := loadProfile(tx, uuid)
		if err != nil {
			return err
		}
		if name != "" {
			p.Name = name
		}
		p.LastJoin = &at
		if client != "" {
			p.LastClient = client
		}
		if server != "" {
			p.LastServer = server
		}
		if err := tx.Save(p).Error; err != nil {
			return err
		}
		return recordSighting(tx, uuid, client, at)
	})
}

func (s *GormStore) RecordLeave(ctx context.Context, uuid, name, client, server string, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := loadProfile(tx, uuid)
		if err != nil {
			return err
		}
		if name != "" {
			p.Name = name
		}
		p.LastLeave = &at
		if client != "" {
			p.LastClient = client
		}
		if server != "" {
			p.LastServer = server
		}
		if err := tx.Save(p).Error; err != nil {
			return err
		}
		return recordSighting(tx, uuid, client, at)
	})
}

func loadProfile(tx *gorm.DB, uuid string) (*PlayerProfile, error) {
	var p PlayerProfile
	err := tx.First(&p, "uuid = ?", uuid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &PlayerProfile{UUID: uuid}, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func recordSighting(tx *gorm.DB, uuid, client string, at time.Time) error {
	if client == "" {
		return nil
	}

	var sighting ClientSighting
	err := tx.First(&sighting, "uuid = ? AND client = ?", uuid, client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(&ClientSighting{UUID: uuid, Client: client, FirstSeen: at, LastSeen: at}).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&sighting).Update("last_seen", at).Error
}

func (s *GormStore) GetProfile(ctx context.Context, uuid string) (*domain.PlayerProfile, error) {
	var p PlayerProfile
	if err := s.db.WithContext(ctx).First(&p, "uuid = ?", uuid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &domain.PlayerProfile{
		UUID:       p.UUID,
		Name:       p.Name,
		LastJoin:   p.LastJoin,
		LastLeave:  p.LastLeave,
		LastClient: p.LastClient,
		LastServer: p.LastServer,
	}, nil
}

func (s *GormStore) ListClientSightings(ctx context.Context, uuid string) ([]domain.ClientSighting, error) {
	var rows []ClientSighting
	if err := s.db.WithContext(ctx).Where("uuid = ?", uuid).Order("last_seen desc").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.ClientSighting, len(rows))
	for i, r := range rows {
		out[i] = domain.ClientSighting{
			UUID:      r.UUID,
			Client:    r.Client,
			FirstSeen: r.FirstSeen,
			LastSeen:  r.LastSeen,
		}
	}
	return out, nil
}
