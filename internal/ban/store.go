// Package ban owns the authoritative ban records. The in-memory index answers
// IsBanned on every login; the repository keeps the records and their
// append-only history durable.
package ban

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"lodestone/internal/domain"
	"lodestone/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	ChannelBans = "bans"

	EventBan     = "ban.issued"
	EventUnban   = "ban.revoked"
	EventExpired = "ban.expired"
)

var (
	ErrAlreadyBanned = errors.New("player is already banned")
	ErrNotBanned     = errors.New("player is not banned")
	ErrExpiryInPast  = errors.New("ban expiry must be in the future")
)

type Publisher interface {
	Publish(channel, msgType string, payload any)
}

type Request struct {
	UUID      string
	Name      string
	Reason    string
	By        string
	ExpiresAt *time.Time
}

// Store keeps the active bans in an index guarded by mu. writeMu serialises
// every state change, including its repository writes, so readers holding
// mu never wait on storage.
type Store struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	active  map[string]domain.Ban
	repo    domain.BanRepository
	pub     Publisher
	now     func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.pub = p }
}

func NewStore(repo domain.BanRepository, opts ...Option) *Store {
	s := &Store{
		active: make(map[string]domain.Ban),
		repo:   repo,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Load replaces the in-memory index with the active bans in the repository.
func (s *Store) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	bans, err := s.repo.ListActiveBans(ctx)
	if err != nil {
		return fmt.Errorf("loading active bans: %w", err)
	}

	index := make(map[string]domain.Ban, len(bans))
	for _, b := range bans {
		index[key(b.UUID)] = b
	}

	s.mu.Lock()
	s.active = index
	s.mu.Unlock()

	log.Info().Int("count", len(bans)).Msg("active bans loaded")
	return nil
}

func (s *Store) lookup(k string) (domain.Ban, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.active[k]
	return b, ok
}

func (s *Store) setActive(k string, b domain.Ban) {
	s.mu.Lock()
	s.active[k] = b
	s.mu.Unlock()
}

func (s *Store) removeActive(k string) {
	s.mu.Lock()
	delete(s.active, k)
	s.mu.Unlock()
}

// Ban inserts an active record unless one is already in force. Writers are
// serialised by writeMu, so concurrent bans of the same player produce exactly
// one winner; the index lock is only taken around map access.
func (s *Store) Ban(ctx context.Context, req Request) (domain.Ban, error) {
	k := key(req.UUID)
	by := req.By
	if by == "" {
		by = domain.OperatorActor
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	now := s.now()

	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return domain.Ban{}, ErrExpiryInPast
	}

	if existing, ok := s.lookup(k); ok {
		if existing.InForce(now) {
			return existing, ErrAlreadyBanned
		}
		s.expireLocked(ctx, existing, now)
	}

	b := domain.Ban{
		UUID:      k,
		Name:      req.Name,
		Reason:    req.Reason,
		By:        by,
		IssuedAt:  now,
		ExpiresAt: req.ExpiresAt,
		Active:    true,
	}
	if err := s.repo.SaveBan(ctx, b); err != nil {
		return domain.Ban{}, fmt.Errorf("saving ban: %w", err)
	}
	s.setActive(k, b)
	s.appendHistory(ctx, b, domain.BanActionBan, by, now)

	metrics.BanTransitionsTotal.WithLabelValues(domain.BanActionBan, actorKind(by)).Inc()
	s.publish(EventBan, b)
	log.Info().Str("uuid", b.UUID).Str("name", b.Name).Str("by", by).Str("reason", b.Reason).Msg("player banned")
	return b, nil
}

// Unban deactivates the ban in force for id. An expired record is treated as
// not banned.
func (s *Store) Unban(ctx context.Context, id, actor string) (domain.Ban, error) {
	k := key(id)
	if actor == "" {
		actor = domain.OperatorActor
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	now := s.now()

	existing, ok := s.lookup(k)
	if !ok {
		return domain.Ban{}, ErrNotBanned
	}
	if !existing.InForce(now) {
		s.expireLocked(ctx, existing, now)
		return domain.Ban{}, ErrNotBanned
	}

	if err := s.repo.DeactivateBan(ctx, k); err != nil {
		return domain.Ban{}, fmt.Errorf("deactivating ban: %w", err)
	}
	s.removeActive(k)
	existing.Active = false
	s.appendHistory(ctx, existing, domain.BanActionUnban, actor, now)

	metrics.BanTransitionsTotal.WithLabelValues(domain.BanActionUnban, actorKind(actor)).Inc()
	s.publish(EventUnban, existing)
	log.Info().Str("uuid", existing.UUID).Str("by", actor).Msg("player unbanned")
	return existing, nil
}

// IsBanned answers from memory only and never waits on the repository.
func (s *Store) IsBanned(id string) (domain.Ban, bool) {
	b, ok := s.lookup(key(id))
	if !ok || !b.InForce(s.now()) {
		return domain.Ban{}, false
	}
	return b, true
}

// List returns the bans in force, newest first.
func (s *Store) List() []domain.Ban {
	now := s.now()
	s.mu.RLock()
	out := make([]domain.Ban, 0, len(s.active))
	for _, b := range s.active {
		if b.InForce(now) {
			out = append(out, b)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out
}

func (s *Store) Count() int {
	return len(s.List())
}

func (s *Store) History(ctx context.Context, id string) ([]domain.BanHistoryEntry, error) {
	return s.repo.ListBanHistory(ctx, key(id))
}

// TouchName refreshes the display name stored on an active ban.
func (s *Store) TouchName(ctx context.Context, id, name string) {
	if name == "" {
		return
	}
	k := key(id)

	if b, ok := s.lookup(k); !ok || b.Name == name {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	b, ok := s.lookup(k)
	if !ok || b.Name == name {
		return
	}
	b.Name = name
	if err := s.repo.SaveBan(ctx, b); err != nil {
		log.Warn().Err(err).Str("uuid", k).Msg("failed to refresh banned player name")
		return
	}
	s.setActive(k, b)
}

// ExpireDue deactivates every active ban whose expiry is not after now, as
// the system actor. It returns how many were expired.
func (s *Store) ExpireDue(ctx context.Context, now time.Time) int {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	var due []domain.Ban
	for _, b := range s.active {
		if b.Expired(now) {
			due = append(due, b)
		}
	}
	s.mu.RUnlock()

	for _, b := range due {
		s.expireLocked(ctx, b, now)
	}
	return len(due)
}

// RunSweeper calls ExpireDue every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.ExpireDue(ctx, s.now()); n > 0 {
				log.Info().Int("count", n).Msg("expired bans swept")
			}
		}
	}
}

// expireLocked must be called with s.writeMu held.
func (s *Store) expireLocked(ctx context.Context, b domain.Ban, now time.Time) {
	if err := s.repo.DeactivateBan(ctx, b.UUID); err != nil {
		log.Error().Err(err).Str("uuid", b.UUID).Msg("failed to expire ban")
		return
	}
	s.removeActive(key(b.UUID))
	b.Active = false
	s.appendHistory(ctx, b, domain.BanActionUnban, domain.SystemActor, now)

	metrics.BanTransitionsTotal.WithLabelValues(domain.BanActionUnban, actorKind(domain.SystemActor)).Inc()
	s.publish(EventExpired, b)
}

func (s *Store) appendHistory(ctx context.Context, b domain.Ban, action, actor string, at time.Time) {
	entry := domain.BanHistoryEntry{
		ID:     uuid.NewString(),
		UUID:   b.UUID,
		Name:   b.Name,
		Action: action,
		Actor:  actor,
		Reason: b.Reason,
		At:     at,
	}
	if err := s.repo.AppendBanHistory(ctx, entry); err != nil {
		log.Error().Err(err).Str("uuid", b.UUID).Str("action", action).Msg("failed to append ban history")
	}
}

func (s *Store) publish(msgType string, payload any) {
	if s.pub != nil {
		s.pub.Publish(ChannelBans, msgType, payload)
	}
}

func actorKind(actor string) string {
	if actor == domain.SystemActor {
		return "system"
	}
	return "operator"
}
