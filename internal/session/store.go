// Package session holds the live player sessions reported by game servers.
// Events are applied in arrival order; the last applied event wins for the
// fields it carries.
package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"lodestone/internal/domain"
	"lodestone/internal/metrics"

	"github.com/rs/zerolog/log"
)

const (
	ChannelSessions = "sessions"

	EventJoin   = "session.join"
	EventSwitch = "session.switch"
	EventLeave  = "session.leave"
	EventSync   = "session.sync"
)

type Publisher interface {
	Publish(channel, msgType string, payload any)
}

// ProfileRecorder persists the long-lived player profile used for "last seen".
type ProfileRecorder interface {
	RecordJoin(ctx context.Context, uuid, name, client, server string, at time.Time) error
	RecordLeave(ctx context.Context, uuid, name, client, server string, at time.Time) error
}

type JoinEvent struct {
	UUID     string
	Name     string
	Client   string
	Server   string
	JoinedAt time.Time
}

// SwitchEvent fields left empty are not applied.
type SwitchEvent struct {
	UUID   string
	Name   string
	Server string
	Client string
}

type LeaveEvent struct {
	UUID   string
	Name   string
	Client string
}

type SyncEntry struct {
	UUID     string
	Name     string
	Client   string
	Server   string
	JoinedAt time.Time
}

type SyncResult struct {
	Server    string `json:"server"`
	Processed int    `json:"processed"`
	Dropped   int    `json:"dropped"`
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	recorder ProfileRecorder
	pub      Publisher
	now      func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.pub = p }
}

func WithProfileRecorder(r ProfileRecorder) Option {
	return func(s *Store) { s.recorder = r }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*domain.Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(uuid string) string {
	return strings.ToLower(strings.TrimSpace(uuid))
}

// Join creates or replaces the session for ev.UUID.
func (s *Store) Join(ctx context.Context, ev JoinEvent) domain.Session {
	now := s.now()
	joinedAt := ev.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = now
	}

	sess := &domain.Session{
		UUID:          key(ev.UUID),
		Name:          ev.Name,
		CurrentServer: ev.Server,
		Client:        ev.Client,
		JoinedAt:      joinedAt,
		UpdatedAt:     now,
	}
	touch(sess, now)

	s.mu.Lock()
	s.sessions[sess.UUID] = sess
	out := *sess
	s.updateGauge()
	s.mu.Unlock()

	s.recordJoin(ctx, out, now)
	s.publish(EventJoin, out)

	log.Debug().Str("uuid", out.UUID).Str("name", out.Name).Str("server", out.CurrentServer).Msg("player joined")
	return out
}

// Switch applies the provided fields to an existing session. Without one, a
// session is only created when both server and client are known; otherwise
// the event is ignored and ok is false.
func (s *Store) Switch(ctx context.Context, ev SwitchEvent) (domain.Session, bool) {
	now := s.now()
	k := key(ev.UUID)

	s.mu.Lock()
	sess, exists := s.sessions[k]
	if !exists {
		if ev.Server == "" || ev.Client == "" {
			s.mu.Unlock()
			return domain.Session{}, false
		}
		sess = &domain.Session{UUID: k, JoinedAt: now}
		s.sessions[k] = sess
	}

	if ev.Name != "" {
		sess.Name = ev.Name
	}
	if ev.Server != "" {
		sess.CurrentServer = ev.Server
	}
	if ev.Client != "" {
		sess.Client = ev.Client
	}
	sess.UpdatedAt = now
	touch(sess, now)

	out := *sess
	s.updateGauge()
	s.mu.Unlock()

	if !exists {
		s.recordJoin(ctx, out, now)
	}
	s.publish(EventSwitch, out)
	return out, true
}

// Leave removes the session and forwards its last known client and server
// to the profile recorder. The returned snapshot is the state at removal.
func (s *Store) Leave(ctx context.Context, ev LeaveEvent) (domain.Session, bool) {
	now := s.now()
	k := key(ev.UUID)

	s.mu.Lock()
	sess, exists := s.sessions[k]
	if exists {
		delete(s.sessions, k)
	}
	s.updateGauge()
	s.mu.Unlock()

	var out domain.Session
	if exists {
		out = *sess
	} else {
		out = domain.Session{UUID: k}
	}
	if ev.Name != "" {
		out.Name = ev.Name
	}
	if ev.Client != "" {
		out.Client = ev.Client
	}
	out.UpdatedAt = now
	touch(&out, now)

	if s.recorder != nil {
		if err := s.recorder.RecordLeave(ctx, out.UUID, out.Name, out.Client, out.CurrentServer, now); err != nil {
			log.Error().Err(err).Str("uuid", out.UUID).Msg("failed to record player leave")
		}
	}

	if exists {
		s.publish(EventLeave, out)
		log.Debug().Str("uuid", out.UUID).Str("name", out.Name).Msg("player left")
	}
	return out, exists
}

// FullSync treats every entry as a join on server (unless the entry names
// its own) and drops sessions on server that the roster no longer lists.
// Applying the same roster twice yields the same sessions.
func (s *Store) FullSync(ctx context.Context, server string, entries []SyncEntry) SyncResult {
	now := s.now()
	roster := make(map[string]struct{}, len(entries))
	var joined []domain.Session
	var dropped []domain.Session

	s.mu.Lock()
	for _, e := range entries {
		k := key(e.UUID)
		if k == "" {
			continue
		}
		roster[k] = struct{}{}

		target := e.Server
		if target == "" {
			target = server
		}

		prev, existed := s.sessions[k]
		joinedAt := e.JoinedAt
		if joinedAt.IsZero() {
			if existed && strings.EqualFold(prev.CurrentServer, target) {
				joinedAt = prev.JoinedAt
			} else {
				joinedAt = now
			}
		}

		sess := &domain.Session{
			UUID:          k,
			Name:          e.Name,
			CurrentServer: target,
			Client:        e.Client,
			JoinedAt:      joinedAt,
			UpdatedAt:     now,
		}
		touch(sess, now)
		s.sessions[k] = sess

		if !existed {
			joined = append(joined, *sess)
		}
	}

	for k, sess := range s.sessions {
		if _, listed := roster[k]; listed {
			continue
		}
		if strings.EqualFold(sess.CurrentServer, server) {
			delete(s.sessions, k)
			dropped = append(dropped, *sess)
		}
	}
	s.updateGauge()
	s.mu.Unlock()

	for _, sess := range joined {
		s.recordJoin(ctx, sess, now)
	}
	for _, sess := range dropped {
		if s.recorder != nil {
			if err := s.recorder.RecordLeave(ctx, sess.UUID, sess.Name, sess.Client, sess.CurrentServer, now); err != nil {
				log.Error().Err(err).Str("uuid", sess.UUID).Msg("failed to record dropped session")
			}
		}
		s.publish(EventLeave, sess)
	}

	res := SyncResult{Server: server, Processed: len(roster), Dropped: len(dropped)}
	s.publish(EventSync, res)

	log.Info().Str("server", server).Int("processed", res.Processed).Int("dropped", res.Dropped).Msg("full sync applied")
	return res
}

func (s *Store) Get(uuid string) (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key(uuid)]
	if !ok {
		return domain.Session{}, false
	}
	return *sess, true
}

// List returns all sessions sorted by player name.
func (s *Store) List() []domain.Session {
	s.mu.RLock()
	out := make([]domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].UUID < out[j].UUID
	})
	return out
}

func (s *Store) OnServer(server string) []domain.Session {
	var out []domain.Session
	for _, sess := range s.List() {
		if strings.EqualFold(sess.CurrentServer, server) {
			out = append(out, sess)
		}
	}
	return out
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// updateGauge must be called with s.mu held.
func (s *Store) updateGauge() {
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
}

func (s *Store) recordJoin(ctx context.Context, sess domain.Session, at time.Time) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordJoin(ctx, sess.UUID, sess.Name, sess.Client, sess.CurrentServer, at); err != nil {
		log.Error().Err(err).Str("uuid", sess.UUID).Msg("failed to record player join")
	}
}

func (s *Store) publish(msgType string, payload any) {
	if s.pub != nil {
		s.pub.Publish(ChannelSessions, msgType, payload)
	}
}

// touch sets LastActiveAt to the latest timestamp known for the session.
func touch(sess *domain.Session, at time.Time) {
	latest := sess.JoinedAt
	if sess.UpdatedAt.After(latest) {
		latest = sess.UpdatedAt
	}
	if at.After(latest) {
		latest = at
	}
	if sess.LastActiveAt.After(latest) {
		latest = sess.LastActiveAt
	}
	sess.LastActiveAt = latest
}
