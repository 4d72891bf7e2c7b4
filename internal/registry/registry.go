// Package registry keeps the table of known game servers. Liveness is not
// stored: a record is online while its last heartbeat is younger than the
// configured threshold.
package registry

import (
	"errors"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"lodestone/internal/domain"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

const (
	ChannelServers = "servers"

	EventRegister   = "server.register"
	EventHeartbeat  = "server.heartbeat"
	EventUnregister = "server.unregister"

	DefaultLivenessThreshold = 60 * time.Second
)

var (
	ErrNotFound   = errors.New("server not registered")
	ErrNotAllowed = errors.New("server name not in allow-list")
)

type Publisher interface {
	Publish(channel, msgType string, payload any)
}

type RegisterRequest struct {
	Name           string
	Type           string
	Host           string
	Port           int
	MaxPlayers     int
	CurrentPlayers int
	Version        string
	ControlURL     string
	Meta           map[string]any
}

// HeartbeatUpdate carries the optional fields of a heartbeat; nil means
// "not provided".
type HeartbeatUpdate struct {
	CurrentPlayers *int
	MaxPlayers     *int
	Version        *string
	Meta           map[string]any
	Status         *string
}

type Registry struct {
	mu        sync.RWMutex
	servers   map[string]*domain.ServerRecord
	threshold time.Duration
	allowed   map[uint64][]string
	now       func() time.Time
	pub       Publisher
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithPublisher(p Publisher) Option {
	return func(r *Registry) { r.pub = p }
}

// WithAllowList restricts registration to the given names. An empty list
// allows everything.
func WithAllowList(names []string) Option {
	return func(r *Registry) {
		if len(names) == 0 {
			return
		}
		r.allowed = make(map[uint64][]string, len(names))
		for _, n := range names {
			key := normalize(n)
			h := xxhash.Sum64String(key)
			r.allowed[h] = append(r.allowed[h], key)
		}
	}
}

func New(threshold time.Duration, opts ...Option) *Registry {
	if threshold <= 0 {
		threshold = DefaultLivenessThreshold
	}
	r := &Registry{
		servers:   make(map[string]*domain.ServerRecord),
		threshold: threshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) isAllowed(key string) bool {
	if r.allowed == nil {
		return true
	}
	// a hash hit only narrows the bucket; the name must still match exactly
	for _, n := range r.allowed[xxhash.Sum64String(key)] {
		if n == key {
			return true
		}
	}
	return false
}

// Register creates the record or overwrites the mutable fields of the
// existing one, and marks it online.
func (r *Registry) Register(req RegisterRequest) (domain.ServerRecord, error) {
	key := normalize(req.Name)
	if !r.isAllowed(key) {
		return domain.ServerRecord{}, ErrNotAllowed
	}

	r.mu.Lock()
	now := r.now()
	rec, ok := r.servers[key]
	if !ok {
		rec = &domain.ServerRecord{
			ID:        uuid.NewString(),
			FirstSeen: now,
		}
		r.servers[key] = rec
	}

	rec.Name = strings.TrimSpace(req.Name)
	rec.Type = req.Type
	rec.Host = req.Host
	rec.Port = req.Port
	rec.MaxPlayers = req.MaxPlayers
	rec.CurrentPlayers = req.CurrentPlayers
	rec.Version = req.Version
	if req.ControlURL != "" {
		rec.ControlURL = req.ControlURL
	}
	if req.Meta != nil {
		rec.Meta = maps.Clone(req.Meta)
	}
	rec.ReportedStatus = ""
	rec.LastHeartbeat = now

	out := r.view(rec, now)
	r.mu.Unlock()

	r.publish(EventRegister, out)
	return out, nil
}

// Heartbeat refreshes a known record. Unknown names return ErrNotFound; the
// sender is expected to register again.
func (r *Registry) Heartbeat(name string, upd HeartbeatUpdate) (domain.ServerRecord, error) {
	r.mu.Lock()
	rec, ok := r.servers[normalize(name)]
	if !ok {
		r.mu.Unlock()
		return domain.ServerRecord{}, ErrNotFound
	}

	now := r.now()
	rec.LastHeartbeat = now
	if upd.CurrentPlayers != nil {
		rec.CurrentPlayers = *upd.CurrentPlayers
	}
	if upd.MaxPlayers != nil {
		rec.MaxPlayers = *upd.MaxPlayers
	}
	if upd.Version != nil {
		rec.Version = *upd.Version
	}
	if upd.Status != nil {
		rec.ReportedStatus = *upd.Status
	}
	if len(upd.Meta) > 0 {
		if rec.Meta == nil {
			rec.Meta = make(map[string]any, len(upd.Meta))
		}
		maps.Copy(rec.Meta, upd.Meta)
	}

	out := r.view(rec, now)
	r.mu.Unlock()

	r.publish(EventHeartbeat, out)
	return out, nil
}

// ObserveLoad records a player count seen out of band (RCON) as a heartbeat.
func (r *Registry) ObserveLoad(name string, players int) error {
	_, err := r.Heartbeat(name, HeartbeatUpdate{CurrentPlayers: &players})
	return err
}

func (r *Registry) Unregister(name string) bool {
	key := normalize(name)

	r.mu.Lock()
	rec, ok := r.servers[key]
	if ok {
		delete(r.servers, key)
	}
	r.mu.Unlock()

	if ok {
		r.publish(EventUnregister, map[string]string{"name": rec.Name})
	}
	return ok
}

// Seed adds records for servers that have not registered yet. They start
// with a zero heartbeat, so they read as offline until they check in.
func (r *Registry) Seed(reqs []RegisterRequest) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	added := 0
	for _, req := range reqs {
		key := normalize(req.Name)
		if key == "" {
			continue
		}
		if _, exists := r.servers[key]; exists {
			continue
		}
		r.servers[key] = &domain.ServerRecord{
			ID:         uuid.NewString(),
			Name:       strings.TrimSpace(req.Name),
			Type:       req.Type,
			Host:       req.Host,
			Port:       req.Port,
			ControlURL: req.ControlURL,
			MaxPlayers: req.MaxPlayers,
			Meta:       maps.Clone(req.Meta),
			FirstSeen:  now,
		}
		added++
	}
	return added
}

func (r *Registry) Get(name string) (domain.ServerRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.servers[normalize(name)]
	if !ok {
		return domain.ServerRecord{}, false
	}
	return r.view(rec, r.now()), true
}

// List returns every record sorted by name, case-insensitively.
func (r *Registry) List() []domain.ServerRecord {
	r.mu.RLock()
	now := r.now()
	out := make([]domain.ServerRecord, 0, len(r.servers))
	for _, rec := range r.servers {
		out = append(out, r.view(rec, now))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// ListByType returns the records whose type matches any of types,
// case-insensitively, regardless of liveness.
func (r *Registry) ListByType(types ...string) []domain.ServerRecord {
	want := make(map[string]struct{}, len(types))
	for _, t := range types {
		want[normalize(t)] = struct{}{}
	}

	var out []domain.ServerRecord
	for _, rec := range r.List() {
		if _, ok := want[normalize(rec.Type)]; ok {
			out = append(out, rec)
		}
	}
	return out
}

func (r *Registry) Threshold() time.Duration {
	return r.threshold
}

// view copies rec and fills in the computed status. Caller holds r.mu.
func (r *Registry) view(rec *domain.ServerRecord, now time.Time) domain.ServerRecord {
	out := *rec
	out.Meta = maps.Clone(rec.Meta)
	if !rec.LastHeartbeat.IsZero() && now.Sub(rec.LastHeartbeat) < r.threshold {
		out.Status = domain.StatusOnline
	} else {
		out.Status = domain.StatusOffline
	}
	return out
}

func (r *Registry) publish(msgType string, payload any) {
	if r.pub != nil {
		r.pub.Publish(ChannelServers, msgType, payload)
	}
}
