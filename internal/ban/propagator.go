package ban

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lodestone/internal/domain"

	"github.com/rs/zerolog/log"
)

type SessionLookup interface {
	Get(uuid string) (domain.Session, bool)
}

type ServerDirectory interface {
	Get(name string) (domain.ServerRecord, bool)
	ListByType(types ...string) []domain.ServerRecord
}

// Notifier delivers enforcement calls to a game server.
type Notifier interface {
	Disconnect(ctx context.Context, srv domain.ServerRecord, uuid, reason string) error
	NotifyBan(ctx context.Context, srv domain.ServerRecord, b domain.Ban) error
}

// Spawner runs a detached task; see task.Group.
type Spawner interface {
	Go(name string, timeout time.Duration, fn func(ctx context.Context) error)
}

type PropagatorConfig struct {
	FirstContactTypes []string
	ProxyTypes        []string
	Timeout           time.Duration
}

// Propagator pushes ban enforcement to servers. Every call is a detached
// task; none of them can fail or delay the ban itself.
type Propagator struct {
	sessions SessionLookup
	servers  ServerDirectory
	notifier Notifier
	spawner  Spawner
	cfg      PropagatorConfig
}

func NewPropagator(sessions SessionLookup, servers ServerDirectory, notifier Notifier, spawner Spawner, cfg PropagatorConfig) *Propagator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 4 * time.Second
	}
	return &Propagator{
		sessions: sessions,
		servers:  servers,
		notifier: notifier,
		spawner:  spawner,
		cfg:      cfg,
	}
}

// OnBan disconnects the player from the server holding its session and from
// every proxy, then warns the first-contact servers.
func (p *Propagator) OnBan(b domain.Ban) {
	reason := KickMessage(b)
	for _, srv := range p.kickTargets(b.UUID) {
		p.spawner.Go("disconnect:"+srv.Name, p.cfg.Timeout, func(ctx context.Context) error {
			return p.notifier.Disconnect(ctx, srv, b.UUID, reason)
		})
	}
	p.notifyFirstContact(b)
}

// OnLookup is called when a login check finds the player banned.
func (p *Propagator) OnLookup(b domain.Ban) {
	p.notifyFirstContact(b)
}

func (p *Propagator) notifyFirstContact(b domain.Ban) {
	if len(p.cfg.FirstContactTypes) == 0 {
		return
	}
	for _, srv := range p.servers.ListByType(p.cfg.FirstContactTypes...) {
		p.spawner.Go("ban-notify:"+srv.Name, p.cfg.Timeout, func(ctx context.Context) error {
			return p.notifier.NotifyBan(ctx, srv, b)
		})
	}
}

func (p *Propagator) kickTargets(id string) []domain.ServerRecord {
	seen := make(map[string]struct{})
	var out []domain.ServerRecord

	add := func(srv domain.ServerRecord) {
		k := strings.ToLower(srv.Name)
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out = append(out, srv)
	}

	if sess, ok := p.sessions.Get(id); ok && sess.CurrentServer != "" {
		if srv, ok := p.servers.Get(sess.CurrentServer); ok {
			add(srv)
		} else {
			log.Debug().Str("uuid", id).Str("server", sess.CurrentServer).Msg("banned player's server is not registered")
		}
	}
	if len(p.cfg.ProxyTypes) > 0 {
		for _, srv := range p.servers.ListByType(p.cfg.ProxyTypes...) {
			add(srv)
		}
	}
	return out
}

// KickMessage is the text shown to a disconnected player.
func KickMessage(b domain.Ban) string {
	reason := b.Reason
	if reason == "" {
		reason = "No reason given"
	}
	if b.ExpiresAt == nil {
		return fmt.Sprintf("You are banned: %s", reason)
	}
	return fmt.Sprintf("You are banned until %s: %s", b.ExpiresAt.UTC().Format(time.RFC1123), reason)
}
