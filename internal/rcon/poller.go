package rcon

import (
	"context"
	"sort"
	"sync"
	"time"

	"lodestone/internal/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	ChannelServers = "servers"
	EventPoll      = "rcon.poll"
	listCommand    = "list"
)

type Target struct {
	Name     string
	Address  string
	Password string
}

type Result struct {
	Server  string   `json:"server"`
	Players []string `json:"players"`
}

// LoadReporter receives the player count observed for a named server.
type LoadReporter interface {
	ObserveLoad(name string, players int) error
}

type Publisher interface {
	Publish(channel, msgType string, payload any)
}

// Poller queries every target concurrently and keeps only the successes.
type Poller struct {
	targets  []Target
	opts     Options
	reporter LoadReporter
	pub      Publisher
	query    func(ctx context.Context, addr, password, cmd string, opts Options) (string, error)
}

func NewPoller(targets []Target, opts Options, reporter LoadReporter, pub Publisher) *Poller {
	return &Poller{
		targets:  targets,
		opts:     opts.withDefaults(),
		reporter: reporter,
		pub:      pub,
		query:    Query,
	}
}

// Poll runs `list` against all targets. A failing target never delays or
// fails the others; it is logged and left out of the result.
func (p *Poller) Poll(ctx context.Context) []Result {
	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(p.targets))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range p.targets {
		g.Go(func() error {
			text, err := p.query(gctx, t.Address, t.Password, listCommand, p.opts)
			metrics.RCONPollsTotal.WithLabelValues(t.Name, metrics.Result(err)).Inc()
			if err != nil {
				log.Warn().Err(err).Str("target", t.Name).Str("addr", t.Address).Msg("rcon poll failed")
				return nil
			}

			mu.Lock()
			results = append(results, Result{Server: t.Name, Players: ParseList(text)})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Server < results[j].Server })
	return results
}

// Run polls every interval until ctx is done, reporting load to the registry
// and publishing each aggregate on the servers channel.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	if len(p.targets) == 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	results := p.Poll(ctx)

	for _, r := range results {
		if p.reporter == nil {
			break
		}
		if err := p.reporter.ObserveLoad(r.Server, len(r.Players)); err != nil {
			log.Debug().Err(err).Str("server", r.Server).Msg("rcon result for unregistered server")
		}
	}

	if p.pub != nil {
		p.pub.Publish(ChannelServers, EventPoll, results)
	}
}
