// Package app owns every long-lived component of the coordinator. Nothing
// below it keeps process-wide state; handlers receive the container.
package app

import (
	"context"
	"fmt"

	"lodestone/internal/ban"
	"lodestone/internal/config"
	"lodestone/internal/control"
	"lodestone/internal/rcon"
	"lodestone/internal/registry"
	"lodestone/internal/resync"
	"lodestone/internal/session"
	"lodestone/internal/snapshot"
	"lodestone/internal/storage"
	"lodestone/internal/sysinfo"
	"lodestone/internal/task"
	"lodestone/internal/ws"

	"github.com/rs/zerolog/log"
)

const LogChannelPrefix = "logs/"

type Container struct {
	Config     *config.Config
	Store      *storage.GormStore
	Hub        *ws.Hub
	Registry   *registry.Registry
	Sessions   *session.Store
	Bans       *ban.Store
	Propagator *ban.Propagator
	Tasks      *task.Group
	Control    *control.Client
	Poller     *rcon.Poller
	Resyncer   *resync.Resyncer
	Snapshots  *snapshot.Writer
	Probe      *sysinfo.Probe
}

// New opens storage and builds the stores. Detached tasks live until ctx is
// cancelled. The hub is started; background loops are left to the caller.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	store, err := storage.NewGormStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	hub := ws.NewHub(ws.Options{
		SendBuffer:      cfg.Fanout.SendBuffer,
		PingInterval:    cfg.Fanout.PingInterval,
		HistorySize:     cfg.Fanout.HistorySize,
		HistoryPrefixes: []string{LogChannelPrefix},
	})
	go hub.Run()

	reg := registry.New(cfg.Registry.LivenessThreshold,
		registry.WithPublisher(hub),
		registry.WithAllowList(cfg.Registry.AllowedServers),
	)
	if n := reg.Seed(seedRequests(cfg.Servers)); n > 0 {
		log.Info().Int("count", n).Msg("seeded servers from configuration")
	}

	sessions := session.NewStore(
		session.WithPublisher(hub),
		session.WithProfileRecorder(store),
	)

	bans := ban.NewStore(store, ban.WithPublisher(hub))
	if err := bans.Load(ctx); err != nil {
		hub.Stop()
		store.Close()
		return nil, err
	}

	controlToken := cfg.Control.Token
	if controlToken == "" {
		controlToken = cfg.HTTP.Token
	}
	ctl := control.NewClient(cfg.Control.Timeout, controlToken, cfg.Control.PathPrefix)

	tasks := task.NewGroup(ctx)
	propagator := ban.NewPropagator(sessions, reg, ctl, tasks, ban.PropagatorConfig{
		FirstContactTypes: cfg.Ban.FirstContactTypes,
		ProxyTypes:        cfg.Ban.ProxyTypes,
		Timeout:           cfg.Control.Timeout,
	})

	targets := make([]rcon.Target, 0, len(cfg.RCON.Targets))
	for _, t := range cfg.RCON.Targets {
		targets = append(targets, rcon.Target{Name: t.Name, Address: t.Address, Password: t.Password})
	}
	poller := rcon.NewPoller(targets, rcon.Options{
		DialTimeout: cfg.RCON.DialTimeout,
		ReadTimeout: cfg.RCON.ReadTimeout,
	}, reg, hub)

	probe, err := sysinfo.NewProbe()
	if err != nil {
		log.Warn().Err(err).Msg("process stats unavailable")
	}

	return &Container{
		Config:     cfg,
		Store:      store,
		Hub:        hub,
		Registry:   reg,
		Sessions:   sessions,
		Bans:       bans,
		Propagator: propagator,
		Tasks:      tasks,
		Control:    ctl,
		Poller:     poller,
		Resyncer:   resync.New(reg, ctl, cfg.Resync.Delay, cfg.Resync.Timeout),
		Snapshots:  snapshot.NewWriter(cfg.Snapshot.Path, reg, sessions),
		Probe:      probe,
	}, nil
}

// Close waits for detached tasks, stops the hub and closes storage. The
// context given to New should be cancelled first.
func (c *Container) Close() error {
	c.Tasks.Wait()
	c.Hub.Stop()
	return c.Store.Close()
}

func seedRequests(seeds []config.SeedServer) []registry.RegisterRequest {
	reqs := make([]registry.RegisterRequest, 0, len(seeds))
	for _, s := range seeds {
		reqs = append(reqs, registry.RegisterRequest{
			Name:       s.Name,
			Type:       s.Type,
			Host:       s.Host,
			Port:       s.Port,
			ControlURL: s.ControlURL,
		})
	}
	return reqs
}
