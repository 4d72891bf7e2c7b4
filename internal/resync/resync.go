// Package resync rebuilds the volatile session table after a coordinator
// restart by asking every known server to resend its roster.
package resync

import (
	"context"
	"sync/atomic"
	"time"

	"lodestone/internal/domain"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type ServerLister interface {
	List() []domain.ServerRecord
}

type Controller interface {
	AnnounceRestart(ctx context.Context, srv domain.ServerRecord) error
	RequestFullSync(ctx context.Context, srv domain.ServerRecord) error
}

type Report struct {
	Announced      int `json:"announced"`
	AnnounceFailed int `json:"announceFailed"`
	Requested      int `json:"requested"`
	RequestFailed  int `json:"requestFailed"`
}

type Resyncer struct {
	servers ServerLister
	ctl     Controller
	delay   time.Duration
	timeout time.Duration
}

func New(servers ServerLister, ctl Controller, delay, timeout time.Duration) *Resyncer {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &Resyncer{servers: servers, ctl: ctl, delay: delay, timeout: timeout}
}

// Run announces the restart to every registered server, online or not,
// waits for the configured delay and then requests a full roster from every
// registered server. Rosters come back as full-sync events; Run does not
// wait for them. Server failures are counted, never returned.
func (r *Resyncer) Run(ctx context.Context) Report {
	var rep Report

	announced := r.servers.List()
	rep.Announced, rep.AnnounceFailed = r.fanOut(ctx, "reconnect-announce", announced, r.ctl.AnnounceRestart)

	if r.delay > 0 {
		timer := time.NewTimer(r.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Warn().Msg("resync cancelled before roster request")
			return rep
		case <-timer.C:
		}
	}

	rep.Requested, rep.RequestFailed = r.fanOut(ctx, "request-full-sync", r.servers.List(), r.ctl.RequestFullSync)

	log.Info().
		Int("announced", rep.Announced).
		Int("announce_failed", rep.AnnounceFailed).
		Int("requested", rep.Requested).
		Int("request_failed", rep.RequestFailed).
		Msg("startup resync finished")
	return rep
}

func (r *Resyncer) fanOut(
	ctx context.Context,
	step string,
	servers []domain.ServerRecord,
	call func(context.Context, domain.ServerRecord) error,
) (ok, failed int) {
	var okCount, failCount atomic.Int32
	var g errgroup.Group

	for _, srv := range servers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			if err := call(cctx, srv); err != nil {
				failCount.Add(1)
				log.Warn().Err(err).Str("server", srv.Name).Str("step", step).Msg("resync call failed")
				return nil
			}
			okCount.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(okCount.Load()), int(failCount.Load())
}
