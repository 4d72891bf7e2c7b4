package resync

import (
	"context"
	"sync"
	"testing"
	"time"

	"lodestone/internal/domain"

	"github.com/stretchr/testify/assert"
)

type fixedServers []domain.ServerRecord

func (f fixedServers) List() []domain.ServerRecord { return f }

type fakeController struct {
	mu        sync.Mutex
	calls     []string
	slowOn    string
	announced time.Time
	requested time.Time
}

func (c *fakeController) AnnounceRestart(ctx context.Context, srv domain.ServerRecord) error {
	if srv.Name == c.slowOn {
		<-ctx.Done()
		return ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "announce:"+srv.Name)
	c.announced = time.Now()
	return nil
}

func (c *fakeController) RequestFullSync(ctx context.Context, srv domain.ServerRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "sync:"+srv.Name)
	c.requested = time.Now()
	return nil
}

func TestResyncSurvivesAnnounceTimeout(t *testing.T) {
	servers := fixedServers{
		{Name: "hub", Status: domain.StatusOnline},
		{Name: "anarchy", Status: domain.StatusOffline},
	}
	ctl := &fakeController{slowOn: "anarchy"}

	start := time.Now()
	rep := New(servers, ctl, 10*time.Millisecond, 50*time.Millisecond).Run(context.Background())

	assert.Equal(t, Report{Announced: 1, AnnounceFailed: 1, Requested: 2, RequestFailed: 0}, rep)
	assert.ElementsMatch(t, []string{"announce:hub", "sync:hub", "sync:anarchy"}, ctl.calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResyncWaitsDelayBetweenSteps(t *testing.T) {
	ctl := &fakeController{}
	New(fixedServers{{Name: "hub"}}, ctl, 40*time.Millisecond, time.Second).Run(context.Background())

	assert.GreaterOrEqual(t, ctl.requested.Sub(ctl.announced), 40*time.Millisecond)
}

func TestResyncCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ctl := &fakeController{}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	rep := New(fixedServers{{Name: "hub"}}, ctl, time.Minute, time.Second).Run(ctx)

	assert.Equal(t, 1, rep.Announced)
	assert.Zero(t, rep.Requested)
}

func TestResyncNoServers(t *testing.T) {
	rep := New(fixedServers{}, &fakeController{}, 0, time.Second).Run(context.Background())
	assert.Equal(t, Report{}, rep)
}
