package registry

import (
	"sync"
	"testing"
	"time"

	"lodestone/internal/domain"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(channel, msgType string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, channel+"/"+msgType)
}

func intPtr(v int) *int { return &v }

func TestReRegisterUpdatesInPlace(t *testing.T) {
	r := New(time.Minute)

	first, err := r.Register(RegisterRequest{Name: "Hub", Type: "hub", Host: "127.0.0.1", Port: 25566, MaxPlayers: 50})
	require.NoError(t, err)

	second, err := r.Register(RegisterRequest{Name: "hub", Type: "hub", Host: "10.0.0.5", Port: 25567, MaxPlayers: 80})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.FirstSeen, second.FirstSeen)
	assert.Equal(t, "10.0.0.5", second.Host)
	assert.Equal(t, 80, second.MaxPlayers)
	assert.Len(t, r.List(), 1)
}

func TestLivenessComputedOnRead(t *testing.T) {
	clock := newFakeClock()
	r := New(60*time.Second, WithClock(clock.Now))

	_, err := r.Register(RegisterRequest{Name: "hub", Host: "127.0.0.1", Port: 25566})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOnline, r.List()[0].Status)

	clock.Advance(120 * time.Second)
	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "hub", list[0].Name)
	assert.Equal(t, domain.StatusOffline, list[0].Status)

	_, err = r.Heartbeat("hub", HeartbeatUpdate{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOnline, r.List()[0].Status)
}

func TestLivenessBoundary(t *testing.T) {
	clock := newFakeClock()
	r := New(60*time.Second, WithClock(clock.Now))
	_, err := r.Register(RegisterRequest{Name: "hub"})
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	rec, _ := r.Get("hub")
	assert.True(t, rec.Online())

	clock.Advance(time.Second)
	rec, _ = r.Get("hub")
	assert.False(t, rec.Online())
}

func TestHeartbeatUnknownServer(t *testing.T) {
	r := New(time.Minute)

	_, err := r.Heartbeat("ghost", HeartbeatUpdate{CurrentPlayers: intPtr(3)})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, r.List())
}

func TestHeartbeatMergesFields(t *testing.T) {
	r := New(time.Minute)
	_, err := r.Register(RegisterRequest{
		Name:       "anarchy",
		MaxPlayers: 100,
		Version:    "1.20.4",
		Meta:       map[string]any{"region": "eu", "tps": 20},
	})
	require.NoError(t, err)

	status := "draining"
	rec, err := r.Heartbeat("ANARCHY", HeartbeatUpdate{
		CurrentPlayers: intPtr(12),
		Meta:           map[string]any{"tps": 19.5},
		Status:         &status,
	})
	require.NoError(t, err)

	assert.Equal(t, 12, rec.CurrentPlayers)
	assert.Equal(t, 100, rec.MaxPlayers)
	assert.Equal(t, "1.20.4", rec.Version)
	assert.Equal(t, "draining", rec.ReportedStatus)
	assert.Equal(t, map[string]any{"region": "eu", "tps": 19.5}, rec.Meta)
}

func TestReturnedMetaIsACopy(t *testing.T) {
	r := New(time.Minute)
	rec, err := r.Register(RegisterRequest{Name: "hub", Meta: map[string]any{"a": 1}})
	require.NoError(t, err)

	rec.Meta["a"] = 2
	got, _ := r.Get("hub")
	assert.Equal(t, 1, got.Meta["a"])
}

func TestUnregister(t *testing.T) {
	pub := &recordingPublisher{}
	r := New(time.Minute, WithPublisher(pub))
	_, err := r.Register(RegisterRequest{Name: "hub"})
	require.NoError(t, err)

	assert.True(t, r.Unregister("HUB"))
	assert.False(t, r.Unregister("hub"))
	assert.Empty(t, r.List())
	assert.Equal(t, []string{"servers/server.register", "servers/server.unregister"}, pub.events)
}

func TestListSortedCaseInsensitive(t *testing.T) {
	r := New(time.Minute)
	for _, n := range []string{"proxy", "Anarchy", "hub"} {
		_, err := r.Register(RegisterRequest{Name: n})
		require.NoError(t, err)
	}

	var names []string
	for _, rec := range r.List() {
		names = append(names, rec.Name)
	}
	assert.Equal(t, []string{"Anarchy", "hub", "proxy"}, names)
}

func TestAllowList(t *testing.T) {
	r := New(time.Minute, WithAllowList([]string{"Hub", "proxy"}))

	_, err := r.Register(RegisterRequest{Name: "hub"})
	assert.NoError(t, err)

	_, err = r.Register(RegisterRequest{Name: "rogue"})
	assert.ErrorIs(t, err, ErrNotAllowed)
	assert.Len(t, r.List(), 1)
}

func TestAllowListRequiresExactName(t *testing.T) {
	r := New(time.Minute, WithAllowList([]string{"hub"}))

	// force "rogue" into the same bucket as an allowed name
	h := xxhash.Sum64String("rogue")
	r.allowed[h] = append(r.allowed[h], "hub")

	_, err := r.Register(RegisterRequest{Name: "rogue"})
	assert.ErrorIs(t, err, ErrNotAllowed)

	_, err = r.Register(RegisterRequest{Name: " HUB "})
	assert.NoError(t, err)
	assert.Len(t, r.List(), 1)
}

func TestSeedStartsOfflineAndKeepsExisting(t *testing.T) {
	r := New(time.Minute)
	_, err := r.Register(RegisterRequest{Name: "hub", Host: "10.0.0.2"})
	require.NoError(t, err)

	added := r.Seed([]RegisterRequest{
		{Name: "hub", Host: "ignored"},
		{Name: "proxy", Type: "proxy", Host: "10.0.0.1", Port: 25577},
	})
	assert.Equal(t, 1, added)

	hub, _ := r.Get("hub")
	assert.Equal(t, "10.0.0.2", hub.Host)

	proxy, ok := r.Get("proxy")
	require.True(t, ok)
	assert.Equal(t, domain.StatusOffline, proxy.Status)
	assert.Len(t, r.ListByType("PROXY"), 1)
}

func TestObserveLoad(t *testing.T) {
	r := New(time.Minute)
	_, err := r.Register(RegisterRequest{Name: "hub"})
	require.NoError(t, err)

	require.NoError(t, r.ObserveLoad("hub", 7))
	rec, _ := r.Get("hub")
	assert.Equal(t, 7, rec.CurrentPlayers)

	assert.ErrorIs(t, r.ObserveLoad("nope", 1), ErrNotFound)
}

func TestConcurrentRegisterSingleRecord(t *testing.T) {
	r := New(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = r.Register(RegisterRequest{Name: "hub", CurrentPlayers: i})
			_, _ = r.Heartbeat("HUB", HeartbeatUpdate{CurrentPlayers: intPtr(i)})
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.List(), 1)
}
