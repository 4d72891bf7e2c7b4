package ban

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"lodestone/internal/domain"
	"lodestone/internal/task"

	"github.com/stretchr/testify/assert"
)

type staticSessions map[string]domain.Session

func (s staticSessions) Get(id string) (domain.Session, bool) {
	sess, ok := s[id]
	return sess, ok
}

type staticServers []domain.ServerRecord

func (s staticServers) Get(name string) (domain.ServerRecord, bool) {
	for _, srv := range s {
		if strings.EqualFold(srv.Name, name) {
			return srv, true
		}
	}
	return domain.ServerRecord{}, false
}

func (s staticServers) ListByType(types ...string) []domain.ServerRecord {
	var out []domain.ServerRecord
	for _, srv := range s {
		for _, t := range types {
			if strings.EqualFold(srv.Type, t) {
				out = append(out, srv)
			}
		}
	}
	return out
}

type recordingNotifier struct {
	mu          sync.Mutex
	disconnects []string
	notifies    []string
	failOn      string
}

func (n *recordingNotifier) Disconnect(_ context.Context, srv domain.ServerRecord, id, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disconnects = append(n.disconnects, srv.Name)
	if srv.Name == n.failOn {
		return errors.New("connection refused")
	}
	return nil
}

func (n *recordingNotifier) NotifyBan(_ context.Context, srv domain.ServerRecord, b domain.Ban) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifies = append(n.notifies, srv.Name)
	return nil
}

func (n *recordingNotifier) sorted() ([]string, []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	d := append([]string(nil), n.disconnects...)
	b := append([]string(nil), n.notifies...)
	sort.Strings(d)
	sort.Strings(b)
	return d, b
}

var testServers = staticServers{
	{Name: "proxy", Type: "proxy"},
	{Name: "hub", Type: "hub"},
	{Name: "anarchy", Type: "survival"},
}

var testConfig = PropagatorConfig{
	FirstContactTypes: []string{"hub"},
	ProxyTypes:        []string{"proxy"},
	Timeout:           time.Second,
}

func TestOnBanTargetsSessionServerAndProxy(t *testing.T) {
	n := &recordingNotifier{failOn: "anarchy"}
	g := task.NewGroup(context.Background())
	p := NewPropagator(staticSessions{"u1": {UUID: "u1", CurrentServer: "anarchy"}}, testServers, n, g, testConfig)

	p.OnBan(domain.Ban{UUID: "u1", Name: "A", Reason: "x"})
	g.Wait()

	disconnects, notifies := n.sorted()
	assert.Equal(t, []string{"anarchy", "proxy"}, disconnects)
	assert.Equal(t, []string{"hub"}, notifies)
}

func TestOnBanDeduplicatesTargets(t *testing.T) {
	n := &recordingNotifier{}
	g := task.NewGroup(context.Background())
	p := NewPropagator(staticSessions{"u1": {UUID: "u1", CurrentServer: "PROXY"}}, testServers, n, g, testConfig)

	p.OnBan(domain.Ban{UUID: "u1"})
	g.Wait()

	disconnects, _ := n.sorted()
	assert.Equal(t, []string{"proxy"}, disconnects)
}

func TestOnBanOfflinePlayer(t *testing.T) {
	n := &recordingNotifier{}
	g := task.NewGroup(context.Background())
	p := NewPropagator(staticSessions{}, testServers, n, g, testConfig)

	p.OnBan(domain.Ban{UUID: "u1"})
	g.Wait()

	disconnects, notifies := n.sorted()
	assert.Equal(t, []string{"proxy"}, disconnects)
	assert.Equal(t, []string{"hub"}, notifies)
}

func TestOnLookupNotifiesFirstContactOnly(t *testing.T) {
	n := &recordingNotifier{}
	g := task.NewGroup(context.Background())
	p := NewPropagator(staticSessions{}, testServers, n, g, testConfig)

	p.OnLookup(domain.Ban{UUID: "u1"})
	g.Wait()

	disconnects, notifies := n.sorted()
	assert.Empty(t, disconnects)
	assert.Equal(t, []string{"hub"}, notifies)
}

func TestKickMessage(t *testing.T) {
	assert.Equal(t, "You are banned: No reason given", KickMessage(domain.Ban{}))

	until := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "You are banned until Wed, 02 Jan 2030 03:04:05 UTC: spam",
		KickMessage(domain.Ban{Reason: "spam", ExpiresAt: &until}))
}
