package rcon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loadRecorder struct {
	mu    sync.Mutex
	loads map[string]int
}

func (l *loadRecorder) ObserveLoad(name string, players int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loads == nil {
		l.loads = map[string]int{}
	}
	l.loads[name] = players
	return nil
}

type publishRecorder struct {
	mu       sync.Mutex
	messages []any
}

func (p *publishRecorder) Publish(channel, msgType string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, payload)
}

func TestPollDropsFailuresWithoutBlocking(t *testing.T) {
	p := NewPoller([]Target{
		{Name: "hub", Address: "hub:25575"},
		{Name: "anarchy", Address: "anarchy:25575"},
		{Name: "slow", Address: "slow:25575"},
	}, Options{}, nil, nil)

	p.query = func(ctx context.Context, addr, password, cmd string, opts Options) (string, error) {
		switch addr {
		case "hub:25575":
			return "online: Alice, Bob", nil
		case "slow:25575":
			time.Sleep(50 * time.Millisecond)
			return "", ErrTimeout
		default:
			return "", errors.New("boom")
		}
	}

	results := p.Poll(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, "hub", results[0].Server)
	assert.Equal(t, []string{"Alice", "Bob"}, results[0].Players)
}

func TestRunReportsLoadAndPublishes(t *testing.T) {
	rec := &loadRecorder{}
	pub := &publishRecorder{}
	p := NewPoller([]Target{{Name: "hub", Address: "hub:25575"}}, Options{}, rec, pub)
	p.query = func(ctx context.Context, addr, password, cmd string, opts Options) (string, error) {
		return "online: Alice", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.loads["hub"] == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.NotEmpty(t, pub.messages)
}
