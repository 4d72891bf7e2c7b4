package sysinfo

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSample(t *testing.T) {
	p, err := NewProbe()
	require.NoError(t, err)

	u := p.Sample()
	assert.Equal(t, int32(os.Getpid()), u.PID)
	assert.Positive(t, u.Goroutines)
	assert.False(t, u.StartedAt.IsZero())
}
