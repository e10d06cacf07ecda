package sysload

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(values ...float64) SampleFunc {
	i := 0
	return func(context.Context) (float64, error) {
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v, nil
	}
}

type pending int

func (p pending) Pending() int { return int(p) }

func TestCPUSmoothing(t *testing.T) {
	c := NewCPU(50, 0.5, seq(80, 0, 0))
	ctx := context.Background()

	v, err := c.Sample(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 80, v, 0.001)

	v, err = c.Sample(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 40, v, 0.001)

	v, err = c.Sample(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 20, v, 0.001)
}

func TestCPUBusy(t *testing.T) {
	t.Run("above threshold", func(t *testing.T) {
		busy, reason, err := NewCPU(50, 1, seq(70)).Busy(context.Background())
		require.NoError(t, err)
		assert.True(t, busy)
		assert.Contains(t, reason, "70.0%")
	})
	t.Run("single spike is damped", func(t *testing.T) {
		c := NewCPU(50, 0.2, seq(10, 90))
		_, _, _ = c.Busy(context.Background())
		busy, _, err := c.Busy(context.Background())
		require.NoError(t, err)
		assert.False(t, busy)
	})
	t.Run("sample error", func(t *testing.T) {
		c := NewCPU(50, 1, func(context.Context) (float64, error) { return 0, errors.New("no proc") })
		_, _, err := c.Busy(context.Background())
		assert.Error(t, err)
	})
}

func TestQueueSignal(t *testing.T) {
	busy, _, err := NewQueue(pending(0)).Busy(context.Background())
	require.NoError(t, err)
	assert.False(t, busy)

	busy, reason, err := NewQueue(pending(2)).Busy(context.Background())
	require.NoError(t, err)
	assert.True(t, busy)
	assert.Contains(t, reason, "2 pending")
}

func TestBuild(t *testing.T) {
	cpuSig := NewCPU(50, 1, seq(10))

	s, err := Build("both", cpuSig, pending(1))
	require.NoError(t, err)
	busy, _, err := s.Busy(context.Background())
	require.NoError(t, err)
	assert.True(t, busy)

	s, err = Build("cpu", cpuSig, pending(1))
	require.NoError(t, err)
	busy, _, err = s.Busy(context.Background())
	require.NoError(t, err)
	assert.False(t, busy)

	_, err = Build("memory", cpuSig, pending(0))
	assert.Error(t, err)
}

func TestAnyKeepsCheckingAfterError(t *testing.T) {
	failing := NewCPU(50, 1, func(context.Context) (float64, error) { return 0, errors.New("boom") })
	busy, _, err := Any{failing, NewQueue(pending(3))}.Busy(context.Background())
	assert.True(t, busy)
	assert.Error(t, err)
}
