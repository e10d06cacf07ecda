// Package sysload provides the signals the backfill worker consults before
// doing any work.
package sysload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
)

// Signal reports whether the host is too busy for background work. The
// returned reason is meant for logs.
type Signal interface {
	Busy(ctx context.Context) (busy bool, reason string, err error)
}

// SampleFunc returns the CPU utilisation in percent since the previous call.
type SampleFunc func(ctx context.Context) (float64, error)

// HostCPU samples total host CPU through gopsutil. An interval of zero
// measures usage since the previous call.
func HostCPU(ctx context.Context) (float64, error) {
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(pct) == 0 {
		return 0, errors.New("cpu percent: no samples")
	}
	return pct[0], nil
}

// CPU smooths raw utilisation samples with an exponentially weighted moving
// average and compares the result against a threshold.
type CPU struct {
	threshold float64
	alpha     float64
	sample    SampleFunc

	mu     sync.Mutex
	value  float64
	primed bool
}

// NewCPU creates a CPU signal. alpha is the weight of the newest sample
// (0 < alpha <= 1); alpha 1 disables smoothing.
func NewCPU(threshold, alpha float64, sample SampleFunc) *CPU {
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}
	if sample == nil {
		sample = HostCPU
	}
	return &CPU{threshold: threshold, alpha: alpha, sample: sample}
}

// Sample takes a new reading and returns the smoothed utilisation.
func (c *CPU) Sample(ctx context.Context) (float64, error) {
	raw, err := c.sample(ctx)
	if err != nil {
		return 0, fmt.Errorf("sample cpu: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.primed {
		c.value = raw
		c.primed = true
	} else {
		c.value = c.alpha*raw + (1-c.alpha)*c.value
	}
	return c.value, nil
}

func (c *CPU) Busy(ctx context.Context) (bool, string, error) {
	v, err := c.Sample(ctx)
	if err != nil {
		return false, "", err
	}
	if v > c.threshold {
		return true, fmt.Sprintf("cpu %.1f%% > %.1f%%", v, c.threshold), nil
	}
	return false, "", nil
}

// Pender is implemented by the admission queue.
type Pender interface {
	Pending() int
}

// Queue reports busy while foreground work is waiting in or running on the
// admission queue.
type Queue struct {
	q Pender
}

func NewQueue(q Pender) *Queue {
	return &Queue{q: q}
}

func (s *Queue) Busy(context.Context) (bool, string, error) {
	if n := s.q.Pending(); n > 0 {
		return true, fmt.Sprintf("admission queue has %d pending", n), nil
	}
	return false, "", nil
}

// Any is busy when at least one of its signals is busy. Signals are consulted
// in order; the first busy one wins. Errors from individual signals are joined
// and returned alongside the verdict of the others.
type Any []Signal

func (a Any) Busy(ctx context.Context) (bool, string, error) {
	var errs []error
	for _, s := range a {
		busy, reason, err := s.Busy(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if busy {
			return true, reason, errors.Join(errs...)
		}
	}
	return false, "", errors.Join(errs...)
}

// Build assembles the signal named by mode: "cpu", "queue" or "both".
func Build(mode string, cpuSignal *CPU, q Pender) (Signal, error) {
	switch strings.ToLower(mode) {
	case "cpu":
		return cpuSignal, nil
	case "queue":
		return NewQueue(q), nil
	case "", "both":
		return Any{NewQueue(q), cpuSignal}, nil
	default:
		return nil, fmt.Errorf("unknown load signal %q", mode)
	}
}
