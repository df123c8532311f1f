// Package gpu provides the pre-construction accelerator-memory wait used to
// confirm that a previous engine's teardown actually released its device
// allocations before a new engine is built.
package gpu

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrResourceUnavailable is returned when device memory does not drop below
// the threshold within the timeout. The caller aborts; there is no retry.
var ErrResourceUnavailable = errors.New("gpu: memory did not clear before timeout")

// Defaults for the pre-construction wait.
const (
	DefaultThresholdBytes = 2 << 30 // 2 GiB
	DefaultTimeout        = 60 * time.Second
	DefaultPollInterval   = 100 * time.Millisecond
)

// UsageFunc reports the current allocated bytes on one device.
type UsageFunc func(device int) (uint64, error)

// NoDevices is the UsageFunc for hosts without accelerators: memory is
// always considered clear.
func NoDevices(int) (uint64, error) { return 0, nil }

// Waiter polls per-device memory usage until every device is below the
// threshold, or the timeout elapses.
type Waiter struct {
	Usage          UsageFunc
	Devices        []int
	ThresholdBytes uint64
	Timeout        time.Duration
	PollInterval   time.Duration
}

// NewWaiter builds a Waiter over the given devices with default threshold,
// timeout, and poll interval.
func NewWaiter(usage UsageFunc, devices ...int) Waiter {
	return Waiter{
		Usage:          usage,
		Devices:        devices,
		ThresholdBytes: DefaultThresholdBytes,
		Timeout:        DefaultTimeout,
		PollInterval:   DefaultPollInterval,
	}
}

// WaitForMemoryToClear blocks until allocated bytes on every device are
// below the threshold. It respects context cancellation at every step.
func (w Waiter) WaitForMemoryToClear(ctx context.Context) error {
	usage := w.Usage
	if usage == nil {
		usage = NoDevices
	}
	threshold := w.ThresholdBytes
	if threshold == 0 {
		threshold = DefaultThresholdBytes
	}
	timeout := w.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	interval := w.PollInterval
	if interval == 0 {
		interval = DefaultPollInterval
	}

	deadline := time.Now().Add(timeout)
	for {
		device, used, clear, err := w.probe(usage, threshold)
		if err != nil {
			return fmt.Errorf("gpu: usage probe: %w", err)
		}
		if clear {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: device %d holds %d bytes after %s (threshold %d)",
				ErrResourceUnavailable, device, used, timeout, threshold)
		}

		log.Printf("[gpu] waiting for memory to clear: device %d holds %d bytes (threshold %d)",
			device, used, threshold)

		select {
		case <-ctx.Done():
			return fmt.Errorf("gpu: wait cancelled: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
}

// probe returns the first device still above the threshold, if any.
func (w Waiter) probe(usage UsageFunc, threshold uint64) (device int, used uint64, clear bool, err error) {
	devices := w.Devices
	if len(devices) == 0 {
		devices = []int{0}
	}
	for _, d := range devices {
		u, err := usage(d)
		if err != nil {
			return d, 0, false, err
		}
		if u >= threshold {
			return d, u, false, nil
		}
	}
	return 0, 0, true, nil
}
