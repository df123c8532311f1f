package gpu

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitReturnsImmediatelyWhenClear(t *testing.T) {
	w := NewWaiter(func(int) (uint64, error) { return 0, nil }, 0)
	if err := w.WaitForMemoryToClear(context.Background()); err != nil {
		t.Fatalf("clear memory should not error: %v", err)
	}
}

func TestWaitUntilMemoryDrops(t *testing.T) {
	var used atomic.Uint64
	used.Store(4 << 30)

	w := Waiter{
		Usage:          func(int) (uint64, error) { return used.Load(), nil },
		Devices:        []int{0},
		ThresholdBytes: 2 << 30,
		Timeout:        2 * time.Second,
		PollInterval:   time.Millisecond,
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		used.Store(0)
	}()

	if err := w.WaitForMemoryToClear(context.Background()); err != nil {
		t.Fatalf("memory dropped but wait failed: %v", err)
	}
}

func TestWaitTimesOut(t *testing.T) {
	w := Waiter{
		Usage:          func(int) (uint64, error) { return 4 << 30, nil },
		Devices:        []int{0},
		ThresholdBytes: 2 << 30,
		Timeout:        20 * time.Millisecond,
		PollInterval:   time.Millisecond,
	}
	err := w.WaitForMemoryToClear(context.Background())
	if !errors.Is(err, ErrResourceUnavailable) {
		t.Fatalf("want ErrResourceUnavailable, got %v", err)
	}
}

func TestWaitChecksEveryDevice(t *testing.T) {
	// Device 1 stays above the threshold.
	w := Waiter{
		Usage: func(d int) (uint64, error) {
			if d == 1 {
				return 3 << 30, nil
			}
			return 0, nil
		},
		Devices:        []int{0, 1, 2},
		ThresholdBytes: 2 << 30,
		Timeout:        20 * time.Millisecond,
		PollInterval:   time.Millisecond,
	}
	if err := w.WaitForMemoryToClear(context.Background()); !errors.Is(err, ErrResourceUnavailable) {
		t.Fatalf("want ErrResourceUnavailable for device 1, got %v", err)
	}
}

func TestWaitRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := Waiter{
		Usage:          func(int) (uint64, error) { return 4 << 30, nil },
		ThresholdBytes: 2 << 30,
		Timeout:        time.Minute,
		PollInterval:   time.Millisecond,
	}
	err := w.WaitForMemoryToClear(ctx)
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestWaitDefaults(t *testing.T) {
	w := NewWaiter(NoDevices, 0, 1)
	if w.ThresholdBytes != DefaultThresholdBytes {
		t.Fatalf("threshold default = %d", w.ThresholdBytes)
	}
	if w.Timeout != DefaultTimeout {
		t.Fatalf("timeout default = %s", w.Timeout)
	}
}
