package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tallystack/treasury/internal/domain"
)

type sinkFunc func(ctx context.Context, events []Event) error

func (f sinkFunc) Flush(ctx context.Context, events []Event) error {
	return f(ctx, events)
}

func transferEvent() Event {
	return NewTransfer(domain.RandomAddress(), domain.RandomAddress(), "USDX", 100, time.Now())
}

func TestDispatcherMaxBatchSize(t *testing.T) {
	ctx := context.Background()
	flushed := make([][]Event, 0)

	d := NewDispatcher(DispatcherConfig{
		FlushInterval: 10 * time.Second, // Long interval so timer doesn't fire
		MaxBatchSize:  5,
		MaxBatchBytes: 1000000,
	}, sinkFunc(func(_ context.Context, events []Event) error {
		flushed = append(flushed, events)
		return nil
	}))

	for i := 0; i < 4; i++ {
		require.NoError(t, d.Record(ctx, transferEvent()))
	}

	require.Empty(t, flushed, "Should not flush until batch is full")

	require.NoError(t, d.Record(ctx, transferEvent()))

	require.Len(t, flushed, 1, "Should flush when max size reached")
	require.Len(t, flushed[0], 5)

	require.NoError(t, d.Stop(ctx))
}

func TestDispatcherMaxBatchBytes(t *testing.T) {
	ctx := context.Background()
	flushed := make([][]Event, 0)

	d := NewDispatcher(DispatcherConfig{
		FlushInterval: 10 * time.Second,
		MaxBatchSize:  100,
		MaxBatchBytes: 500, // Two estimated events overflow this
	}, sinkFunc(func(_ context.Context, events []Event) error {
		flushed = append(flushed, events)
		return nil
	}))

	require.NoError(t, d.Record(ctx, transferEvent()))
	require.Empty(t, flushed)

	require.NoError(t, d.Record(ctx, transferEvent()))
	require.Len(t, flushed, 1, "Should flush when max bytes exceeded")

	require.NoError(t, d.Stop(ctx))
}

func TestDispatcherTimer(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	flushed := make([][]Event, 0)

	d := NewDispatcher(DispatcherConfig{
		FlushInterval: 100 * time.Millisecond,
		MaxBatchSize:  100,
		MaxBatchBytes: 1000000,
	}, sinkFunc(func(_ context.Context, events []Event) error {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, events)
		return nil
	}))

	require.NoError(t, d.Record(ctx, transferEvent()))

	mu.Lock()
	require.Empty(t, flushed, "Should not flush immediately")
	mu.Unlock()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(flushed) == 1
	}, 2*time.Second, 20*time.Millisecond, "Should flush after timer fires")

	require.NoError(t, d.Stop(ctx))
}

func TestDispatcherExplicitFlush(t *testing.T) {
	ctx := context.Background()
	flushed := make([][]Event, 0)

	d := NewDispatcher(DispatcherConfig{
		FlushInterval: 10 * time.Second,
		MaxBatchSize:  100,
		MaxBatchBytes: 1000000,
	}, sinkFunc(func(_ context.Context, events []Event) error {
		flushed = append(flushed, events)
		return nil
	}))

	require.NoError(t, d.Record(ctx, transferEvent()))
	require.NoError(t, d.Record(ctx, transferEvent()))
	require.Empty(t, flushed)

	require.NoError(t, d.Flush(ctx))

	require.Len(t, flushed, 1)
	require.Len(t, flushed[0], 2)

	// Flush with an empty buffer is a no-op.
	require.NoError(t, d.Flush(ctx))
	require.Len(t, flushed, 1)

	require.NoError(t, d.Stop(ctx))
}

func TestDispatcherStop(t *testing.T) {
	ctx := context.Background()
	flushed := make([][]Event, 0)

	d := NewDispatcher(DispatcherConfig{
		FlushInterval: 10 * time.Second,
		MaxBatchSize:  100,
		MaxBatchBytes: 1000000,
	}, sinkFunc(func(_ context.Context, events []Event) error {
		flushed = append(flushed, events)
		return nil
	}))

	require.NoError(t, d.Record(ctx, transferEvent()))
	require.NoError(t, d.Record(ctx, transferEvent()))

	// Stop should flush remaining events.
	require.NoError(t, d.Stop(ctx))
	require.Len(t, flushed, 1)
	require.Len(t, flushed[0], 2)

	// After stop, Record should fail. A second Stop is a no-op.
	require.Error(t, d.Record(ctx, transferEvent()))
	require.NoError(t, d.Stop(ctx))
}

func TestDispatcherConcurrentRecord(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	total := 0

	d := NewDispatcher(DispatcherConfig{
		FlushInterval: 50 * time.Millisecond,
		MaxBatchSize:  16,
		MaxBatchBytes: 1000000,
	}, sinkFunc(func(_ context.Context, events []Event) error {
		mu.Lock()
		defer mu.Unlock()
		total += len(events)
		return nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if err := d.Record(ctx, transferEvent()); err != nil {
					t.Errorf("record: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	require.NoError(t, d.Stop(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 100, total, "All events should reach the sink")
}
