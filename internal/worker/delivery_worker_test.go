package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingRetrier struct {
	calls atomic.Int32
	err   error
}

func (r *countingRetrier) RetryPending(context.Context) (int, error) {
	r.calls.Add(1)
	return 1, r.err
}

func TestDeliveryWorkerRunsUntilCancelled(t *testing.T) {
	r := &countingRetrier{}
	w := NewDeliveryWorker(r, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return r.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestDeliveryWorkerSurvivesErrors(t *testing.T) {
	r := &countingRetrier{err: errors.New("db down")}
	w := NewDeliveryWorker(r, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return r.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	<-done
}
