package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluidvoice/fluidvoice/internal/apperror"
	"github.com/fluidvoice/fluidvoice/internal/session"
)

// TestTranscribe_QueueTimeoutDropsStaleRequest implements spec section
// 4.5's "oldest queued request beyond 2s in the queue is dropped with
// queue_timeout", exercised directly against runLoop's staleness check
// with a synthetic job that has no live worker behind it.
func TestTranscribe_QueueTimeoutDropsStaleRequest(t *testing.T) {
	d := &Dispatcher{jobs: make(chan job, 1), stopCh: make(chan struct{})}
	go d.runLoop()
	defer close(d.stopCh)

	out := make(chan session.DispatchOutcome, 1)
	d.jobs <- job{pcm: nil, enqueuedAt: time.Now().Add(-3 * time.Second), out: out}

	select {
	case outcome := <-out:
		require.Error(t, outcome.Err)
		assert.True(t, apperror.Is(outcome.Err, apperror.QueueTimeout))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for queue_timeout outcome")
	}
}

func TestTranscribe_QueueFullReportsTimeoutImmediately(t *testing.T) {
	d := &Dispatcher{jobs: make(chan job), stopCh: make(chan struct{})}
	// No runLoop consumer is started, so the unbuffered jobs channel is
	// always full from Transcribe's point of view.

	out := d.Transcribe([]int16{1, 2, 3})
	select {
	case outcome := <-out:
		require.Error(t, outcome.Err)
		assert.True(t, apperror.Is(outcome.Err, apperror.QueueTimeout))
	case <-time.After(time.Second):
		t.Fatal("expected an immediate queue_timeout outcome")
	}
}
