package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluidvoice/fluidvoice/internal/apperror"
	"github.com/fluidvoice/fluidvoice/internal/logging"
	"github.com/fluidvoice/fluidvoice/internal/session"
)

// queueTimeout is spec section 4.5's "oldest queued request beyond 2s in
// the queue is dropped with queue_timeout".
const queueTimeout = 2 * time.Second

// pingCacheWindow and recentSuccessWindow implement spec section 4.5's
// heartbeat connection-pool shortcut, generalized from the teacher's
// ConnectionNeedsRefresh/ReportSessionSuccess health bookkeeping.
const (
	recentSuccessWindow = 10 * time.Second
	pingCacheWindow     = 5 * time.Second
	pingDeadline        = 500 * time.Millisecond
)

type job struct {
	pcm        []int16
	enqueuedAt time.Time
	out        chan session.DispatchOutcome
}

// Dispatcher is TranscriptionDispatcher (spec section 4.5). It owns a
// single worker child process and serializes requests to it one at a
// time, per spec section 5's "dispatcher processes one request at a
// time" concurrency rule.
type Dispatcher struct {
	log    *logging.Logger
	worker *workerProcess

	jobs   chan job
	nextID atomic.Uint64

	mu            sync.Mutex
	lastSuccessAt time.Time
	lastPingOKAt  time.Time

	stopCh chan struct{}
}

// New builds a Dispatcher and starts its single request-processing
// loop. If idleStart > 0, the worker is started eagerly after that
// delay rather than waiting for the first real request, per spec
// section 4.5's "eagerly after a user-configurable idle delay (default
// 500ms)".
func New(binaryPath, modelPath string, idleStart time.Duration) *Dispatcher {
	d := &Dispatcher{
		log:    logging.New("dispatch"),
		worker: newWorkerProcess(binaryPath, modelPath),
		jobs:   make(chan job, 16),
		stopCh: make(chan struct{}),
	}
	go d.runLoop()
	go d.healthMonitor()
	if idleStart > 0 {
		go func() {
			select {
			case <-time.After(idleStart):
				d.log.Infof("eager-starting worker after %s idle delay", idleStart)
				d.worker.ensureStarted(context.Background())
			case <-d.stopCh:
			}
		}()
	}
	return d
}

// Transcribe satisfies session.Dispatcher. It encodes pcm to the wire
// format and returns a channel the result is delivered on exactly once.
func (d *Dispatcher) Transcribe(pcm []int16) <-chan session.DispatchOutcome {
	out := make(chan session.DispatchOutcome, 1)
	select {
	case d.jobs <- job{pcm: pcm, enqueuedAt: time.Now(), out: out}:
	default:
		// Queue is unexpectedly deep (spec: "not expected under normal
		// hotkey usage"); treat as an immediate timeout rather than
		// blocking the caller.
		out <- session.DispatchOutcome{Err: apperror.New(apperror.QueueTimeout, "dispatch.Transcribe", nil)}
	}
	return out
}

func (d *Dispatcher) runLoop() {
	for {
		select {
		case <-d.stopCh:
			return
		case j := <-d.jobs:
			if time.Since(j.enqueuedAt) > queueTimeout {
				j.out <- session.DispatchOutcome{Err: apperror.New(apperror.QueueTimeout, "dispatch.runLoop", nil)}
				continue
			}
			j.out <- d.process(j)
		}
	}
}

func (d *Dispatcher) process(j job) session.DispatchOutcome {
	outcome, err := d.transcribeOnce(j.pcm)
	if err == nil {
		d.mu.Lock()
		d.lastSuccessAt = time.Now()
		d.mu.Unlock()
		return outcome
	}

	if !d.worker.crashed() {
		return session.DispatchOutcome{Err: apperror.New(apperror.WorkerUnavailable, "dispatch.process", err)}
	}
	d.log.Warnf("worker connection failed, restarting once: %v", err)
	outcome, err = d.transcribeOnce(j.pcm)
	if err != nil {
		return session.DispatchOutcome{Err: apperror.New(apperror.WorkerUnavailable, "dispatch.process", err)}
	}
	d.mu.Lock()
	d.lastSuccessAt = time.Now()
	d.mu.Unlock()
	return outcome
}

func (d *Dispatcher) transcribeOnce(pcm []int16) (session.DispatchOutcome, error) {
	conn, err := d.worker.ensureStarted(context.Background())
	if err != nil {
		return session.DispatchOutcome{}, err
	}

	id := d.nextID.Add(1)
	req := Request{
		Op:         OpTranscribe,
		ID:         id,
		PCMBase64:  base64.StdEncoding.EncodeToString(pcm16ToBytes(pcm)),
		SampleRate: 16000,
	}
	if err := WriteFrame(conn, req); err != nil {
		return session.DispatchOutcome{}, err
	}

	var resp Response
	if err := ReadFrame(conn, &resp); err != nil {
		return session.DispatchOutcome{}, err
	}
	if !resp.OK {
		errMsg := resp.Error
		if errMsg == "" {
			errMsg = "worker reported failure"
		}
		return session.DispatchOutcome{Err: apperror.New(apperror.WorkerUnavailable, "dispatch.transcribeOnce", errString(errMsg))}, nil
	}
	return session.DispatchOutcome{Text: resp.Text}, nil
}

// ping implements the heartbeat cost-avoidance rule: a recent successful
// transcription or a recently cached ping both suppress a fresh ping.
func (d *Dispatcher) ping() bool {
	d.mu.Lock()
	sinceSuccess := time.Since(d.lastSuccessAt)
	sincePing := time.Since(d.lastPingOKAt)
	d.mu.Unlock()

	if sinceSuccess < recentSuccessWindow {
		return true
	}
	if sincePing < pingCacheWindow {
		return true
	}

	conn, err := d.worker.ensureStarted(context.Background())
	if err != nil {
		return false
	}
	conn.SetDeadline(time.Now().Add(pingDeadline))
	defer conn.SetDeadline(time.Time{})

	if err := WriteFrame(conn, Request{Op: OpPing, ID: d.nextID.Add(1)}); err != nil {
		return false
	}
	var resp Response
	if err := ReadFrame(conn, &resp); err != nil || !resp.OK {
		return false
	}
	d.mu.Lock()
	d.lastPingOKAt = time.Now()
	d.mu.Unlock()
	return true
}

// healthMonitor periodically applies the heartbeat rule of spec section
// 4.5 so a dead worker is noticed even between transcription requests,
// rather than only on the next hotkey press.
func (d *Dispatcher) healthMonitor() {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			if !d.worker.isRunning() {
				continue
			}
			if !d.ping() {
				d.log.Warnf("worker health check failed")
			}
		}
	}
}

// Stop shuts down the worker process and halts the request loop.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.worker.shutdown()
}

func pcm16ToBytes(pcm []int16) []byte {
	buf := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

type errString string

func (e errString) Error() string { return string(e) }
