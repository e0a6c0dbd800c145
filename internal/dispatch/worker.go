package dispatch

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/fluidvoice/fluidvoice/internal/logging"
)

// workerProcess owns the lifecycle of the out-of-process transcription
// worker binary: starting it, dialing its socket, and restarting it once
// on an unexpected exit, per spec section 4.5's worker-lifecycle rules.
type workerProcess struct {
	log        *logging.Logger
	binaryPath string
	modelPath  string
	socketPath string

	mu           sync.Mutex
	cmd          *exec.Cmd
	conn         net.Conn
	lastCrash    time.Time
	crashesInRow int
}

// isRunning reports whether a worker connection is currently live,
// without starting one. Used by the health monitor so periodic pings
// don't themselves trigger the lazy cold-start they're meant to check on.
func (w *workerProcess) isRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil
}

func newWorkerProcess(binaryPath, modelPath string) *workerProcess {
	return &workerProcess{
		log:        logging.New("dispatch.worker"),
		binaryPath: binaryPath,
		modelPath:  modelPath,
		socketPath: filepath.Join(os.TempDir(), fmt.Sprintf("fluidvoice-worker-%d.sock", os.Getpid())),
	}
}

// ensureStarted spawns the worker if it is not already running and
// returns a live connection to its socket. Grounded on the teacher's
// Client.Connect dial-and-track pattern, repointed at a Unix socket
// child process instead of a TLS websocket.
func (w *workerProcess) ensureStarted(ctx context.Context) (net.Conn, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		return w.conn, nil
	}

	os.Remove(w.socketPath)
	cmd := exec.CommandContext(context.Background(), w.binaryPath, "-model", w.modelPath, "-socket", w.socketPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("dispatch: start worker: %w", err)
	}
	w.cmd = cmd
	w.log.Infof("worker started, pid=%d socket=%s", cmd.Process.Pid, w.socketPath)

	go w.watchExit(cmd)

	conn, err := dialWithRetry(ctx, w.socketPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dispatch: dial worker socket: %w", err)
	}
	w.conn = conn
	return conn, nil
}

func dialWithRetry(ctx context.Context, socketPath string, budget time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(budget)
	for {
		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func (w *workerProcess) watchExit(cmd *exec.Cmd) {
	err := cmd.Wait()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.log.Warnf("worker exited: %v", err)
	w.cmd = nil
}

// crashed reports the connection as dead and records a crash, per spec
// section 4.5's "on worker crash ... restarts it once immediately; a
// second failure within 60s surfaces worker_unavailable".
func (w *workerProcess) crashed() (restartAllowed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	now := time.Now()
	if now.Sub(w.lastCrash) < 60*time.Second {
		w.crashesInRow++
	} else {
		w.crashesInRow = 1
	}
	w.lastCrash = now
	return w.crashesInRow < 2
}

func (w *workerProcess) shutdown() {
	w.mu.Lock()
	conn := w.conn
	cmd := w.cmd
	w.conn = nil
	w.mu.Unlock()

	if conn != nil {
		WriteFrame(conn, Request{Op: OpShutdown})
		conn.Close()
	}
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
	}
	os.Remove(w.socketPath)
}
