// Command fluidvoice-worker hosts the Vosk speech model behind the
// framed local-socket protocol described in spec section 4.5/6.2. It is
// spawned and supervised by internal/dispatch.Dispatcher; it is never
// meant to be run directly by a user.
package main

import (
	"encoding/base64"
	"flag"
	"log"
	"net"
	"os"
	"time"

	"github.com/fluidvoice/fluidvoice/internal/dispatch"
	"github.com/fluidvoice/fluidvoice/internal/stt"
)

func main() {
	modelPath := flag.String("model", "", "path to the Vosk model directory")
	socketPath := flag.String("socket", "", "unix socket path to listen on")
	flag.Parse()

	if *modelPath == "" || *socketPath == "" {
		log.Fatal("fluidvoice-worker: -model and -socket are required")
	}

	engine := stt.NewVoskEngine()
	if err := engine.Initialize(stt.Config{ModelPath: *modelPath, SampleRate: 16000}); err != nil {
		log.Fatalf("fluidvoice-worker: initialize engine: %v", err)
	}
	defer engine.Close()

	os.Remove(*socketPath)
	listener, err := net.Listen("unix", *socketPath)
	if err != nil {
		log.Fatalf("fluidvoice-worker: listen on %s: %v", *socketPath, err)
	}
	defer listener.Close()

	log.Printf("fluidvoice-worker: listening on %s", *socketPath)

	// The dispatcher holds one connection at a time (spec section 5:
	// "dispatcher processes one request at a time"), so one accepted
	// connection is served to completion before the next is accepted.
	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("fluidvoice-worker: accept: %v", err)
			return
		}
		if shutdown := serve(conn, engine); shutdown {
			return
		}
	}
}

func serve(conn net.Conn, engine stt.Engine) (shutdown bool) {
	defer conn.Close()
	for {
		var req dispatch.Request
		if err := dispatch.ReadFrame(conn, &req); err != nil {
			return false
		}

		switch req.Op {
		case dispatch.OpPing:
			dispatch.WriteFrame(conn, dispatch.Response{ID: req.ID, OK: true})

		case dispatch.OpShutdown:
			dispatch.WriteFrame(conn, dispatch.Response{ID: req.ID, OK: true})
			return true

		case dispatch.OpTranscribe:
			handleTranscribe(conn, req, engine)

		default:
			dispatch.WriteFrame(conn, dispatch.Response{ID: req.ID, OK: false, Error: "unknown op"})
		}
	}
}

func handleTranscribe(conn net.Conn, req dispatch.Request, engine stt.Engine) {
	start := time.Now()

	raw, err := base64.StdEncoding.DecodeString(req.PCMBase64)
	if err != nil {
		dispatch.WriteFrame(conn, dispatch.Response{ID: req.ID, OK: false, Error: "invalid pcm_b64: " + err.Error()})
		return
	}
	pcm := bytesToPCM16(raw)

	decodeStart := time.Now()
	result, err := engine.Transcribe(pcm)
	decodeMs := time.Since(decodeStart).Milliseconds()
	if err != nil {
		dispatch.WriteFrame(conn, dispatch.Response{ID: req.ID, OK: false, Error: err.Error()})
		return
	}

	dispatch.WriteFrame(conn, dispatch.Response{
		ID:         req.ID,
		OK:         true,
		Text:       result.Text,
		Confidence: float32(result.Confidence),
		Timings: &dispatch.Timings{
			DecodeMs: decodeMs,
			TotalMs:  time.Since(start).Milliseconds(),
		},
	})
}

func bytesToPCM16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(uint16(b[i*2]) | uint16(b[i*2+1])<<8)
	}
	return out
}
