package vocabulary

import (
	"time"

	"github.com/fluidvoice/fluidvoice/internal/config"
	"github.com/fluidvoice/fluidvoice/internal/logging"
)

// Service wires a config.Manager watching vocabulary.jsonc to a
// Corrector, rebuilding and atomically swapping the automaton on every
// successful reload — the background task spec section 4.6.1 describes.
type Service struct {
	Corrector *Corrector
	manager   *config.Manager
	log       *logging.Logger
}

// NewService creates a Service bound to the vocabulary file at path.
func NewService(path string) *Service {
	s := &Service{
		Corrector: NewCorrector(),
		manager:   config.NewManager(path, 250*time.Millisecond),
		log:       logging.New("vocabulary"),
	}
	s.manager.Subscribe(s.onReload)
	return s
}

func (s *Service) onReload(raw []byte, err error) {
	if err != nil {
		s.log.Errorf("vocabulary config load failed, keeping previous automaton: %v", err)
		return
	}
	entries, perr := ParseEntries(raw)
	if perr != nil {
		s.log.Errorf("vocabulary config parse failed, keeping previous automaton: %v", perr)
		return
	}
	s.Corrector.Load(entries)
	s.log.Infof("vocabulary automaton rebuilt: %d terms", len(entries))
}

// Start performs the initial load and installs the filesystem watcher.
func (s *Service) Start() error { return s.manager.Start() }

// Reload forces an out-of-band re-read, used by the UI's
// reload_config command (spec section 6.6) on top of the filesystem
// watcher's own debounced reloads.
func (s *Service) Reload() error {
	raw, err := s.manager.Load()
	s.onReload(raw, err)
	return err
}

// Stop tears down the filesystem watcher.
func (s *Service) Stop() { s.manager.Stop() }
