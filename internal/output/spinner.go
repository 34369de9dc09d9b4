package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// Spinner displays an animated braille spinner on a writer (typically stderr).
// Update and Progress may be called from any goroutine.
type Spinner struct {
	mu       sync.Mutex
	w        io.Writer
	message  string
	done     chan struct{}
	finished chan struct{}
	running  bool
}

// NewSpinner creates a spinner that writes to w.
func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{w: w}
}

// Start begins the spinner animation with the given message.
func (s *Spinner) Start(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.message = message
		return
	}
	s.message = message
	s.done = make(chan struct{})
	s.finished = make(chan struct{})
	s.running = true
	go s.loop(s.done, s.finished)
}

// Update changes the displayed message while the spinner is running.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Progress renders runner phase progress. Its signature matches
// runner.ProgressFunc.
func (s *Spinner) Progress(phase string, done, total int) {
	s.Update(fmt.Sprintf("%s: %d/%d files", phase, done, total))
}

// Stop halts the spinner and clears its line. It is idempotent.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	done, finished := s.done, s.finished
	s.mu.Unlock()

	close(done)
	<-finished

	s.mu.Lock()
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", 80))
	s.mu.Unlock()
}

func (s *Spinner) loop(done, finished chan struct{}) {
	defer close(finished)
	tick := time.NewTicker(80 * time.Millisecond)
	defer tick.Stop()

	for i := 0; ; i++ {
		select {
		case <-done:
			return
		case <-tick.C:
			s.mu.Lock()
			// Pad so a shorter message overwrites a longer previous one.
			line := fmt.Sprintf("\r%c %s", spinnerFrames[i%len(spinnerFrames)], s.message)
			fmt.Fprintf(s.w, "%-80s", line)
			s.mu.Unlock()
		}
	}
}
