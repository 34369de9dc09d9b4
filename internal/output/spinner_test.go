package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// syncBuffer guards a bytes.Buffer; the spinner writes from its own goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerStartStop(t *testing.T) {
	var buf syncBuffer
	sp := NewSpinner(&buf)
	sp.Start("Resolving files...")
	time.Sleep(200 * time.Millisecond)
	sp.Stop()

	assert.Contains(t, buf.String(), "Resolving files...")
}

func TestSpinnerStopIdempotent(t *testing.T) {
	var buf syncBuffer
	sp := NewSpinner(&buf)
	sp.Stop()
	sp.Start("test")
	time.Sleep(100 * time.Millisecond)
	assert.NotPanics(t, func() {
		sp.Stop()
		sp.Stop()
	})
}

func TestSpinnerProgress(t *testing.T) {
	var buf syncBuffer
	sp := NewSpinner(&buf)
	sp.Start("starting")
	sp.Progress("parse", 3, 10)
	time.Sleep(150 * time.Millisecond)
	sp.Progress("analyze", 10, 10)
	time.Sleep(150 * time.Millisecond)
	sp.Stop()

	out := buf.String()
	assert.Contains(t, out, "parse: 3/10 files")
	assert.Contains(t, out, "analyze: 10/10 files")
}

func TestSpinnerConcurrentProgress(t *testing.T) {
	var buf syncBuffer
	sp := NewSpinner(&buf)
	sp.Start("start")

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Go(func() {
			sp.Progress("parse", i, 10)
		})
	}
	wg.Wait()
	sp.Stop()
}

func TestSpinnerClearsLine(t *testing.T) {
	var buf syncBuffer
	sp := NewSpinner(&buf)
	sp.Start("working")
	time.Sleep(100 * time.Millisecond)
	sp.Stop()

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "\r"), "expected spinner to clear its line")
}
