package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a progress line while a transaction is being mined. It
// writes to its own writer so standard output stays reserved for results.
type Spinner struct {
	w    io.Writer
	msg  string
	once sync.Once
	stop chan struct{}
	done chan struct{}
}

// NewSpinner creates a spinner that draws msg on w.
func NewSpinner(w io.Writer, msg string) *Spinner {
	return &Spinner{
		w:    w,
		msg:  msg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start begins the animation in a goroutine.
func (s *Spinner) Start() {
	go func() {
		defer close(s.done)
		tick := time.NewTicker(80 * time.Millisecond)
		defer tick.Stop()
		for i := 0; ; i++ {
			frame := StyleNetwork.Render(spinnerFrames[i%len(spinnerFrames)])
			fmt.Fprintf(s.w, "\r%s  %s", frame, s.msg)
			select {
			case <-s.stop:
				fmt.Fprintf(s.w, "\r%-60s\r", "")
				return
			case <-tick.C:
			}
		}
	}()
}

// Stop halts the spinner and waits for the line to be cleared. It is safe
// to call more than once.
func (s *Spinner) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}
