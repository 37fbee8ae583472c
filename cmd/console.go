package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/luca-patrignani/intuition/domain/quiz"
	"github.com/pterm/pterm"
)

// inputLine is a line of the operator, tagged with the prompt that was open
// when it was entered. Zero means no prompt was open.
type inputLine struct {
	text   string
	prompt uint64
}

// terminal is the operator console of a peer. Input lines are read by a single
// goroutine so that a pending prompt can be abandoned when its context ends.
// A prompt only accepts lines entered while it was open: whatever is typed
// after a prompt expired is dropped.
type terminal struct {
	self  quiz.PeerID
	lines chan inputLine

	// mu serializes output between prompts, notifications and renders, and
	// guards the prompt counters.
	mu      sync.Mutex
	prompts uint64
	open    uint64
}

func newTerminal(in io.Reader, self quiz.PeerID) *terminal {
	t := &terminal{
		self:  self,
		lines: make(chan inputLine),
	}
	go t.read(in)
	return t
}

func (t *terminal) read(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		t.mu.Lock()
		open := t.open
		t.mu.Unlock()
		t.lines <- inputLine{text: scanner.Text(), prompt: open}
	}
	close(t.lines)
}

// Prompt shows label and waits for the next line. Once the input is closed
// Prompt only returns when ctx is done.
func (t *terminal) Prompt(ctx context.Context, label string) (string, error) {
	t.mu.Lock()
	t.prompts++
	id := t.prompts
	t.open = id
	pterm.Print(pterm.LightCyan(label) + ": ")
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		if t.open == id {
			t.open = 0
		}
		t.mu.Unlock()
	}()

	lines := t.lines
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if line.prompt != id {
				continue
			}
			return strings.TrimSpace(line.text), nil
		case <-ctx.Done():
			t.mu.Lock()
			pterm.Println()
			t.mu.Unlock()
			return "", fmt.Errorf("prompt %q: %w", label, ctx.Err())
		}
	}
}

func (t *terminal) Notify(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pterm.Info.Println(message)
}

func (t *terminal) Render(st quiz.RoundState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	printState(st, t.self)
}
