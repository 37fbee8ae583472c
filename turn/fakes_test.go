package turn

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/luca-patrignani/intuition/domain/quiz"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

var errUnreachable = errors.New("unreachable")

type sentState struct {
	to string
	st quiz.RoundState
}

// fakeNet routes remote calls straight to the nodes in memory.
type fakeNet struct {
	mu     sync.Mutex
	nodes  map[string]*Node
	down   map[string]bool
	sent   []sentState
	closed bool
	wg     sync.WaitGroup
}

func newFakeNet() *fakeNet {
	return &fakeNet{nodes: map[string]*Node{}, down: map[string]bool{}}
}

func (f *fakeNet) add(addr string, n *Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[addr] = n
}

func (f *fakeNet) crash(addr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down[addr] = true
}

func (f *fakeNet) close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *fakeNet) node(addr string) (*Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[addr]
	if f.closed || f.down[addr] || !ok {
		return nil, fmt.Errorf("%s: %w", addr, errUnreachable)
	}
	return n, nil
}

func (f *fakeNet) async(addr string, call func(n *Node)) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.wg.Add(1)
	f.mu.Unlock()
	go func() {
		defer f.wg.Done()
		if n, err := f.node(addr); err == nil {
			call(n)
		}
	}()
}

func (f *fakeNet) sentTo(addr string) []quiz.RoundState {
	f.mu.Lock()
	defer f.mu.Unlock()
	var states []quiz.RoundState
	for _, s := range f.sent {
		if s.to == addr {
			states = append(states, s.st)
		}
	}
	return states
}

func (f *fakeNet) GetRoundState(ctx context.Context, addr string) (quiz.RoundState, error) {
	n, err := f.node(addr)
	if err != nil {
		return quiz.RoundState{}, err
	}
	return n.RoundState(), nil
}

func (f *fakeNet) SetRoundState(addr string, st quiz.RoundState) {
	f.mu.Lock()
	f.sent = append(f.sent, sentState{to: addr, st: st})
	f.mu.Unlock()
	f.async(addr, func(n *Node) { _ = n.SetRoundState(st) })
}

func (f *fakeNet) GetAnswer(ctx context.Context, addr string) (*int64, error) {
	n, err := f.node(addr)
	if err != nil {
		return nil, err
	}
	return n.Answer(), nil
}

func (f *fakeNet) ResetAnswer(addr string) {
	f.async(addr, func(n *Node) { n.ResetAnswer() })
}

func (f *fakeNet) Notify(addr string, message string) {
	f.async(addr, func(n *Node) { n.Notify(message) })
}

func (f *fakeNet) Probe(ctx context.Context, addr string) (quiz.PeerID, error) {
	n, err := f.node(addr)
	if err != nil {
		return "", err
	}
	return n.ID(), nil
}

type fakeDirectory struct {
	mu      sync.Mutex
	entries map[string]string
	err     error
}

func (d *fakeDirectory) List(ctx context.Context, prefix string) (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	found := map[string]string{}
	for name, addr := range d.entries {
		if strings.HasPrefix(name, prefix) {
			found[name] = addr
		}
	}
	return found, nil
}

// scriptConsole answers prompts with the lines queued in inputs. Lines typed
// with typeLine are only seen by the prompt open when they were typed, like
// the operator terminal.
type scriptConsole struct {
	inputs chan string
	typed  chan typedLine

	mu      sync.Mutex
	notes   []string
	renders []quiz.RoundState
	prompts []string
	open    int
}

type typedLine struct {
	text   string
	prompt int
}

func newScriptConsole(lines ...string) *scriptConsole {
	c := &scriptConsole{
		inputs: make(chan string, 16),
		typed:  make(chan typedLine, 16),
	}
	for _, l := range lines {
		c.inputs <- l
	}
	return c
}

func (c *scriptConsole) Prompt(ctx context.Context, label string) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, label)
	id := len(c.prompts)
	c.open = id
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.open == id {
			c.open = 0
		}
		c.mu.Unlock()
	}()
	for {
		select {
		case line := <-c.inputs:
			return line, nil
		case line := <-c.typed:
			if line.prompt != id {
				continue
			}
			return line.text, nil
		case <-ctx.Done():
			return "", fmt.Errorf("prompt %q: %w", label, ctx.Err())
		}
	}
}

// typeLine enters a line now, answering the prompt open at this moment.
func (c *scriptConsole) typeLine(text string) {
	c.mu.Lock()
	open := c.open
	c.mu.Unlock()
	c.typed <- typedLine{text: text, prompt: open}
}

func (c *scriptConsole) Notify(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, message)
}

func (c *scriptConsole) Render(st quiz.RoundState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renders = append(c.renders, st)
}

func (c *scriptConsole) noted(substr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.notes {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}

func (c *scriptConsole) renderCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.renders)
}

type fakeHistory struct {
	mu      sync.Mutex
	results []quiz.RoundResult
}

func (h *fakeHistory) Append(result quiz.RoundResult, scoreboard []quiz.Score) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, result)
	return nil
}

func (h *fakeHistory) all() []quiz.RoundResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]quiz.RoundResult(nil), h.results...)
}

type testPeer struct {
	addr    string
	node    *Node
	console *scriptConsole
	history *fakeHistory
	cancel  context.CancelFunc
	done    chan struct{}
}

type cluster struct {
	t     *testing.T
	net   *fakeNet
	dir   *fakeDirectory
	peers map[quiz.PeerID]*testPeer
}

func testConfig() Config {
	return Config{
		Namespace:        DefaultNamespace,
		AnswerTimeout:    100 * time.Millisecond,
		CollectionWindow: 400 * time.Millisecond,
		LivenessPeriod:   100 * time.Millisecond,
		RetryInterval:    50 * time.Millisecond,
	}
}

// newCluster creates and bootstraps one node per id, in id order. Inputs are
// the lines each operator types.
func newCluster(t *testing.T, cfg Config, inputs map[quiz.PeerID][]string) *cluster {
	c := &cluster{
		t:     t,
		net:   newFakeNet(),
		dir:   &fakeDirectory{entries: map[string]string{}},
		peers: map[quiz.PeerID]*testPeer{},
	}
	var ids []quiz.PeerID
	for id := range inputs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		p := &testPeer{
			addr:    "mem://" + string(id),
			console: newScriptConsole(inputs[id]...),
			history: &fakeHistory{},
		}
		p.node = NewNode(id, cfg, c.dir, c.net, p.console, WithHistory(p.history), WithLogger(slogt.New(t)))
		c.dir.entries[cfg.Namespace+string(id)] = p.addr
		c.net.add(p.addr, p.node)
		c.peers[id] = p
	}
	for _, id := range ids {
		require.NoError(t, c.peers[id].node.Bootstrap(context.Background()))
	}
	t.Cleanup(c.stop)
	return c
}

func (c *cluster) start() {
	for _, p := range c.peers {
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		p.done = make(chan struct{})
		go func(p *testPeer) {
			defer close(p.done)
			_ = p.node.Run(ctx)
		}(p)
	}
}

func (c *cluster) crash(id quiz.PeerID) {
	p := c.peers[id]
	c.net.crash(p.addr)
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
}

func (c *cluster) stop() {
	for _, p := range c.peers {
		if p.cancel != nil {
			p.cancel()
			<-p.done
		}
	}
	c.net.close()
	// let timers that already fired observe the cancellation
	time.Sleep(50 * time.Millisecond)
}

func (c *cluster) state(id quiz.PeerID) quiz.RoundState {
	return c.peers[id].node.RoundState()
}
