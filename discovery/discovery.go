package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const multicastIpAddress = "239.0.0.1"

// readRetryDelay is the pause after a failed read of the multicast socket.
const readRetryDelay = 100 * time.Millisecond

// Multicast is a directory without a server: every process announces the name
// it registered over UDP multicast and remembers the announcements of the
// others for TTL.
type Multicast struct {
	port     uint16
	interval time.Duration
	ttl      time.Duration
	key      []byte
	log      *slog.Logger

	mu      sync.Mutex
	self    *announcement
	seen    map[string]sighting
	started time.Time

	conn     *net.UDPConn
	sendConn *net.UDPConn
	done     chan struct{}
}

type announcement struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type sighting struct {
	address string
	time    time.Time
}

func NewMulticast(opts ...MulticastOption) *Multicast {
	key := uuid.New()
	m := &Multicast{
		port:     DefaultMulticastPort,
		interval: time.Second,
		ttl:      5 * time.Second,
		key:      key[:],
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		seen:     map[string]sighting{},
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start joins the multicast group and starts announcing and listening.
func (m *Multicast) Start() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", multicastIpAddress, m.port))
	if err != nil {
		return err
	}
	m.conn, err = net.ListenMulticastUDP("udp", nil, addr)
	if err != nil {
		return err
	}
	m.sendConn, err = net.DialUDP("udp", nil, addr)
	if err != nil {
		return multierr.Append(err, m.conn.Close())
	}
	m.mu.Lock()
	m.started = time.Now()
	m.mu.Unlock()
	go m.listen(m.conn)
	go m.announce()
	return nil
}

// Settle blocks until two announcement intervals have passed since Start, so
// that List already reports the processes that were announcing before this
// one joined.
func (m *Multicast) Settle(ctx context.Context) error {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started.IsZero() {
		return fmt.Errorf("multicast directory not started")
	}
	wait := time.Until(started.Add(2 * m.interval))
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops announcing and listening.
func (m *Multicast) Close() error {
	close(m.done)
	var err error
	if m.conn != nil {
		err = multierr.Append(err, m.conn.Close())
	}
	if m.sendConn != nil {
		err = multierr.Append(err, m.sendConn.Close())
	}
	return err
}

// Register sets the name announced by this process. Only one name is
// announced at a time.
func (m *Multicast) Register(ctx context.Context, name, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.self = &announcement{Name: name, Address: address}
	return nil
}

func (m *Multicast) Unregister(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.self != nil && m.self.Name == name {
		m.self = nil
	}
	return nil
}

// List returns the names under prefix announced within TTL, this process
// included.
func (m *Multicast) List(ctx context.Context, prefix string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := map[string]string{}
	now := time.Now()
	for name, s := range m.seen {
		if now.Sub(s.time) > m.ttl {
			delete(m.seen, name)
			continue
		}
		if strings.HasPrefix(name, prefix) {
			found[name] = s.address
		}
	}
	if m.self != nil && strings.HasPrefix(m.self.Name, prefix) {
		found[m.self.Name] = m.self.Address
	}
	return found, nil
}

// observe records a received packet: the sender key followed by the JSON
// announcement. Packets sent by this process are ignored.
func (m *Multicast) observe(packet []byte, at time.Time) error {
	if len(packet) < len(m.key) {
		return fmt.Errorf("packet of %d bytes is too short", len(packet))
	}
	if bytes.Equal(packet[:len(m.key)], m.key) {
		return nil
	}
	var a announcement
	if err := json.Unmarshal(packet[len(m.key):], &a); err != nil {
		return err
	}
	if a.Name == "" {
		return fmt.Errorf("announcement without name")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[a.Name] = sighting{address: a.Address, time: at}
	return nil
}

func (m *Multicast) packet() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.self == nil {
		return nil
	}
	payload, err := json.Marshal(m.self)
	if err != nil {
		return nil
	}
	return append(append([]byte(nil), m.key...), payload...)
}

type packetReader interface {
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
}

func (m *Multicast) listen(conn packetReader) {
	buffer := make([]byte, 1024)
	for {
		n, _, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			m.log.Warn("multicast read failed", "err", err)
			select {
			case <-m.done:
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}
		if err := m.observe(buffer[:n], time.Now()); err != nil {
			m.log.Debug("discarding announcement", "err", err)
		}
	}
}

func (m *Multicast) announce() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		if p := m.packet(); p != nil {
			if _, err := m.sendConn.Write(p); err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				m.log.Warn("multicast announcement failed", "err", err)
			}
		}
		select {
		case <-m.done:
			return
		case <-ticker.C:
		}
	}
}
