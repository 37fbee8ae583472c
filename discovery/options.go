package discovery

import (
	"log/slog"
	"time"
)

// DefaultMulticastPort is the UDP port announcements are sent to.
const DefaultMulticastPort = 53552

type MulticastOption func(*Multicast)

func WithPort(port uint16) MulticastOption {
	return func(m *Multicast) {
		m.port = port
	}
}

// WithInterval sets the time between two announcements.
func WithInterval(interval time.Duration) MulticastOption {
	return func(m *Multicast) {
		m.interval = interval
	}
}

// WithTTL sets how long an announcement is remembered.
func WithTTL(ttl time.Duration) MulticastOption {
	return func(m *Multicast) {
		m.ttl = ttl
	}
}

func WithLogger(log *slog.Logger) MulticastOption {
	return func(m *Multicast) {
		if log != nil {
			m.log = log
		}
	}
}
