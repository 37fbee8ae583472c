package network

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout bounds every remote call unless WithTimeout says otherwise.
const DefaultTimeout = 2 * time.Second

type PeerOption func(Peer) Peer

func NewPeerWithOptions(opts ...PeerOption) *Peer {
	p := Peer{
		server:   &http.Server{ReadHeaderTimeout: DefaultTimeout},
		client:   &http.Client{Timeout: DefaultTimeout},
		scheme:   "http",
		timeout:  DefaultTimeout,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		inflight: &sync.WaitGroup{},
	}
	for _, opt := range opts {
		p = opt(p)
	}
	return &p
}

func WithTimeout(timeout time.Duration) PeerOption {
	return func(p Peer) Peer {
		p.timeout = timeout
		p.client.Timeout = timeout
		return p
	}
}

func WithLogger(log *slog.Logger) PeerOption {
	return func(p Peer) Peer {
		if log != nil {
			p.log = log
		}
		return p
	}
}

// WithCertificate serves and calls over https, presenting cert on both sides.
func WithCertificate(cert tls.Certificate) PeerOption {
	return func(p Peer) Peer {
		if p.tlsConfig == nil {
			p.tlsConfig = &tls.Config{}
		}
		p.tlsConfig.Certificates = append(p.tlsConfig.Certificates, cert)
		p.client.Transport = &http.Transport{
			TLSClientConfig: p.tlsConfig,
		}
		p.scheme = "https"
		return p
	}
}

// WithLimitedCAs only trusts peers whose certificate is signed by certPool,
// for both server and client authentication.
func WithLimitedCAs(certPool *x509.CertPool) PeerOption {
	return func(p Peer) Peer {
		if p.tlsConfig == nil {
			p.tlsConfig = &tls.Config{}
		}
		p.tlsConfig.RootCAs = certPool
		p.tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
		p.tlsConfig.ClientCAs = certPool
		p.client.Transport = &http.Transport{
			TLSClientConfig: p.tlsConfig,
		}
		return p
	}
}
