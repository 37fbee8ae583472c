package network

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/luca-patrignani/intuition/domain/quiz"
)

// ErrCommunication is returned when a remote call could not be completed.
var ErrCommunication = errors.New("communication failure")

// Service is the set of operations a peer serves to the others.
type Service interface {
	ID() quiz.PeerID
	RoundState() quiz.RoundState
	SetRoundState(st quiz.RoundState) error
	Answer() *int64
	ResetAnswer()
	Notify(message string)
}

// Peer serves a Service over HTTP and calls the Services of the other peers.
type Peer struct {
	server    *http.Server
	client    *http.Client
	scheme    string
	timeout   time.Duration
	tlsConfig *tls.Config
	log       *slog.Logger
	inflight  *sync.WaitGroup
}

type answerBody struct {
	Answer *int64 `json:"answer"`
}

type notifyBody struct {
	Message string `json:"message"`
}

type idBody struct {
	ID quiz.PeerID `json:"id"`
}

// Start serves svc on l. With a certificate configured the listener is wrapped
// with TLS.
func (p *Peer) Start(l net.Listener, svc Service) {
	p.server.Handler = p.router(svc)
	if p.tlsConfig != nil && len(p.tlsConfig.Certificates) > 0 {
		l = tls.NewListener(l, p.tlsConfig)
	}
	go func() {
		err := p.server.Serve(l)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Error("peer server stopped", "err", err)
		}
	}()
}

// Close stops the server and waits for the outstanding fire-and-forget calls.
func (p *Peer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout+time.Second)
	defer cancel()
	err := p.server.Shutdown(ctx)
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	p.client.CloseIdleConnections()
	return err
}

func (p *Peer) router(svc Service) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/id", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, idBody{ID: svc.ID()})
	}).Methods(http.MethodGet)
	r.HandleFunc("/state", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, svc.RoundState())
	}).Methods(http.MethodGet)
	r.HandleFunc("/state", func(w http.ResponseWriter, req *http.Request) {
		var st quiz.RoundState
		if err := json.NewDecoder(req.Body).Decode(&st); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := svc.SetRoundState(st); err != nil {
			p.log.Warn("round state rejected", "from", req.RemoteAddr, "err", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}).Methods(http.MethodPost)
	r.HandleFunc("/answer", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, answerBody{Answer: svc.Answer()})
	}).Methods(http.MethodGet)
	r.HandleFunc("/answer/reset", func(w http.ResponseWriter, req *http.Request) {
		svc.ResetAnswer()
		w.WriteHeader(http.StatusAccepted)
	}).Methods(http.MethodPost)
	r.HandleFunc("/notify", func(w http.ResponseWriter, req *http.Request) {
		var body notifyBody
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		svc.Notify(body.Message)
		w.WriteHeader(http.StatusAccepted)
	}).Methods(http.MethodPost)
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetRoundState fetches the round state of the peer at addr.
func (p *Peer) GetRoundState(ctx context.Context, addr string) (quiz.RoundState, error) {
	var st quiz.RoundState
	err := p.get(ctx, addr, "/state", &st)
	return st, err
}

// GetAnswer fetches the answer of the peer at addr. A nil answer means the
// operator did not answer.
func (p *Peer) GetAnswer(ctx context.Context, addr string) (*int64, error) {
	var body answerBody
	if err := p.get(ctx, addr, "/answer", &body); err != nil {
		return nil, err
	}
	return body.Answer, nil
}

// Probe returns the id of the peer at addr.
func (p *Peer) Probe(ctx context.Context, addr string) (quiz.PeerID, error) {
	var body idBody
	if err := p.get(ctx, addr, "/id", &body); err != nil {
		return "", err
	}
	return body.ID, nil
}

// SetRoundState sends st to the peer at addr without waiting for it.
func (p *Peer) SetRoundState(addr string, st quiz.RoundState) {
	p.send(addr, "/state", st)
}

func (p *Peer) ResetAnswer(addr string) {
	p.send(addr, "/answer/reset", nil)
}

func (p *Peer) Notify(addr string, message string) {
	p.send(addr, "/notify", notifyBody{Message: message})
}

func (p *Peer) url(addr, path string) string {
	return p.scheme + "://" + addr + path
}

func (p *Peer) get(ctx context.Context, addr, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url(addr, path), nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCommunication, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCommunication, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s returned %s", ErrCommunication, path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s: %w", ErrCommunication, path, err)
	}
	return nil
}

// send posts body to the peer at addr in the background. Failures are logged
// and never retried.
func (p *Peer) send(addr, path string, body any) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			p.log.Error("could not encode request", "path", path, "err", err)
			return
		}
	}
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		if err := p.post(addr, path, payload); err != nil {
			p.log.Debug("fire-and-forget call failed", "to", addr, "path", path, "err", err)
		}
	}()
}

func (p *Peer) post(addr, path string, payload []byte) error {
	req, err := http.NewRequest(http.MethodPost, p.url(addr, path), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCommunication, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCommunication, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("%w: POST %s returned %s", ErrCommunication, path, resp.Status)
	}
	return nil
}
