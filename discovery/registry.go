package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// DefaultRegistryPort is the port the registry listens on unless told otherwise.
const DefaultRegistryPort = 53550

// Registry is the name server peers register with.
type Registry struct {
	done chan struct{}
}

type RegistryConfig struct {
	Listener net.Listener
	Store    *Store
}

type registration struct {
	Address  string    `json:"address"`
	Instance uuid.UUID `json:"instance"`
}

// NewRegistry serves cfg.Store on cfg.Listener until ctx is done.
func NewRegistry(ctx context.Context, log *slog.Logger, cfg RegistryConfig) *Registry {
	srv := &http.Server{
		Handler:           newMux(log, cfg),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	r := &Registry{
		done: make(chan struct{}),
	}
	go r.serve(log, cfg.Listener, srv)
	go r.waitForShutdown(ctx, srv)

	return r
}

// Wait blocks until the server has stopped.
func (r *Registry) Wait() {
	<-r.done
}

func (r *Registry) waitForShutdown(ctx context.Context, srv *http.Server) {
	select {
	case <-r.done:
		return
	case <-ctx.Done():
		_ = srv.Close()
	}
}

func (r *Registry) serve(log *slog.Logger, ln net.Listener, srv *http.Server) {
	defer close(r.done)

	if err := srv.Serve(ln); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed) {
			log.Info("registry shutting down")
		} else {
			log.Info("registry shutting down due to error", "err", err)
		}
	}
}

func newMux(log *slog.Logger, cfg RegistryConfig) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/peers", handleList(log, cfg)).Methods("GET")
	r.HandleFunc("/peers/{name}", handleRegister(log, cfg)).Methods("PUT")
	r.HandleFunc("/peers/{name}", handleUnregister(log, cfg)).Methods("DELETE")

	return r
}

func handleList(log *slog.Logger, cfg RegistryConfig) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		entries, err := cfg.Store.List(req.URL.Query().Get("prefix"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		addresses := make(map[string]string, len(entries))
		for name, e := range entries {
			addresses[name] = e.Address
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(addresses); err != nil {
			log.Warn("Failed to marshal peer list", "err", err)
		}
	}
}

func handleRegister(log *slog.Logger, cfg RegistryConfig) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		name := mux.Vars(req)["name"]
		var body registration
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if body.Address == "" {
			http.Error(w, "missing address", http.StatusBadRequest)
			return
		}
		entry := Entry{Address: body.Address, Instance: body.Instance, Registered: time.Now()}
		if err := cfg.Store.Put(name, entry); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		log.Info("Registered", "name", name, "address", body.Address)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUnregister(log *slog.Logger, cfg RegistryConfig) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		name := mux.Vars(req)["name"]
		instance, err := uuid.Parse(req.URL.Query().Get("instance"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := cfg.Store.Delete(name, instance); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrNotOwner) {
				status = http.StatusForbidden
			}
			http.Error(w, err.Error(), status)
			return
		}
		log.Info("Unregistered", "name", name)
		w.WriteHeader(http.StatusNoContent)
	}
}
