package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/luca-patrignani/intuition/discovery"
	"github.com/luca-patrignani/intuition/domain/quiz"
	"github.com/luca-patrignani/intuition/ledger"
	"github.com/luca-patrignani/intuition/network"
	"github.com/luca-patrignani/intuition/turn"
)

func main() {
	// Create a new slog handler with the default PTerm logger
	logger := slog.New(pterm.NewSlogHandler(&pterm.DefaultLogger))

	if err := newRootCmd(logger).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(log *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "intuition",
		Short:        "A peer-to-peer quiz where players take turns asking questions",
		SilenceUsage: true,
	}
	root.AddCommand(newPlayCmd(log), newRegistryCmd(log), newCertCmd())
	return root
}

type playFlags struct {
	config    string
	listen    string
	registry  string
	multicast bool
	cert      string
	key       string
	ca        string
}

func newPlayCmd(log *slog.Logger) *cobra.Command {
	var f playFlags
	cmd := &cobra.Command{
		Use:   "play <id>",
		Short: "Join the quiz as <id>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return play(ctx, log, quiz.PeerID(args[0]), f)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.config, "config", "", "YAML file with the quiz timing")
	flags.StringVar(&f.listen, "listen", "0.0.0.0:0", "address to serve remote calls on")
	flags.StringVar(&f.registry, "registry", "", "registry address, the last octets are enough on the local subnet")
	flags.BoolVar(&f.multicast, "multicast", false, "find peers over UDP multicast instead of a registry")
	flags.StringVar(&f.cert, "cert", "", "PEM certificate to serve and call over https")
	flags.StringVar(&f.key, "key", "", "PEM private key of --cert")
	flags.StringVar(&f.ca, "ca", "", "comma separated PEM certificates of the trusted peers")
	return cmd
}

// directory is where a peer registers itself and finds the others.
type directory interface {
	turn.Directory
	Register(ctx context.Context, name, address string) error
	Unregister(ctx context.Context, name string) error
}

func play(ctx context.Context, log *slog.Logger, id quiz.PeerID, f playFlags) (err error) {
	if id == "" || strings.ContainsAny(string(id), "/ ") {
		return fmt.Errorf("invalid id %q", id)
	}
	cfg, err := loadConfig(f.config)
	if err != nil {
		return err
	}
	if f.registry != "" {
		cfg.Registry = f.registry
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	peerOpts, err := tlsOptions(f.cert, f.key, f.ca)
	if err != nil {
		return err
	}

	printBanner()

	l, err := net.Listen("tcp", f.listen)
	if err != nil {
		log.Error("failed to listen on address", "address", f.listen, "err", err)
		return err
	}
	localIP, address := advertisedAddress(l.(*net.TCPListener))
	if subnet, err := subnetOf(localIP); err == nil {
		pterm.Info.Printfln("Listening on %s (subnet %s)", address, subnet.String())
	} else {
		pterm.Info.Printfln("Listening on %s", address)
	}

	dir, closeDir, err := openDirectory(ctx, log, cfg, f.multicast, localIP)
	if err != nil {
		_ = l.Close()
		return err
	}

	peerOpts = append(peerOpts, network.WithTimeout(cfg.callTimeout()), network.WithLogger(log))
	peer := network.NewPeerWithOptions(peerOpts...)
	history := ledger.NewBlockchain()
	node := turn.NewNode(id, cfg.turnConfig(), dir, peer, newTerminal(os.Stdin, id),
		turn.WithHistory(history),
		turn.WithLogger(log),
	)
	peer.Start(l, node)

	name := cfg.Namespace + string(id)
	defer func() {
		unregisterCtx, cancel := context.WithTimeout(context.Background(), cfg.callTimeout())
		defer cancel()
		err = multierr.Combine(err,
			dir.Unregister(unregisterCtx, name),
			peer.Close(),
			closeDir(),
		)
		if verr := history.Verify(); verr != nil {
			log.Error("quiz history is corrupted", "err", verr)
		}
		log.Info("left the quiz", "rounds", history.Len())
	}()

	if err := dir.Register(ctx, name, address); err != nil {
		return fmt.Errorf("registering %s: %w", name, err)
	}

	spinner, _ := pterm.DefaultSpinner.Start("Joining the quiz ...")
	if err := node.Bootstrap(ctx); err != nil {
		spinner.Fail()
		return err
	}
	spinner.Success()
	pterm.Success.Printfln("Joined the quiz as %s", pterm.LightCyan(string(id)))

	return node.Run(ctx)
}

func openDirectory(ctx context.Context, log *slog.Logger, cfg config, multicast bool, localIP net.IP) (directory, func() error, error) {
	if multicast {
		m := discovery.NewMulticast(discovery.WithLogger(log))
		if err := m.Start(); err != nil {
			return nil, nil, fmt.Errorf("starting multicast discovery: %w", err)
		}
		spinner, _ := pterm.DefaultSpinner.Start("Looking for peers over multicast ...")
		// the peers already playing must be listed before bootstrapping
		if err := m.Settle(ctx); err != nil {
			spinner.Fail()
			return nil, nil, multierr.Append(err, m.Close())
		}
		spinner.Success()
		return m, m.Close, nil
	}
	addr, err := resolveRegistry(cfg.Registry, localIP, discovery.DefaultRegistryPort)
	if err != nil {
		return nil, nil, err
	}
	pterm.Info.Printfln("Using the registry at %s", addr)
	return discovery.NewClient(addr, cfg.callTimeout()), func() error { return nil }, nil
}

func tlsOptions(certFile, keyFile, caFiles string) ([]network.PeerOption, error) {
	var opts []network.PeerOption
	if certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("loading certificate: %w", err)
		}
		opts = append(opts, network.WithCertificate(cert))
	}
	if caFiles != "" {
		if certFile == "" {
			return nil, fmt.Errorf("--ca requires --cert and --key")
		}
		pool, err := network.LoadCertPool(strings.Split(caFiles, ",")...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, network.WithLimitedCAs(pool))
	}
	return opts, nil
}

func newRegistryCmd(log *slog.Logger) *cobra.Command {
	var listen, db string
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Run the name server the peers register with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRegistry(ctx, log, listen, db)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":"+strconv.Itoa(discovery.DefaultRegistryPort), "address to serve the registry on")
	cmd.Flags().StringVar(&db, "db", "registry.db", "bolt database holding the registrations")
	return cmd
}

func runRegistry(ctx context.Context, log *slog.Logger, listen, db string) error {
	store, err := discovery.NewStore(db)
	if err != nil {
		return err
	}
	l, err := net.Listen("tcp", listen)
	if err != nil {
		return multierr.Append(err, store.Close())
	}
	pterm.Info.Printfln("Registry listening on %s", l.Addr().String())
	r := discovery.NewRegistry(ctx, log, discovery.RegistryConfig{Listener: l, Store: store})
	r.Wait()
	return store.Close()
}

func newCertCmd() *cobra.Command {
	var host, out string
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Write a self-signed certificate and its key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			certFile, keyFile, err := writeCertificate(host, out)
			if err != nil {
				return err
			}
			pterm.Success.Printfln("Wrote %s and %s", certFile, keyFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "localhost", "IP address or DNS name the certificate is valid for")
	cmd.Flags().StringVar(&out, "out", ".", "directory to write the files to")
	return cmd
}

func writeCertificate(host, out string) (certFile, keyFile string, err error) {
	certPEM, keyPEM, err := network.GenerateSelfSignedCert(host)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", "", err
	}
	certFile = filepath.Join(out, host+".crt")
	keyFile = filepath.Join(out, host+".key")
	if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return "", "", err
	}
	return certFile, keyFile, nil
}
