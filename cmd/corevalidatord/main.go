// Command corevalidatord runs the validator core service: accounts-hash
// verification and turbine shred retransmit over a libp2p gossip mesh.
// Flag parsing, slog setup, and signal-driven shutdown follow the
// teacher's cmd/gean/main.go shape; the node-specific flags are this
// core's own (genesis time, identity, sockets, leader set).
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/clustercore/corevalidator/config"
	"github.com/clustercore/corevalidator/node"
	"github.com/clustercore/corevalidator/turbine"
	"github.com/clustercore/corevalidator/types"
)

func main() {
	var (
		configFile  = flag.String("config", "", "path to a YAML config file (defaults used if empty)")
		genesisTime = flag.Uint64("genesis-time", uint64(time.Now().Unix()), "genesis time, unix seconds")
		self        = flag.String("self", "", "this validator's pubkey, hex-encoded (32 bytes); random if empty")
		listen      = flag.String("listen", "/ip4/0.0.0.0/udp/9000/quic-v1", "comma-separated libp2p listen multiaddrs")
		bootnodes   = flag.String("bootnodes", "", "comma-separated libp2p bootnode multiaddrs")
		validators  = flag.String("validators", "", "comma-separated hex pubkeys of the leader round-robin set")
		socketCount = flag.Int("sockets", 1, "number of retransmit UDP sockets to bind")
		basePort    = flag.Int("base-port", 9010, "first UDP port to bind for retransmit sockets")
		logLevel    = flag.String("log-level", "info", "log level: debug, info, warn, error")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(*logLevel),
	}))

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			logger.Error("load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	selfPubkey, err := parsePubkey(*self)
	if err != nil {
		logger.Error("parse self pubkey", "error", err)
		os.Exit(1)
	}

	leaderPubkeys, err := parsePubkeyList(*validators)
	if err != nil {
		logger.Error("parse validators", "error", err)
		os.Exit(1)
	}

	sockets, err := bindSockets(*socketCount, *basePort)
	if err != nil {
		logger.Error("bind retransmit sockets", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	n, err := node.New(ctx, node.Config{
		Cfg:         cfg,
		Self:        selfPubkey,
		GenesisTime: *genesisTime,
		Schedule:    types.DefaultEpochSchedule,
		ListenAddrs: splitNonEmpty(*listen),
		Bootnodes:   splitNonEmpty(*bootnodes),
		Leaders:     roundRobinLeaders{validators: leaderPubkeys},
		Sockets:     sockets,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("construct node", "error", err)
		cancel()
		os.Exit(1)
	}

	n.Start()
	logger.Info("validator core running", "self", selfPubkey.String(), "peers", n.PeerCount())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	n.Stop()
	cancel()
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parsePubkey(s string) (types.Pubkey, error) {
	var pk types.Pubkey
	if s == "" {
		if _, err := rand.Read(pk[:]); err != nil {
			return pk, fmt.Errorf("generate random identity: %w", err)
		}
		return pk, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return pk, fmt.Errorf("invalid pubkey %q: %w", s, err)
	}
	if len(b) != len(pk) {
		return pk, fmt.Errorf("pubkey %q must be %d bytes, got %d", s, len(pk), len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

func parsePubkeyList(s string) ([]types.Pubkey, error) {
	fields := splitNonEmpty(s)
	if len(fields) == 0 {
		return nil, nil
	}
	pubkeys := make([]types.Pubkey, 0, len(fields))
	for _, f := range fields {
		pk, err := parsePubkey(f)
		if err != nil {
			return nil, err
		}
		pubkeys = append(pubkeys, pk)
	}
	return pubkeys, nil
}

func splitNonEmpty(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// bindSockets binds count consecutive UDP ports starting at basePort, one
// per retransmit worker (spec.md §4.4: "one worker thread per socket").
func bindSockets(count, basePort int) ([]turbine.Socket, error) {
	sockets := make([]turbine.Socket, 0, count)
	for i := 0; i < count; i++ {
		addr := &net.UDPAddr{IP: net.IPv4zero, Port: basePort + i}
		conn, err := net.ListenUDP("udp", addr)
		if err != nil {
			return nil, fmt.Errorf("listen udp %s: %w", addr, err)
		}
		sockets = append(sockets, turbine.NewUDPSocket(conn))
	}
	return sockets, nil
}
