package main

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lanbridge/lanbridge/internal/cert"
	"github.com/lanbridge/lanbridge/internal/config"
	"github.com/lanbridge/lanbridge/internal/coordinator"
	"github.com/lanbridge/lanbridge/internal/frontend"
	"github.com/lanbridge/lanbridge/internal/logging"
	"github.com/lanbridge/lanbridge/internal/proto"
	"github.com/lanbridge/lanbridge/internal/registry"
	"github.com/lanbridge/lanbridge/internal/service"
	"github.com/lanbridge/lanbridge/internal/transport"
)

func newDaemonCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the lanbridged background service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd, configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML config file (default: $XDG_CONFIG_HOME/lanbridged/config.yaml)")
	return cmd
}

func runDaemon(cmd *cobra.Command, configPath string) error {
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.Setup(cfg.LogLevel)

	identity, err := cert.LoadOrGenerate(cfg.CertDir)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	log.Info().Str("fingerprint", string(identity.Fingerprint)).Msg("device identity ready")

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	auth := transport.NewAuthorizedSet()
	for fp, desc := range cfg.AuthorizedFingerprints {
		auth.Authorize(cert.Fingerprint(fp), desc)
	}

	tr := transport.New(log, identity, auth)
	if err := tr.Listen(ctx, cfg.ListenPort); err != nil {
		return fmt.Errorf("listen on port %d: %w", cfg.ListenPort, err)
	}
	defer tr.Close()

	captureBack, err := service.SelectCapture(ctx, log)
	if err != nil {
		return fmt.Errorf("select capture backend: %w", err)
	}

	emulator, err := service.SelectEmulate(log)
	if err != nil {
		return fmt.Errorf("select emulation backend: %w", err)
	}

	reg := registry.New(64)

	coord := coordinator.New(coordinator.Config{
		Log:          log,
		Registry:     reg,
		Capture:      captureBack,
		Emulator:     emulator,
		Transport:    tr,
		ReleaseChord: cfg.ReleaseChord,
	})

	network, address := frontendAddr(cfg.SocketPath)
	server := frontend.New(log, network, address, coord, auth)

	coordDone := make(chan error, 1)
	go func() { coordDone <- coord.Run(ctx) }()

	// Configured peers are loaded through the same ReqCreatePeer/
	// ReqActivatePeer path the frontend uses, so the coordinator arms
	// their capture barrier (captureBack.Create) exactly as it would for
	// a peer added at runtime via `lanbridged connect`.
	loadConfiguredPeers(ctx, log, coord, cfg.Peers)

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.Run(ctx) }()

	log.Info().
		Str("socket", address).
		Uint16("port", cfg.ListenPort).
		Msg("lanbridged ready")

	<-ctx.Done()
	_ = server.Close()
	<-coordDone
	<-serverDone
	return nil
}

// loadConfiguredPeers creates and activates every on-disk peer by sending
// requests through coord's own channel, the same path the frontend uses,
// so ReqCreatePeer/ReqActivatePeer's capture-barrier wiring in
// handle_request.go runs for config-loaded peers too.
func loadConfiguredPeers(ctx context.Context, log zerolog.Logger, coord *coordinator.Coordinator, peers []config.PeerConfig) {
	for _, pc := range peers {
		createDone := make(chan coordinator.Result, 1)
		select {
		case coord.Requests() <- coordinator.Request{Kind: coordinator.ReqCreatePeer, Config: toRegistryConfig(pc), Done: createDone}:
		case <-ctx.Done():
			return
		}
		var created coordinator.Result
		select {
		case created = <-createDone:
		case <-ctx.Done():
			return
		}
		if created.Err != nil {
			log.Warn().Err(created.Err).Str("hostname", pc.Hostname).Msg("failed to load configured peer")
			continue
		}

		activateDone := make(chan coordinator.Result, 1)
		select {
		case coord.Requests() <- coordinator.Request{Kind: coordinator.ReqActivatePeer, Handle: created.Handle, Done: activateDone}:
		case <-ctx.Done():
			return
		}
		select {
		case res := <-activateDone:
			if res.Err != nil {
				log.Warn().Err(res.Err).Str("hostname", pc.Hostname).Msg("failed to activate configured peer")
			}
		case <-ctx.Done():
		}
	}
}

func toRegistryConfig(pc config.PeerConfig) registry.Config {
	cfg := registry.Config{
		Hostname:  pc.Hostname,
		Port:      pc.Port,
		EnterHook: pc.EnterHook,
	}
	switch pc.Position {
	case "right":
		cfg.Position = proto.PositionRight
	case "top":
		cfg.Position = proto.PositionTop
	case "bottom":
		cfg.Position = proto.PositionBottom
	default:
		cfg.Position = proto.PositionLeft
	}
	return cfg
}

// frontendAddr translates the configured socket path into a net.Listen
// network/address pair: Windows has no native Unix domain socket support
// in the spec's target runtime, so its default path is already a loopback
// TCP address (config.DefaultSocketPath), every other OS gets a Unix
// socket path.
func frontendAddr(socketPath string) (network, address string) {
	if runtime.GOOS == "windows" {
		return "tcp", socketPath
	}
	return "unix", socketPath
}
