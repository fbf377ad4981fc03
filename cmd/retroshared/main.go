package main

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rs-go/retroshare-node/internal/gxs"
	"github.com/rs-go/retroshare-node/internal/rscore"
	"github.com/rs-go/retroshare-node/pkg/config"
	"github.com/rs-go/retroshare-node/pkg/ids"
)

func main() {
	rootCmd := &cobra.Command{Use: "retroshared"}
	rootCmd.AddCommand(startCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func startCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start the node and serve until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(env)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "config environment overlay (config/<env>.yaml)")
	return cmd
}

func runStart(env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return err
	}

	log := newLogger(cfg.Logging.Level)

	identity, self, err := rscore.LoadOrCreateIdentity(cfg.Identity.KeyringDir)
	if err != nil {
		return err
	}
	log.WithField("peer", self.String()).Info("retroshared: identity loaded")

	gxsStore, err := gxs.Open(log, gxs.OpenStoreOptions{
		Dir:        cfg.Gxs.StoreDir,
		Passphrase: cfg.Gxs.Passphrase,
	})
	if err != nil {
		return err
	}
	defer gxsStore.Close()

	ctrl := rscore.New(rscore.Options{
		Log:             log,
		Self:            self,
		Identity:        identity,
		GxsStore:        gxsStore,
		AllowedKbPerSec: cfg.BwCtrl.AllowedKbPerSec,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, bp := range cfg.Network.BootstrapPeers {
		dialBootstrapPeer(ctx, ctrl, log, bp, cfg.Network.HiddenNode)
	}

	ctrl.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.ListenAndServe(ctx, cfg.Network.ListenAddr) }()

	select {
	case <-sigCh:
		log.Info("retroshared: shutting down")
		cancel()
	case err := <-errCh:
		cancel()
		return err
	}
	return nil
}

// dialBootstrapPeer seeds the shared directory with a friend entry and dials
// it outbound. Unlike a peer learned via Discovery, a bootstrap entry must
// supply its own PeerID and certificate up front: nothing else has
// introduced it yet for the directory to merge a record from.
func dialBootstrapPeer(ctx context.Context, ctrl *rscore.Controller, log *logrus.Entry, bp config.BootstrapPeer, hiddenDefault bool) {
	logEntry := log.WithField("addr", bp.Address)

	pa, err := ids.ParsePeerAddr(bp.Address, hiddenDefault)
	if err != nil {
		logEntry.WithError(err).Warn("retroshared: skipping bad bootstrap address")
		return
	}
	peerID, err := ids.ParsePeerID(bp.PeerID)
	if err != nil {
		logEntry.WithError(err).Warn("retroshared: skipping bootstrap entry with bad peer_id")
		return
	}
	cert, err := loadPeerCert(bp.CertFile)
	if err != nil {
		logEntry.WithError(err).Warn("retroshared: skipping bootstrap entry with unreadable cert_file")
		return
	}

	ctrl.Directory().Put(ids.PeerRecord{
		PeerID:            peerID,
		DisplayName:       bp.PeerID,
		ExternalAddresses: []ids.PeerAddr{pa},
		HiddenNode:        pa.Hidden,
	})

	go func() {
		if err := ctrl.DialPeer(ctx, peerID, []string{bp.Address}, cert); err != nil {
			logEntry.WithError(err).WithField("peer", peerID.String()).Warn("retroshared: bootstrap dial failed")
		}
	}()
}

func loadPeerCert(path string) (*x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return x509.ParseCertificate(raw)
	}
	return x509.ParseCertificate(block.Bytes)
}

func newLogger(level string) *logrus.Entry {
	l := logrus.New()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
	return logrus.NewEntry(l)
}
