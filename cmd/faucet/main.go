// Command faucet runs the Espresso-style faucet service: an HTTP
// surface in front of the persistent request queue, transfer worker
// pool, and record-breaker controller implemented in package faucet.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tyler-smith/go-bip39"
	"gopkg.in/urfave/cli.v1"

	"github.com/EspressoSystems/faucet/faucet"
	"github.com/EspressoSystems/faucet/faucet/httpapi"
	"github.com/EspressoSystems/faucet/faucet/memwallet"
	"github.com/EspressoSystems/faucet/log"
)

const clientIdentifier = "faucet"

const serverShutdownTimeout = 10 * time.Second

func main() {
	app := cli.NewApp()
	app.Name = clientIdentifier
	app.Usage = "Grants a native asset seed to a provided public key"
	app.Flags = appFlags
	app.Commands = []cli.Command{dumpConfigCommand}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	log.SetLevel(log.ParseLvl(cfg.Verbosity))
	if !bip39.IsMnemonicValid(cfg.Mnemonic) {
		return fmt.Errorf("invalid mnemonic")
	}

	password := cfg.KeystorePassword
	if password == "" {
		password, err = randomPassword(16)
		if err != nil {
			return err
		}
		log.Info("generated a random keystore password")
	}

	if err := os.MkdirAll(cfg.KeystorePath, 0700); err != nil {
		return fmt.Errorf("failed to create keystore path: %w", err)
	}

	// The wallet/keystore implementation is a narrow collaborator (spec
	// §1): this CLI wires the in-memory reference wallet so the service
	// is runnable standalone. Swap in a ledger-backed implementation of
	// faucet.Wallet for production use.
	wallet := memwallet.New(0)
	_ = bip39.NewSeed(cfg.Mnemonic, password) // derivation hook for a real ledger-backed wallet
	wallet.Seed(faucet.NewAmount(cfg.GrantSize * uint64(cfg.NumRecords) * 2))

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, err := faucet.Bootstrap(appCtx, faucet.Options{
		Wallet:   wallet,
		QueueDir: cfg.KeystorePath + "/queue",
		KeyLabel: "faucet",
		Cfg: faucet.Config{
			GrantSize:   faucet.NewAmount(cfg.GrantSize),
			NumGrants:   cfg.NumGrants,
			FeeSize:     faucet.NewAmount(cfg.FeeSize),
			NumRecords:  cfg.NumRecords,
			NumWorkers:  cfg.NumWorkers,
			MaxQueueLen: cfg.MaxQueueLen,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to bootstrap faucet: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.FaucetPort),
		Handler: httpapi.NewHandler("", f.State),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("faucet HTTP server listening", "port", cfg.FaucetPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// The HTTP server is already answering /healthcheck (reporting
	// Initializing) before this runs, so a load balancer doesn't kill
	// the instance while the ledger scan and initial record breakup
	// below are still in flight.
	go func() {
		if err := f.Finish(); err != nil {
			errCh <- fmt.Errorf("failed to finish bootstrapping faucet: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down")
	case err := <-errCh:
		log.Error("shutting down due to an error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("error shutting down HTTP server", "err", err)
	}
	return f.Shutdown()
}

func randomPassword(n int) (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
