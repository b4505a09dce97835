package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"LedgerGuard/internal/bookie"
	"LedgerGuard/internal/logger"
	"LedgerGuard/internal/network"
	"LedgerGuard/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point with error handling.
func run() error {
	cfg := parseFlags()
	logger.Init(cfg.Debug)

	var err error
	cfg.PrivateKey, err = loadOrGenerateKey(cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("load key:\n%w", err)
	}

	st, err := store.Open(cfg.DataPath)
	if err != nil {
		return fmt.Errorf("open store:\n%w", err)
	}
	defer st.Close()

	node, err := network.NewNode(network.Config{
		PrivateKey: cfg.PrivateKey,
		ListenAddr: cfg.ListenAddress,
	})
	if err != nil {
		return fmt.Errorf("create node:\n%w", err)
	}

	bookie.NewServer(node, st)

	if err := node.Start(); err != nil {
		return fmt.Errorf("start node:\n%w", err)
	}
	defer node.Close()

	printStartupInfo(cfg, node)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")

	return nil
}

// printStartupInfo displays bookie configuration at startup.
func printStartupInfo(cfg *Config, node *network.Node) {
	pubKey := cfg.PrivateKey.Public().(ed25519.PublicKey)

	logger.Info("starting bookie",
		"pubkey", hex.EncodeToString(pubKey),
		"listen", node.Addr(),
		"data", cfg.DataPath,
	)
}
