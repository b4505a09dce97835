package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"time"
)

// Config holds the auditor configuration.
type Config struct {
	// RegistryPath is the directory holding ledger metadata.
	RegistryPath string

	// LedgerID is the ledger to audit; -1 audits every registered ledger.
	LedgerID int64

	// Percentage is the fraction of stored entries to probe per fragment.
	Percentage float64

	// ReadTimeout bounds one entry read round trip.
	ReadTimeout time.Duration

	// Debug enables debug logging.
	Debug bool
}

// parseFlags parses command-line flags into Config.
func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.RegistryPath, "registry", "./registry", "Ledger metadata registry path")
	flag.Int64Var(&cfg.LedgerID, "ledger", -1, "Ledger id to audit (-1 for all)")
	flag.Float64Var(&cfg.Percentage, "percent", 100, "Percentage of stored entries to probe per fragment")
	flag.DurationVar(&cfg.ReadTimeout, "timeout", 10*time.Second, "Entry read timeout")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	flag.Parse()

	return cfg
}

// generateKey creates an ephemeral Ed25519 key. The auditor's identity
// does not need to persist between runs.
func generateKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key:\n%w", err)
	}

	return priv, nil
}
