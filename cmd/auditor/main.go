package main

import (
	"fmt"
	"os"

	"LedgerGuard/internal/bookie"
	"LedgerGuard/internal/checker"
	"LedgerGuard/internal/ledger"
	"LedgerGuard/internal/logger"
	"LedgerGuard/internal/network"
	"LedgerGuard/internal/registry"
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	os.Exit(code)
}

// run audits the requested ledgers and returns the process exit code:
// zero when every audited ledger is fully replicated, one otherwise.
func run() (int, error) {
	cfg := parseFlags()
	logger.Init(cfg.Debug)

	key, err := generateKey()
	if err != nil {
		return 0, err
	}

	reg, err := registry.Open(cfg.RegistryPath)
	if err != nil {
		return 0, fmt.Errorf("open registry:\n%w", err)
	}
	defer reg.Close()

	// Dial-only node: the auditor never accepts connections.
	node, err := network.NewNode(network.Config{PrivateKey: key})
	if err != nil {
		return 0, fmt.Errorf("create node:\n%w", err)
	}
	defer node.Close()

	client := bookie.NewClient(node, cfg.ReadTimeout)
	defer client.Close()

	ids, err := ledgerIDs(cfg, reg)
	if err != nil {
		return 0, err
	}

	chk := checker.New(client)
	clean := true

	for _, id := range ids {
		ok, err := auditLedger(chk, reg, id, cfg.Percentage)
		if err != nil {
			return 0, err
		}

		clean = clean && ok
	}

	if !clean {
		return 1, nil
	}

	return 0, nil
}

// ledgerIDs resolves which ledgers to audit.
func ledgerIDs(cfg *Config, reg *registry.Registry) ([]int64, error) {
	if cfg.LedgerID >= 0 {
		return []int64{cfg.LedgerID}, nil
	}

	ids, err := reg.List()
	if err != nil {
		return nil, fmt.Errorf("list ledgers:\n%w", err)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("registry is empty")
	}

	return ids, nil
}

// auditLedger checks one ledger and reports its bad fragments. Returns
// true when the ledger is fully replicated.
func auditLedger(chk *checker.Checker, reg *registry.Registry,
	id int64, percentage float64) (bool, error) {

	md, err := reg.Load(id)
	if err != nil {
		return false, fmt.Errorf("load metadata for ledger %d:\n%w", id, err)
	}

	type result struct {
		rc  ledger.ResultCode
		bad []*checker.Fragment
	}

	done := make(chan result, 1)

	chk.CheckLedgerSampled(md, percentage, func(rc ledger.ResultCode, bad []*checker.Fragment) {
		done <- result{rc: rc, bad: bad}
	})

	res := <-done

	if res.rc != ledger.CodeOK {
		logger.Error("audit aborted", "ledger", id, "code", res.rc)
		return false, nil
	}

	if len(res.bad) == 0 {
		logger.Info("ledger fully replicated", "ledger", id)
		return true, nil
	}

	for _, f := range res.bad {
		logger.Warn("bad fragment", "ledger", id, "fragment", f)
		fmt.Printf("ledger %d: %s\n", id, f)
	}

	return false, nil
}
