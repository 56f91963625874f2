// Command melblkidx runs a minimal example indexer: it opens a store at the
// configured path, ingests from a node client, and periodically reports the
// MEL in circulation, mirroring original_source/examples/blkidx.rs's
// circulating-supply polling loop.
//
// The real remote-node RPC client is out of scope for this repository
// (spec.md §1): only its consumed internal/nodeclient interface is defined
// here, so this driver demonstrates the wiring against an in-memory fixture
// client rather than a live network connection. Swap in a real
// nodeclient.Client implementation to point this at an actual node.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mel-project/melblkidx"
	"github.com/mel-project/melblkidx/internal/config"
	"github.com/mel-project/melblkidx/internal/enc"
	"github.com/mel-project/melblkidx/internal/meltypes"
	"github.com/mel-project/melblkidx/internal/nodeclient/nodeclienttest"
	"github.com/mel-project/melblkidx/pkg/logging"
)

var (
	version = "0.1.0-dev"
)

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.melblkidx", "Data directory")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	log := logging.New(&logging.Config{
		Level:      *logLevel,
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("melblkidx %s", version)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*dataDir)
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}
	cfg.Logging.Level = *logLevel

	log = logging.New(&logging.Config{Level: cfg.Logging.Level, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)
	log.Info("config loaded", "path", config.ConfigPath(*dataDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := demoClient()

	handle, err := melblkidx.Open(ctx, cfg.StorePath, client)
	if err != nil {
		log.Fatal("failed to open indexer", "error", err)
	}

	log.Info("indexer started", "store", cfg.StorePath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			log.Info("shutting down...")
			if err := handle.Close(); err != nil {
				log.Error("error closing indexer", "error", err)
			}
			return
		case <-ticker.C:
			reportCirculation(ctx, log, handle)
		}
	}
}

func reportCirculation(ctx context.Context, log *logging.Logger, handle *melblkidx.Handle) {
	start := time.Now()
	max, err := handle.MaxHeight(ctx)
	if err != nil {
		log.Error("max height", "error", err)
		return
	}

	cur, err := handle.Coins().Unspent().Denom(meltypes.DenomMel).Iter(ctx)
	if err != nil {
		log.Error("query coins", "error", err)
		return
	}
	defer cur.Close()

	var total enc.Uint128
	for cur.Next() {
		total = total.Add(cur.Coin().CoinData.Value)
	}
	if err := cur.Err(); err != nil {
		log.Error("iterate coins", "error", err)
		return
	}

	log.Infof("%s MEL in circulation at height %d (%s)", total.BigInt().String(), max, time.Since(start))
}

// demoClient builds a small in-memory fixture so this example runs without a
// live node connection. A real deployment supplies its own
// nodeclient.Client.
func demoClient() *nodeclienttest.Fake {
	fake := nodeclienttest.NewFake()
	covhash := meltypes.Address{0xaa}
	tx := meltypes.Transaction{
		Kind: meltypes.TxKindNormal,
		Outputs: []meltypes.CoinData{{
			Value:   enc.Uint128FromUint64(1_000_000_000),
			Denom:   meltypes.DenomMel,
			Covhash: covhash,
		}},
	}
	tx.SetHashNoSigs(meltypes.TxHash{0x01})
	fake.Blocks[1] = meltypes.Block{
		Header: meltypes.Header{
			Height:        1,
			BlockHash:     meltypes.BlockHash{0x10},
			FeePool:       enc.Uint128FromUint64(0),
			FeeMultiplier: enc.Uint128FromUint64(1),
			DoscSpeed:     enc.Uint128FromUint64(0),
		},
		Transactions: []meltypes.Transaction{tx},
	}
	return fake
}
