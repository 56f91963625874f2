// Package melblkidx is the public facade for the coin indexer: opening a
// store, spawning its ingestion loop, and exposing the read-side query,
// balance, and height-lookup operations. Grounded on
// Klingon-tech-klingdex/cmd/klingond/main.go's construct → spawn → signal →
// graceful-shutdown wiring sequence, condensed into a single library entry
// point rather than a daemon main.
package melblkidx

import (
	"context"
	"fmt"
	"sync"

	"github.com/mel-project/melblkidx/internal/balance"
	"github.com/mel-project/melblkidx/internal/enc"
	"github.com/mel-project/melblkidx/internal/ingest"
	"github.com/mel-project/melblkidx/internal/meltypes"
	"github.com/mel-project/melblkidx/internal/nodeclient"
	"github.com/mel-project/melblkidx/internal/query"
	"github.com/mel-project/melblkidx/internal/store"
	"github.com/mel-project/melblkidx/pkg/logging"
)

// Query re-exports the coin query builder's entry point so callers never
// need to import internal/query directly.
type Query = query.Query

// Bound re-exports the range-bound constructors used by Query's
// *Range methods.
type Bound = query.Bound

// CoinInfo re-exports a matched query row.
type CoinInfo = query.CoinInfo

// HeightInfo re-exports a headvars row.
type HeightInfo = store.HeightInfoRow

// Uint128 re-exports the 128-bit value type used for coin values, fees,
// and balances.
type Uint128 = enc.Uint128

var (
	Unbounded = query.Unbounded
	Included  = query.Included
	Excluded  = query.Excluded
)

// Handle is an open indexer instance: a store pool with a live ingestion
// loop feeding it.
type Handle struct {
	pool   *store.Pool
	cancel context.CancelFunc
	wg     sync.WaitGroup

	trackersMu sync.Mutex
	trackers   map[meltypes.Address]*balance.Tracker
}

// Open opens (creating if absent) the SQLite database at path, migrates its
// schema, and spawns the ingestion loop against client. The returned Handle
// must be closed with Close.
func Open(ctx context.Context, path string, client nodeclient.Client) (*Handle, error) {
	pool, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("melblkidx: open store: %w", err)
	}
	if err := pool.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("melblkidx: init schema: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		pool:     pool,
		cancel:   cancel,
		trackers: make(map[meltypes.Address]*balance.Tracker),
	}

	loop := ingest.New(pool, client)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		loop.Run(loopCtx)
	}()

	logging.GetDefault().Component("melblkidx").Info("opened", "path", path)
	return h, nil
}

// Close stops the ingestion loop, waits for it to exit, and closes the
// underlying store. A second call finds the loop already stopped and
// closes an already closed database, which returns nil.
func (h *Handle) Close() error {
	h.cancel()
	h.wg.Wait()
	return h.pool.Close()
}

// Coins returns a fresh, unconstrained query over the indexed coin set.
// Chain its combinator methods to narrow the result before calling Iter.
func (h *Handle) Coins() Query {
	return query.New(h.pool)
}

// BalanceAt returns covhash's total coin value alive at height: the sum of
// every coin it owns that was created at or before height and either
// remains unspent or was spent after height. Each address gets its own
// cache-assisted Tracker, created lazily on first use and reused across
// calls so repeated probes amortize, per spec.md §4.4.
func (h *Handle) BalanceAt(ctx context.Context, covhash meltypes.Address, height uint64) (Uint128, error) {
	return h.trackerFor(covhash).BalanceAt(ctx, height)
}

func (h *Handle) trackerFor(covhash meltypes.Address) *balance.Tracker {
	h.trackersMu.Lock()
	defer h.trackersMu.Unlock()
	if t, ok := h.trackers[covhash]; ok {
		return t
	}
	t := balance.New(query.New(h.pool).Covhash(covhash))
	h.trackers[covhash] = t
	return t
}

// MaxHeight returns the greatest height committed to the store, or 0 if the
// store is empty.
func (h *Handle) MaxHeight(ctx context.Context) (uint64, error) {
	return store.MaxHeight(ctx, h.pool)
}

// HeightInfoAt looks up the headvars row for height, if indexed.
func (h *Handle) HeightInfoAt(ctx context.Context, height uint64) (*HeightInfo, error) {
	return store.GetHeightInfo(ctx, h.pool, height)
}

// BlkHashToHeight looks up the height of the block with the given hex
// block hash, if indexed.
func (h *Handle) BlkHashToHeight(ctx context.Context, blkhash string) (uint64, bool, error) {
	return store.BlkHashToHeight(ctx, h.pool, blkhash)
}

// TxHashToHeight looks up the height at which a transaction was confirmed,
// by scanning the coins table for any coin spent by it. It returns false if
// the transaction spent no indexed coin.
func (h *Handle) TxHashToHeight(ctx context.Context, txHash meltypes.TxHash) (uint64, bool, error) {
	cur, err := query.New(h.pool).SpendTxHash(txHash).Iter(ctx)
	if err != nil {
		return 0, false, err
	}
	defer cur.Close()
	if !cur.Next() {
		if err := cur.Err(); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}
	return cur.Coin().SpendInfo.SpendHeight, true, nil
}
