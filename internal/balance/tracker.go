// Package balance implements the cache-assisted, nearest-neighbor-delta
// balance tracker. Grounded directly on original_source/src/balance.rs for
// the algorithm; the sorted height->balance cache is implemented with
// github.com/google/btree (grounded as a direct dependency of the pack's
// other complete example repo, AKJUS-bsc-erigon) rather than a plain
// map, since the nearest-cached-height-on-each-side lookup needs an
// ordered structure.
package balance

import (
	"context"
	"math/big"
	"sync"

	"github.com/google/btree"

	"github.com/mel-project/melblkidx/internal/enc"
	"github.com/mel-project/melblkidx/internal/query"
)

type cacheEntry struct {
	height  uint64
	balance *big.Int
}

func lessEntry(a, b cacheEntry) bool { return a.height < b.height }

// Tracker wraps a base query and owns a monotonically growing,
// lock-protected height->balance cache.
type Tracker struct {
	q     query.Query
	mu    sync.Mutex
	cache *btree.BTreeG[cacheEntry]
}

// New wraps q in a fresh, empty Tracker.
func New(q query.Query) *Tracker {
	return &Tracker{q: q, cache: btree.NewG(32, lessEntry)}
}

// BalanceAt implements the balance_at(h) contract of spec.md §4.4.
func (t *Tracker) BalanceAt(ctx context.Context, h uint64) (enc.Uint128, error) {
	if balance, ok := t.cacheGet(h); ok {
		return enc.Uint128FromBigInt(balance), nil
	}

	if t.cacheLen() == 0 {
		total, err := t.q.AliveSumAt(ctx, h)
		if err != nil {
			return enc.Uint128{}, err
		}
		t.memoize(h, total.BigInt(), nil, nil)
		return total, nil
	}

	prev, havePrev := t.cacheDescendLessThan(h)
	next, haveNext := t.cacheAscendGreaterThan(h)

	useNext := false
	switch {
	case havePrev && haveNext:
		dPrev := h - prev.height
		dNext := next.height - h
		// Ties resolve toward prev: only switch to next when it is
		// strictly closer.
		useNext = dNext < dPrev
	case haveNext && !havePrev:
		useNext = true
	}

	var balance *big.Int
	if useNext {
		diff, err := t.q.DiffBetween(ctx, h, next.height)
		if err != nil {
			return enc.Uint128{}, err
		}
		balance = new(big.Int).Sub(next.balance, diff)
	} else {
		diff, err := t.q.DiffBetween(ctx, prev.height, h)
		if err != nil {
			return enc.Uint128{}, err
		}
		balance = new(big.Int).Add(prev.balance, diff)
	}

	var prevBal, nextBal *big.Int
	if havePrev {
		prevBal = prev.balance
	}
	if haveNext {
		nextBal = next.balance
	}
	t.memoize(h, balance, prevBal, nextBal)

	return enc.Uint128FromBigInt(balance), nil
}

// memoize stores balance at h unless it equals either neighbour's cached
// value, per spec.md §4.4 step 4 (avoids polluting the cache with flat
// intervals).
func (t *Tracker) memoize(h uint64, balance, prevBal, nextBal *big.Int) {
	if (prevBal != nil && balance.Cmp(prevBal) == 0) || (nextBal != nil && balance.Cmp(nextBal) == 0) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache.ReplaceOrInsert(cacheEntry{height: h, balance: balance})
}

func (t *Tracker) cacheGet(h uint64) (*big.Int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.cache.Get(cacheEntry{height: h})
	if !ok {
		return nil, false
	}
	return e.balance, true
}

func (t *Tracker) cacheLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cache.Len()
}

func (t *Tracker) cacheDescendLessThan(h uint64) (cacheEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var found cacheEntry
	ok := false
	t.cache.DescendLessThan(cacheEntry{height: h}, func(e cacheEntry) bool {
		found = e
		ok = true
		return false
	})
	return found, ok
}

func (t *Tracker) cacheAscendGreaterThan(h uint64) (cacheEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var found cacheEntry
	ok := false
	t.cache.AscendGreaterOrEqual(cacheEntry{height: h + 1}, func(e cacheEntry) bool {
		found = e
		ok = true
		return false
	})
	return found, ok
}
