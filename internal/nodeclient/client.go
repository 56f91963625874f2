// Package nodeclient defines the remote validator node interface the
// ingestion loop consumes. The node's own implementation (network
// transport, wire codec, trust/checkpoint handling) is out of scope for
// this repository; only the consumed shape is specified here, modeled on
// the backend.Backend interface style this codebase already uses for
// pluggable read-only data providers.
package nodeclient

import (
	"context"
	"errors"

	"github.com/mel-project/melblkidx/internal/meltypes"
)

// Sentinel errors surfaced by implementations of Client and Snapshot.
var (
	// ErrStale is returned when a snapshot can no longer serve a request
	// because the node has pruned the history it pinned.
	ErrStale = errors.New("nodeclient: snapshot is stale")
	// ErrUnavailable covers any other transient network/RPC failure; the
	// ingestion loop treats it identically to ErrStale (restart the pass).
	ErrUnavailable = errors.New("nodeclient: node unavailable")
)

// Client is the entry point for talking to a remote validator node.
type Client interface {
	// LatestSnapshot returns a snapshot pinned at the node's current tip.
	LatestSnapshot(ctx context.Context) (Snapshot, error)
}

// Snapshot is an immutable view of the ledger pinned at some height.
type Snapshot interface {
	// CurrentHeader returns the header of the height this snapshot is
	// pinned at.
	CurrentHeader(ctx context.Context) (meltypes.Header, error)

	// GetOlder returns a snapshot pinned at an earlier height. Implementations
	// may also support height equal to or, depending on the node's pruning
	// policy, unavailable; unavailability surfaces as ErrStale.
	GetOlder(ctx context.Context, height uint64) (Snapshot, error)

	// CurrentBlock returns the full block at the height this snapshot is
	// pinned at.
	CurrentBlock(ctx context.Context) (meltypes.Block, error)

	// GetCoin looks up a coin's current data by id. A nil CoinData with a
	// nil error means the coin does not exist at this snapshot.
	GetCoin(ctx context.Context, id meltypes.CoinID) (*meltypes.CoinData, error)

	// GetStakersRaw returns the raw, undecoded staker documents active at
	// this snapshot's height, keyed by the staking transaction's hash. A
	// nil map with a nil error means the node has no staker set to report
	// (e.g. height 0).
	GetStakersRaw(ctx context.Context, height uint64) (map[meltypes.TxHash][]byte, error)

	// GetProposerReward returns the synthetic proposer reward coin credited
	// at this snapshot's height, and the coin id it would be stored under.
	// A nil CoinData with a nil error means no reward was credited at this
	// height.
	GetProposerReward(ctx context.Context) (*meltypes.CoinData, meltypes.CoinID, error)
}
