// Package nodeclienttest provides a deterministic in-memory fake of
// nodeclient.Client for use in internal/ingest's tests, modeled on the
// fixture style of internal/backend/backend_test.go.
package nodeclienttest

import (
	"context"
	"fmt"
	"sort"

	"github.com/mel-project/melblkidx/internal/meltypes"
	"github.com/mel-project/melblkidx/internal/nodeclient"
)

// Fake is an in-memory chain: a fixed sequence of blocks, plus optional
// per-height staker sets and proposer rewards, and per-coin-id overrides
// that every snapshot reports alike (used to simulate the
// Swap/LiqDeposit/LiqWithdraw snapshot-truth overrides).
type Fake struct {
	Blocks         map[uint64]meltypes.Block
	Stakers        map[uint64]map[meltypes.TxHash][]byte
	CoinOverrides  map[meltypes.CoinID]*meltypes.CoinData
	ProposerReward map[uint64]*meltypes.CoinData
}

// NewFake returns an empty Fake ready to be populated by a test.
func NewFake() *Fake {
	return &Fake{
		Blocks:         make(map[uint64]meltypes.Block),
		Stakers:        make(map[uint64]map[meltypes.TxHash][]byte),
		CoinOverrides:  make(map[meltypes.CoinID]*meltypes.CoinData),
		ProposerReward: make(map[uint64]*meltypes.CoinData),
	}
}

// Tip returns the highest height with a block, or 0 if none.
func (f *Fake) Tip() uint64 {
	var max uint64
	for h := range f.Blocks {
		if h > max {
			max = h
		}
	}
	return max
}

// LatestSnapshot implements nodeclient.Client.
func (f *Fake) LatestSnapshot(ctx context.Context) (nodeclient.Snapshot, error) {
	return &fakeSnapshot{fake: f, height: f.Tip()}, nil
}

type fakeSnapshot struct {
	fake   *Fake
	height uint64
}

func (s *fakeSnapshot) CurrentHeader(ctx context.Context) (meltypes.Header, error) {
	blk, ok := s.fake.Blocks[s.height]
	if !ok {
		return meltypes.Header{}, fmt.Errorf("nodeclienttest: no block at height %d", s.height)
	}
	return blk.Header, nil
}

func (s *fakeSnapshot) GetOlder(ctx context.Context, height uint64) (nodeclient.Snapshot, error) {
	if height > s.height {
		return nil, nodeclient.ErrStale
	}
	return &fakeSnapshot{fake: s.fake, height: height}, nil
}

func (s *fakeSnapshot) CurrentBlock(ctx context.Context) (meltypes.Block, error) {
	blk, ok := s.fake.Blocks[s.height]
	if !ok {
		return meltypes.Block{}, fmt.Errorf("nodeclienttest: no block at height %d", s.height)
	}
	return blk, nil
}

func (s *fakeSnapshot) GetCoin(ctx context.Context, id meltypes.CoinID) (*meltypes.CoinData, error) {
	return s.fake.CoinOverrides[id], nil
}

func (s *fakeSnapshot) GetStakersRaw(ctx context.Context, height uint64) (map[meltypes.TxHash][]byte, error) {
	return s.fake.Stakers[height], nil
}

func (s *fakeSnapshot) GetProposerReward(ctx context.Context) (*meltypes.CoinData, meltypes.CoinID, error) {
	reward := s.fake.ProposerReward[s.height]
	if reward == nil {
		return nil, meltypes.CoinID{}, nil
	}
	var id meltypes.CoinID
	id.Index = 0xff // proposer reward coins never collide with a real output index range used in tests
	id.TxHash[0] = byte(s.height)
	id.TxHash[1] = byte(s.height >> 8)
	return reward, id, nil
}

// Heights returns the sorted list of heights with a block, for tests that
// want to assert on ingestion coverage.
func (f *Fake) Heights() []uint64 {
	out := make([]uint64, 0, len(f.Blocks))
	for h := range f.Blocks {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
