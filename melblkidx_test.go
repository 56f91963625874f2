package melblkidx

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mel-project/melblkidx/internal/enc"
	"github.com/mel-project/melblkidx/internal/meltypes"
	"github.com/mel-project/melblkidx/internal/nodeclient/nodeclienttest"
)

func hashAt(b byte) meltypes.Hash {
	var h meltypes.Hash
	h[0] = b
	return h
}

func TestOpenIngestsAndCloses(t *testing.T) {
	fake := nodeclienttest.NewFake()
	covhash := hashAt(0xaa)
	tx := meltypes.Transaction{
		Kind: meltypes.TxKindNormal,
		Outputs: []meltypes.CoinData{{
			Value:   enc.Uint128FromUint64(500),
			Denom:   meltypes.DenomMel,
			Covhash: covhash,
		}},
	}
	tx.SetHashNoSigs(hashAt(1))
	fake.Blocks[1] = meltypes.Block{
		Header: meltypes.Header{
			Height:        1,
			BlockHash:     hashAt(100),
			FeePool:       enc.Uint128FromUint64(0),
			FeeMultiplier: enc.Uint128FromUint64(1),
			DoscSpeed:     enc.Uint128FromUint64(0),
		},
		Transactions: []meltypes.Transaction{tx},
	}

	spendTx := meltypes.Transaction{
		Kind: meltypes.TxKindNormal,
		Inputs: []meltypes.TxInput{{
			CoinID: meltypes.CoinID{TxHash: hashAt(1), Index: 0},
		}},
	}
	spendTx.SetHashNoSigs(hashAt(2))
	fake.Blocks[2] = meltypes.Block{
		Header: meltypes.Header{
			Height:        2,
			BlockHash:     hashAt(101),
			FeePool:       enc.Uint128FromUint64(0),
			FeeMultiplier: enc.Uint128FromUint64(1),
			DoscSpeed:     enc.Uint128FromUint64(0),
		},
		Transactions: []meltypes.Transaction{spendTx},
	}

	ctx := context.Background()
	h, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"), fake)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		max, err := h.MaxHeight(ctx)
		return err == nil && max >= 2
	}, time.Second, 5*time.Millisecond)

	bal, err := h.BalanceAt(ctx, covhash, 1)
	require.NoError(t, err)
	require.Equal(t, enc.Uint128FromUint64(500), bal)

	height, found, err := h.TxHashToHeight(ctx, hashAt(2))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(2), height)

	blkHeight, found, err := h.BlkHashToHeight(ctx, hashAt(100).String())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(1), blkHeight)

	info, err := h.HeightInfoAt(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, info)

	require.NoError(t, h.Close())
}

func TestBalanceAtUnknownAddressIsZero(t *testing.T) {
	fake := nodeclienttest.NewFake()
	ctx := context.Background()
	h, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"), fake)
	require.NoError(t, err)
	defer h.Close()

	bal, err := h.BalanceAt(ctx, hashAt(0xff), 0)
	require.NoError(t, err)
	require.Equal(t, enc.Uint128{}, bal)
}
