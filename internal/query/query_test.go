package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mel-project/melblkidx/internal/enc"
	"github.com/mel-project/melblkidx/internal/meltypes"
	"github.com/mel-project/melblkidx/internal/store"
)

func openTestPool(t *testing.T) *store.Pool {
	t.Helper()
	p, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, p.InitSchema(context.Background()))
	t.Cleanup(func() { require.NoError(t, p.Close()) })
	return p
}

func hashAt(b byte) meltypes.Hash {
	var h meltypes.Hash
	h[0] = b
	return h
}

func insertCoin(t *testing.T, p *store.Pool, createTx meltypes.Hash, idx uint8, height uint64, value uint64, denom string, covhash meltypes.Hash, spend *CoinSpendInfo) {
	t.Helper()
	ctx := context.Background()
	conn, err := p.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	val := enc.Uint128FromUint64(value).Bytes()
	var spendTx any
	var spendIdx any
	var spendHeight any
	if spend != nil {
		spendTx = spend.SpendTxHash.String()
		spendIdx = int64(spend.SpendIndex)
		spendHeight = int64(spend.SpendHeight)
	}
	_, err = conn.ExecContext(ctx, `INSERT INTO coins
		(create_txhash, create_index, create_height, spend_txhash, spend_index, spend_height, value, denom, covhash, additional_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		createTx.String(), int64(idx), int64(height), spendTx, spendIdx, spendHeight, val[:], []byte(denom), covhash.String(), []byte{})
	require.NoError(t, err)
}

func collect(t *testing.T, q Query) []CoinInfo {
	t.Helper()
	cur, err := q.Iter(context.Background())
	require.NoError(t, err)
	var out []CoinInfo
	for cur.Next() {
		out = append(out, cur.Coin())
	}
	require.NoError(t, cur.Err())
	return out
}

// P6: query_coins().unspent() yields exactly the rows with null spend fields.
func TestUnspentFiltersNullSpend(t *testing.T) {
	p := openTestPool(t)
	addr := hashAt(0xaa)
	insertCoin(t, p, hashAt(1), 0, 1, 100, "MEL", addr, nil)
	insertCoin(t, p, hashAt(2), 0, 2, 200, "MEL", addr, &CoinSpendInfo{SpendTxHash: hashAt(9), SpendIndex: 0, SpendHeight: 3})

	got := collect(t, New(p).Unspent())
	require.Len(t, got, 1)
	require.Equal(t, hashAt(1), got[0].CreateTxHash)
}

// P7: adding any predicate monotonically shrinks the result set.
func TestAddingPredicateShrinksResults(t *testing.T) {
	p := openTestPool(t)
	addr1 := hashAt(0xaa)
	addr2 := hashAt(0xbb)
	insertCoin(t, p, hashAt(1), 0, 1, 100, "MEL", addr1, nil)
	insertCoin(t, p, hashAt(2), 0, 2, 200, "MEL", addr2, nil)

	all := collect(t, New(p))
	filtered := collect(t, New(p).Covhash(addr1))
	require.LessOrEqual(t, len(filtered), len(all))
	require.Len(t, filtered, 1)
}

func TestCreateHeightRangeBounds(t *testing.T) {
	p := openTestPool(t)
	addr := hashAt(0xaa)
	for h := uint64(1); h <= 5; h++ {
		insertCoin(t, p, hashAt(byte(h)), 0, h, 10, "MEL", addr, nil)
	}

	got := collect(t, New(p).CreateHeightRange(Included(2), Included(4)))
	require.Len(t, got, 3)

	got = collect(t, New(p).CreateHeightRange(Excluded(2), Excluded(4)))
	require.Len(t, got, 1)
	require.Equal(t, uint64(3), got[0].CreateHeight)

	got = collect(t, New(p).CreateHeightRange(Unbounded(), Included(3)))
	require.Len(t, got, 3)
}

func TestDenomFilter(t *testing.T) {
	p := openTestPool(t)
	addr := hashAt(0xaa)
	insertCoin(t, p, hashAt(1), 0, 1, 100, "MEL", addr, nil)
	insertCoin(t, p, hashAt(2), 0, 2, 200, "SYM", addr, nil)

	got := collect(t, New(p).Denom(meltypes.Denom("SYM")))
	require.Len(t, got, 1)
	require.Equal(t, meltypes.Denom("SYM"), got[0].CoinData.Denom)
}

// R2: a coin inserted at height h and later marked spent at height h'
// appears in both create_height_range(h..=h) and spend_height_range(h'..=h').
func TestSpendFieldsAppearInBothRanges(t *testing.T) {
	p := openTestPool(t)
	addr := hashAt(0xaa)
	insertCoin(t, p, hashAt(1), 0, 1, 100, "MEL", addr, &CoinSpendInfo{SpendTxHash: hashAt(9), SpendIndex: 0, SpendHeight: 5})

	byCreate := collect(t, New(p).CreateHeightRange(Included(1), Included(1)))
	require.Len(t, byCreate, 1)

	bySpend := collect(t, New(p).SpendHeightRange(Included(5), Included(5)))
	require.Len(t, bySpend, 1)
	require.Equal(t, byCreate[0].CreateTxHash, bySpend[0].CreateTxHash)
}

func TestSumValueBetween(t *testing.T) {
	p := openTestPool(t)
	addr := hashAt(0xaa)
	for h := uint64(1); h <= 3; h++ {
		insertCoin(t, p, hashAt(byte(h)), 0, h, 1_000_000, "MEL", addr, nil)
	}

	sum, err := New(p).SumValueBetween(context.Background(), "create_height", Included(0), Included(3))
	require.NoError(t, err)
	require.Equal(t, enc.Uint128FromUint64(3_000_000), sum)
}

func TestCursorCloseReleasesConnection(t *testing.T) {
	p := openTestPool(t)
	addr := hashAt(0xaa)
	insertCoin(t, p, hashAt(1), 0, 1, 100, "MEL", addr, nil)

	cur, err := New(p).Iter(context.Background())
	require.NoError(t, err)
	require.NoError(t, cur.Close())

	// the pool should still be usable after abandoning a cursor mid-iteration
	cur2, err := New(p).Iter(context.Background())
	require.NoError(t, err)
	count := 0
	for cur2.Next() {
		count++
	}
	require.NoError(t, cur2.Err())
	require.Equal(t, 1, count)
}

