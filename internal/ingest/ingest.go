// Package ingest implements the indexer's ingestion loop: pulling blocks
// from the remote node in height order, deriving coin mutations (including
// the Swap/LiqDeposit/LiqWithdraw snapshot-truth overrides), and
// committing each height atomically. Grounded on
// original_source/src/lib.rs's indexer_loop/indexer_loop_once for the
// derivation algorithm and on
// Klingon-tech-klingdex/internal/node/retry_worker.go for the Go
// goroutine/context/select task-lifetime shape.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/mel-project/melblkidx/internal/enc"
	"github.com/mel-project/melblkidx/internal/meltypes"
	"github.com/mel-project/melblkidx/internal/nodeclient"
	"github.com/mel-project/melblkidx/internal/store"
	"github.com/mel-project/melblkidx/pkg/logging"
)

// RetryDelay is the fixed outer-loop backoff on pass failure, per spec.md
// §4.5 ("log and sleep 1 s, then retry").
const RetryDelay = time.Second

// Loop runs the ingestion task. It is bound to a context: cancelling ctx
// stops the loop at its next suspension point.
type Loop struct {
	pool   *store.Pool
	client nodeclient.Client
	log    *logging.Logger

	lastStakesHash meltypes.Hash
}

// New builds a Loop over pool, pulling blocks from client.
func New(pool *store.Pool, client nodeclient.Client) *Loop {
	return &Loop{
		pool:   pool,
		client: client,
		log:    logging.GetDefault().Component("ingest"),
	}
}

// Run blocks, performing passes until ctx is cancelled. Each failed pass is
// logged and retried after RetryDelay, per spec.md §4.5's outer loop.
func (l *Loop) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		passID := uuid.NewString()
		if err := l.runPass(ctx, passID); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Warn("ingestion pass failed", "pass", passID, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(RetryDelay):
			}
		}
	}
}

// runPass executes one full catch-up pass: from our_highest+1 through the
// node's current tip, inclusive.
func (l *Loop) runPass(ctx context.Context, passID string) error {
	ourHighest, err := store.MaxHeight(ctx, l.pool)
	if err != nil {
		return fmt.Errorf("ingest: read our_highest: %w", err)
	}

	snap, err := l.client.LatestSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("ingest: latest snapshot: %w", err)
	}
	header, err := snap.CurrentHeader(ctx)
	if err != nil {
		return fmt.Errorf("ingest: current header: %w", err)
	}
	theirHighest := header.Height

	// Open question resolution: the starting height is exclusive of
	// our_highest, per original_source/src/lib.rs's indexer_loop_once
	// (`let start = our_highest + 1;`).
	start := ourHighest + 1

	for h := start; h <= theirHighest; h++ {
		if ctx.Err() != nil {
			return nil
		}
		pinned, err := snap.GetOlder(ctx, h)
		if err != nil {
			return fmt.Errorf("ingest: pin height %d: %w", h, err)
		}
		block, err := pinned.CurrentBlock(ctx)
		if err != nil {
			return fmt.Errorf("ingest: fetch block %d: %w", h, err)
		}
		if err := l.ingestHeight(ctx, pinned, h, block); err != nil {
			return fmt.Errorf("ingest: height %d: %w", h, err)
		}
		l.log.Debug("ingested height", "pass", passID, "height", h)
	}
	return nil
}

// mutation is the set of coin creations and spends derived from one block,
// keyed exactly as spec.md §4.5 step 4 describes.
type mutation struct {
	newCoins   map[meltypes.CoinID]meltypes.CoinData
	spentCoins map[meltypes.CoinID]spentRef
}

type spentRef struct {
	txHash meltypes.TxHash
	index  uint64
}

func newMutation() *mutation {
	return &mutation{
		newCoins:   make(map[meltypes.CoinID]meltypes.CoinData),
		spentCoins: make(map[meltypes.CoinID]spentRef),
	}
}

// ingestHeight derives and commits the mutations for one block.
func (l *Loop) ingestHeight(ctx context.Context, pinned nodeclient.Snapshot, h uint64, block meltypes.Block) error {
	mut := newMutation()

	reward, rewardID, err := pinned.GetProposerReward(ctx)
	if err != nil {
		return fmt.Errorf("proposer reward: %w", err)
	}
	if reward != nil {
		mut.newCoins[rewardID] = *reward
	}

	for _, tx := range block.Transactions {
		txHash := tx.HashNoSigs()
		for i, out := range tx.Outputs {
			mut.newCoins[meltypes.CoinID{TxHash: txHash, Index: uint8(i)}] = out
		}

		switch tx.Kind {
		case meltypes.TxKindSwap:
			if err := l.transmute(ctx, pinned, mut, txHash, 0, 0); err != nil {
				return err
			}
		case meltypes.TxKindLiqDeposit:
			if err := l.transmute(ctx, pinned, mut, txHash, 0, 1); err != nil {
				return err
			}
		case meltypes.TxKindLiqWithdraw:
			// Inclusive upper bound: one extra phantom output index may be
			// materialized by the ledger beyond the declared outputs.
			if err := l.transmute(ctx, pinned, mut, txHash, 0, uint8(len(tx.Outputs))); err != nil {
				return err
			}
		}

		for i, in := range tx.Inputs {
			mut.spentCoins[in.CoinID] = spentRef{txHash: txHash, index: uint64(i)}
		}
	}

	var stakers map[meltypes.TxHash][]byte
	if block.Header.StakesHash != l.lastStakesHash {
		stakers, err = pinned.GetStakersRaw(ctx, h)
		if err != nil {
			return fmt.Errorf("stakers: %w", err)
		}
		l.lastStakesHash = block.Header.StakesHash
	}

	return l.commit(ctx, h, block, mut, stakers)
}

// transmute replaces new-coins entries in [lo, hi] (inclusive) for txHash
// with whatever the pinned snapshot currently reports for that coin id, or
// removes the entry if the snapshot reports nothing (the coin was spent
// within the same block). Implements the Swap/LiqDeposit/LiqWithdraw rule
// of spec.md §4.5 step 4.
func (l *Loop) transmute(ctx context.Context, pinned nodeclient.Snapshot, mut *mutation, txHash meltypes.TxHash, lo, hi uint8) error {
	for idx := lo; ; idx++ {
		id := meltypes.CoinID{TxHash: txHash, Index: idx}
		delete(mut.newCoins, id)

		data, err := pinned.GetCoin(ctx, id)
		if err != nil {
			return fmt.Errorf("transmute coin %d: %w", idx, err)
		}
		if data != nil {
			mut.newCoins[id] = *data
		}
		if idx == hi {
			break
		}
	}
	return nil
}

// commit applies mut and the block's own rows in a single transaction.
func (l *Loop) commit(ctx context.Context, h uint64, block meltypes.Block, mut *mutation, stakers map[meltypes.TxHash][]byte) error {
	conn, err := l.pool.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return backoff.Retry(func() error {
		return l.commitOnce(ctx, conn, h, block, mut, stakers)
	}, backoff.WithContext(backoff.NewConstantBackOff(store.RetryDelay), ctx))
}

func (l *Loop) commitOnce(ctx context.Context, conn *sql.Conn, h uint64, block meltypes.Block, mut *mutation, stakers map[meltypes.TxHash][]byte) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for id, data := range mut.newCoins {
		val := data.Value.Bytes()
		_, err := tx.ExecContext(ctx, `INSERT INTO coins
			(create_txhash, create_index, create_height, value, denom, covhash, additional_data)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(create_txhash, create_index, create_height) DO NOTHING`,
			id.TxHash.String(), int64(id.Index), int64(h), val[:], data.Denom.Bytes(), data.Covhash.String(), nonNil(data.AdditionalData))
		if err != nil {
			return fmt.Errorf("insert coin: %w", err)
		}
	}

	for id, ref := range mut.spentCoins {
		_, err := tx.ExecContext(ctx, `UPDATE coins SET spend_txhash = ?, spend_index = ?, spend_height = ?
			WHERE create_txhash = ? AND create_index = ?`,
			ref.txHash.String(), int64(ref.index), int64(h), id.TxHash.String(), int64(id.Index))
		if err != nil {
			return fmt.Errorf("mark spent: %w", err)
		}
	}

	hdr := block.Header
	feePool := hdr.FeePool.Bytes()
	feeMul := hdr.FeeMultiplier.Bytes()
	dosc := hdr.DoscSpeed.Bytes()
	_, err = tx.ExecContext(ctx, `INSERT INTO headvars (height, blkhash, fee_pool, fee_multiplier, dosc_speed)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT(height) DO NOTHING`,
		int64(h), hdr.BlockHash.String(), feePool[:], feeMul[:], dosc[:])
	if err != nil {
		return fmt.Errorf("insert headvars: %w", err)
	}

	for txHash, raw := range stakers {
		doc, err := decodeStakeDoc(txHash, raw)
		if err != nil {
			return fmt.Errorf("%w: stake doc: %v", enc.ErrCorrupt, err)
		}
		staked := doc.Staked.Bytes()
		_, err = tx.ExecContext(ctx, `INSERT INTO stakes (txhash, pubkey, e_start, e_post_end, staked)
			VALUES (?, ?, ?, ?, ?) ON CONFLICT(txhash) DO NOTHING`,
			txHash.String(), doc.PubKey, int64(doc.EStart), int64(doc.EPostEnd), staked[:])
		if err != nil {
			return fmt.Errorf("insert stake: %w", err)
		}
	}

	for _, txn := range block.Transactions {
		covenants, err := enc.EncodeHexArray(txn.Covenants)
		if err != nil {
			return fmt.Errorf("encode covenants: %w", err)
		}
		sigs, err := enc.EncodeHexArray(txn.Sigs)
		if err != nil {
			return fmt.Errorf("encode sigs: %w", err)
		}
		fee := txn.Fee.Bytes()
		_, err = tx.ExecContext(ctx, `INSERT INTO txvars (txhash, kind, fee, covenants, data, sigs)
			VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(txhash) DO NOTHING`,
			txn.HashNoSigs().String(), int64(txn.Kind), fee[:], covenants, nonNil(enc.TruncateData(txn.Data)), sigs)
		if err != nil {
			return fmt.Errorf("insert txvar: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// nonNil coalesces a nil slice to a non-nil empty one, since database/sql
// binds a nil []byte as SQL NULL and every BLOB column here is NOT NULL.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// decodeStakeDoc decodes a raw stake document. The domain's canonical
// codec is out of scope for this repository (spec.md §1); this is a
// minimal, deterministic stand-in so the commit path has something to
// exercise and test against. A real deployment supplies a nodeclient.Client
// whose GetStakersRaw already returns bytes in this shape, or this function
// is replaced with the domain codec.
func decodeStakeDoc(txHash meltypes.TxHash, raw []byte) (meltypes.StakeDoc, error) {
	if len(raw) < 16+8+8 {
		return meltypes.StakeDoc{}, fmt.Errorf("stake doc too short: %d bytes", len(raw))
	}
	pubkey := raw[:len(raw)-32]
	rest := raw[len(raw)-32:]
	staked, err := enc.Uint128FromBytes(rest[:16])
	if err != nil {
		return meltypes.StakeDoc{}, err
	}
	return meltypes.StakeDoc{
		TxHash:   txHash,
		PubKey:   pubkey,
		EStart:   beUint64(rest[16:24]),
		EPostEnd: beUint64(rest[24:32]),
		Staked:   staked,
	}, nil
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
