package query

import (
	"database/sql"
	"fmt"

	"github.com/mel-project/melblkidx/internal/enc"
	"github.com/mel-project/melblkidx/internal/meltypes"
)

// Cursor is an explicit, stateful pull-based iterator over a prepared
// query's rows, per spec.md §9's "no coroutine/generator primitive is
// required" design note. Call Next until it returns false, reading Coin
// after each true result; always Close when done (Next returning false
// already closes it).
type Cursor struct {
	conn interface{ Close() error }
	rows *sql.Rows
	cur  CoinInfo
	err  error
	done bool
}

// Next advances the cursor. It returns false when rows are exhausted or an
// error occurred; call Err to distinguish the two. A malformed row (a
// decoding failure) is treated as corruption: Next returns false and Err
// reports enc.ErrCorrupt, aborting iteration, per spec.md §4.3.
func (c *Cursor) Next() bool {
	if c.done {
		return false
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		c.close()
		return false
	}
	coin, err := scanCoin(c.rows)
	if err != nil {
		c.err = err
		c.close()
		return false
	}
	c.cur = coin
	return true
}

// Coin returns the row produced by the most recent successful Next call.
func (c *Cursor) Coin() CoinInfo { return c.cur }

// Err returns the first error encountered, if any.
func (c *Cursor) Err() error { return c.err }

// Close releases the cursor's connection. Safe to call multiple times and
// safe to call after Next has already returned false.
func (c *Cursor) Close() error {
	c.close()
	return c.err
}

func (c *Cursor) close() {
	if c.done {
		return
	}
	c.done = true
	c.rows.Close()
	c.conn.Close()
}

func scanCoin(rows *sql.Rows) (CoinInfo, error) {
	var (
		createTxHash string
		createIndex  int64
		createHeight int64
		spendTxHash  sql.NullString
		spendIndex   sql.NullInt64
		spendHeight  sql.NullInt64
		value        []byte
		denom        []byte
		covhash      string
		additional   []byte
	)
	if err := rows.Scan(&createTxHash, &createIndex, &createHeight,
		&spendTxHash, &spendIndex, &spendHeight,
		&value, &denom, &covhash, &additional); err != nil {
		return CoinInfo{}, fmt.Errorf("query: scan: %w", err)
	}

	txHash, err := meltypes.ParseHash(createTxHash)
	if err != nil {
		return CoinInfo{}, fmt.Errorf("%w: create_txhash: %v", enc.ErrCorrupt, err)
	}
	covAddr, err := meltypes.ParseAddress(covhash)
	if err != nil {
		return CoinInfo{}, fmt.Errorf("%w: covhash: %v", enc.ErrCorrupt, err)
	}
	val, err := enc.Uint128FromBytes(value)
	if err != nil {
		return CoinInfo{}, fmt.Errorf("%w: value: %v", enc.ErrCorrupt, err)
	}

	info := CoinInfo{
		CreateTxHash: txHash,
		CreateIndex:  uint8(createIndex),
		CreateHeight: uint64(createHeight),
		CoinData: meltypes.CoinData{
			Value:          val,
			Denom:          meltypes.Denom(denom),
			Covhash:        covAddr,
			AdditionalData: additional,
		},
	}

	if spendTxHash.Valid {
		sh, err := meltypes.ParseHash(spendTxHash.String)
		if err != nil {
			return CoinInfo{}, fmt.Errorf("%w: spend_txhash: %v", enc.ErrCorrupt, err)
		}
		info.SpendInfo = &CoinSpendInfo{
			SpendTxHash: sh,
			SpendIndex:  uint64(spendIndex.Int64),
			SpendHeight: uint64(spendHeight.Int64),
		}
	}

	return info, nil
}
