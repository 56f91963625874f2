// Package query implements the compositional coin query builder and its
// lazy row cursor. Grounded on original_source/src/coinquery.rs for the
// combinator set and filter-accumulation discipline, and on
// Klingon-tech-klingdex/internal/storage/wallet_utxos.go for the Go
// database/sql scanning idiom.
package query

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/mel-project/melblkidx/internal/enc"
	"github.com/mel-project/melblkidx/internal/meltypes"
	"github.com/mel-project/melblkidx/internal/store"
)

// filter is one conjunctive predicate fragment plus its bound parameter.
// An ordered slice of these (rather than a map) avoids reflection-driven
// query building: a fragment is either a plain "column op ?" string paired
// with a single already-typed parameter accepted by database/sql, or a
// parameterless fragment (such as "spend_txhash IS NULL") with a nil arg.
type filter struct {
	frag string
	arg  any
}

// Query accumulates predicates over the coins table. It is cheap to copy
// (a Query value is a pool reference plus a filter slice); every combinator
// returns a new Query rather than mutating the receiver, matching
// coinquery.rs's consuming-builder style.
type Query struct {
	pool    *store.Pool
	filters []filter
}

// New returns a fresh, unconstrained query over pool.
func New(pool *store.Pool) Query {
	return Query{pool: pool}
}

func (q Query) with(frag string, arg any) Query {
	next := make([]filter, len(q.filters), len(q.filters)+1)
	copy(next, q.filters)
	next = append(next, filter{frag: frag, arg: arg})
	return Query{pool: q.pool, filters: next}
}

// CreateTxHash restricts to coins created by the given transaction.
func (q Query) CreateTxHash(h meltypes.TxHash) Query {
	return q.with("create_txhash = ?", h.String())
}

// CreateIndex restricts to coins at the given output index.
func (q Query) CreateIndex(i uint8) Query {
	return q.with("create_index = ?", int64(i))
}

// CreateHeightRange restricts create_height to the given bounds.
func (q Query) CreateHeightRange(lo, hi Bound) Query {
	return q.withRange("create_height", lo, hi)
}

// Unspent restricts to coins with no recorded spend.
func (q Query) Unspent() Query {
	return q.with("spend_txhash IS NULL", nil)
}

// SpendTxHash restricts to coins spent by the given transaction.
func (q Query) SpendTxHash(h meltypes.TxHash) Query {
	return q.with("spend_txhash = ?", h.String())
}

// SpendIndex restricts to coins spent at the given input index.
func (q Query) SpendIndex(i uint64) Query {
	return q.with("spend_index = ?", int64(i))
}

// SpendHeightRange restricts spend_height to the given bounds.
func (q Query) SpendHeightRange(lo, hi Bound) Query {
	return q.withRange("spend_height", lo, hi)
}

// ValueRange restricts value to the given bounds, encoded per the 128-bit
// big-endian scheme so that the comparison is bytewise-correct.
func (q Query) ValueRange(lo, hi Bound) Query {
	return q.withValueRange(lo, hi)
}

// Denom restricts to coins of the given denomination.
func (q Query) Denom(d meltypes.Denom) Query {
	return q.with("denom = ?", d.Bytes())
}

// Covhash restricts to coins owned by the given address.
func (q Query) Covhash(a meltypes.Address) Query {
	return q.with("covhash = ?", a.String())
}

// AdditionalData restricts to coins carrying the given additional data.
func (q Query) AdditionalData(b []byte) Query {
	return q.with("additional_data = ?", b)
}

func (q Query) withRange(column string, lo, hi Bound) Query {
	out := q
	if lo.has {
		op := ">="
		if lo.exclusive {
			op = ">"
		}
		out = out.with(fmt.Sprintf("%s %s ?", column, op), int64(lo.value))
	}
	if hi.has {
		op := "<="
		if hi.exclusive {
			op = "<"
		}
		out = out.with(fmt.Sprintf("%s %s ?", column, op), int64(hi.value))
	}
	return out
}

func (q Query) withValueRange(lo, hi Bound) Query {
	out := q
	if lo.has {
		op := ">="
		if lo.exclusive {
			op = ">"
		}
		b := enc.Uint128FromUint64(lo.value).Bytes()
		out = out.with(fmt.Sprintf("value %s ?", op), b[:])
	}
	if hi.has {
		op := "<="
		if hi.exclusive {
			op = "<"
		}
		b := enc.Uint128FromUint64(hi.value).Bytes()
		out = out.with(fmt.Sprintf("value %s ?", op), b[:])
	}
	return out
}

const selectColumns = "create_txhash, create_index, create_height, spend_txhash, spend_index, spend_height, value, denom, covhash, additional_data"

// buildSQL renders the SELECT statement and parameter list for the
// accumulated filters.
func (q Query) buildSQL() (string, []any) {
	sql := "SELECT " + selectColumns + " FROM coins"
	args := make([]any, 0, len(q.filters))
	if len(q.filters) > 0 {
		frags := make([]string, len(q.filters))
		for i, f := range q.filters {
			frags[i] = f.frag
			if f.arg != nil {
				args = append(args, f.arg)
			}
		}
		sql += " WHERE " + strings.Join(frags, " AND ")
	}
	return sql, args
}

// Iter opens a connection and returns a lazy, pull-based Cursor over the
// matching rows. The caller must Close the cursor (directly, or by
// exhausting Next to false) to release the underlying connection.
func (q Query) Iter(ctx context.Context) (*Cursor, error) {
	conn, err := q.pool.Conn(ctx)
	if err != nil {
		return nil, err
	}
	sql, args := q.buildSQL()
	rows, err := conn.QueryContext(ctx, sql, args...)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("query: %w", err)
	}
	return &Cursor{conn: conn, rows: rows}, nil
}

// SumValueBetween sums the value column over every row matching q with the
// given column further restricted to the bounds lo and hi (each inclusive,
// exclusive or unbounded as given), streaming only the value column so it
// never materializes the matching rows in Go memory. Used by
// internal/balance for its from-scratch and delta computations.
func (q Query) SumValueBetween(ctx context.Context, column string, lo, hi Bound) (enc.Uint128, error) {
	// Delegates to the caller-provided column ("create_height" or
	// "spend_height") since the same aggregation shape serves both the
	// creation-sum and spend-sum halves of a balance delta.
	qq := q.withRange(column, lo, hi)
	sqlStr, args := qq.buildSQL()
	sqlStr = strings.Replace(sqlStr, "SELECT "+selectColumns, "SELECT value", 1)

	conn, err := q.pool.Conn(ctx)
	if err != nil {
		return enc.Uint128{}, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return enc.Uint128{}, fmt.Errorf("query: sum: %w", err)
	}
	defer rows.Close()

	var total enc.Uint128
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return enc.Uint128{}, fmt.Errorf("query: sum scan: %w", err)
		}
		v, err := enc.Uint128FromBytes(raw)
		if err != nil {
			return enc.Uint128{}, err
		}
		total = total.Add(v)
	}
	if err := rows.Err(); err != nil {
		return enc.Uint128{}, fmt.Errorf("query: sum rows: %w", err)
	}
	return total, nil
}

// AliveSumAt sums the value of every coin matching q that is alive at
// height h: created at or before h, and either never spent or spent after
// h. Used by internal/balance to seed an empty cache from scratch.
func (q Query) AliveSumAt(ctx context.Context, h uint64) (enc.Uint128, error) {
	unspentSum, err := q.Unspent().SumValueBetween(ctx, "create_height", Unbounded(), Included(h))
	if err != nil {
		return enc.Uint128{}, err
	}
	spentLaterSum, err := q.CreateHeightRange(Unbounded(), Included(h)).
		SumValueBetween(ctx, "spend_height", Excluded(h), Unbounded())
	if err != nil {
		return enc.Uint128{}, err
	}
	return unspentSum.Add(spentLaterSum), nil
}

// DiffBetween computes, as a signed value, the sum of values created in
// (a, b] minus the sum of values spent in (a, b]. It is the nearest
// neighbour delta the balance tracker uses to move from a cached height to
// an uncached one.
func (q Query) DiffBetween(ctx context.Context, a, b uint64) (*big.Int, error) {
	created, err := q.SumValueBetween(ctx, "create_height", Excluded(a), Included(b))
	if err != nil {
		return nil, err
	}
	spent, err := q.SumValueBetween(ctx, "spend_height", Excluded(a), Included(b))
	if err != nil {
		return nil, err
	}
	return new(big.Int).Sub(created.BigInt(), spent.BigInt()), nil
}
