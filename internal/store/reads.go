package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mel-project/melblkidx/internal/enc"
)

// HeightInfoRow is one row of the headvars table.
type HeightInfoRow struct {
	Height        uint64
	BlkHash       string
	FeePool       enc.Uint128
	FeeMultiplier enc.Uint128
	DoscSpeed     enc.Uint128
}

// MaxHeight returns the greatest indexed height, or 0 if the table is
// empty. Implemented with COALESCE rather than a bare MAX so that an empty
// table never yields a NULL scan, per spec.md §9's explicit preservation
// of "returns 0 when empty" as intended behavior.
func MaxHeight(ctx context.Context, p *Pool) (uint64, error) {
	conn, err := p.Conn(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	var height int64
	err = WithRetry(ctx, func() error {
		return conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(height), 0) FROM headvars").Scan(&height)
	})
	if err != nil {
		return 0, fmt.Errorf("store: max height: %w", err)
	}
	return uint64(height), nil
}

// GetHeightInfo looks up the headvars row for height, if any.
func GetHeightInfo(ctx context.Context, p *Pool, height uint64) (*HeightInfoRow, error) {
	conn, err := p.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var (
		blkhash                           string
		feePool, feeMultiplier, doscSpeed []byte
		found                             bool
	)
	err = WithRetry(ctx, func() error {
		scanErr := conn.QueryRowContext(ctx,
			"SELECT blkhash, fee_pool, fee_multiplier, dosc_speed FROM headvars WHERE height = ?", int64(height)).
			Scan(&blkhash, &feePool, &feeMultiplier, &doscSpeed)
		if scanErr == sql.ErrNoRows {
			found = false
			return nil
		}
		found = true
		return scanErr
	})
	if err != nil {
		return nil, fmt.Errorf("store: height info: %w", err)
	}
	if !found {
		return nil, nil
	}

	fp, err := enc.Uint128FromBytes(feePool)
	if err != nil {
		return nil, fmt.Errorf("%w: fee_pool: %v", enc.ErrCorrupt, err)
	}
	fm, err := enc.Uint128FromBytes(feeMultiplier)
	if err != nil {
		return nil, fmt.Errorf("%w: fee_multiplier: %v", enc.ErrCorrupt, err)
	}
	ds, err := enc.Uint128FromBytes(doscSpeed)
	if err != nil {
		return nil, fmt.Errorf("%w: dosc_speed: %v", enc.ErrCorrupt, err)
	}

	return &HeightInfoRow{
		Height:        height,
		BlkHash:       blkhash,
		FeePool:       fp,
		FeeMultiplier: fm,
		DoscSpeed:     ds,
	}, nil
}

// BlkHashToHeight looks up the height of the block with the given hex
// blkhash, if indexed.
func BlkHashToHeight(ctx context.Context, p *Pool, blkhash string) (uint64, bool, error) {
	conn, err := p.Conn(ctx)
	if err != nil {
		return 0, false, err
	}
	defer conn.Close()

	var (
		height int64
		found  bool
	)
	err = WithRetry(ctx, func() error {
		scanErr := conn.QueryRowContext(ctx, "SELECT height FROM headvars WHERE blkhash = ?", blkhash).Scan(&height)
		if scanErr == sql.ErrNoRows {
			found = false
			return nil
		}
		found = true
		return scanErr
	})
	if err != nil {
		return 0, false, fmt.Errorf("store: blkhash to height: %w", err)
	}
	if !found {
		return 0, false, nil
	}
	return uint64(height), true, nil
}
