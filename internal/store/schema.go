package store

import (
	"context"
	"fmt"
)

// schemaSQL creates every table and index the indexer needs, idempotently.
// Column order and uniqueness/conflict policy follow spec.md §3 and §4.2;
// the coins table's three-column uniqueness constraint with
// ON CONFLICT IGNORE is carried forward from original_source/src/lib.rs.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS coins (
	create_txhash   TEXT    NOT NULL,
	create_index    INTEGER NOT NULL,
	create_height   INTEGER NOT NULL,
	spend_txhash    TEXT,
	spend_index     INTEGER,
	spend_height    INTEGER,
	value           BLOB    NOT NULL,
	denom           BLOB    NOT NULL,
	covhash         TEXT    NOT NULL,
	additional_data BLOB    NOT NULL,
	UNIQUE(create_txhash, create_index, create_height) ON CONFLICT IGNORE
);

CREATE TABLE IF NOT EXISTS headvars (
	height         INTEGER PRIMARY KEY,
	blkhash        TEXT    NOT NULL,
	fee_pool       BLOB    NOT NULL,
	fee_multiplier BLOB    NOT NULL,
	dosc_speed     BLOB    NOT NULL
);

CREATE TABLE IF NOT EXISTS stakes (
	txhash     TEXT PRIMARY KEY,
	pubkey     BLOB NOT NULL,
	e_start    INTEGER NOT NULL,
	e_post_end INTEGER NOT NULL,
	staked     BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS txvars (
	txhash    TEXT PRIMARY KEY,
	kind      INTEGER NOT NULL,
	fee       BLOB NOT NULL,
	covenants TEXT NOT NULL,
	data      BLOB NOT NULL,
	sigs      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS coins_covhash ON coins(covhash);
CREATE INDEX IF NOT EXISTS coins_covhash_spend_txhash ON coins(covhash, spend_txhash);
CREATE INDEX IF NOT EXISTS coins_covhash_spend_height ON coins(covhash, spend_height);
CREATE INDEX IF NOT EXISTS coins_create_height_spend_height ON coins(create_height, spend_height);
CREATE INDEX IF NOT EXISTS coins_create_height_spend_txhash ON coins(create_height, spend_txhash);
CREATE INDEX IF NOT EXISTS coins_denom ON coins(denom);
CREATE INDEX IF NOT EXISTS coins_spend_txhash ON coins(spend_txhash);
CREATE INDEX IF NOT EXISTS coins_create_height ON coins(create_height);
CREATE INDEX IF NOT EXISTS coins_spend_height ON coins(spend_height);
`

// InitSchema creates every table and index if they do not already exist.
// Safe to call on every startup.
func (p *Pool) InitSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	return nil
}
