// Package meltypes holds the minimal ledger domain types the indexer treats
// as external collaborators: hashes, addresses, denominations, and the
// block/transaction shapes read off the remote node. None of this package
// validates or signs anything; it only carries bytes in the textual and
// binary forms the schema and the RPC client need.
package meltypes

import (
	"encoding/hex"
	"fmt"

	"github.com/mel-project/melblkidx/internal/enc"
)

// HashSize is the width, in bytes, of every hash type in this package.
const HashSize = 32

// Hash is a 32-byte ledger hash, printed as lowercase hex.
type Hash [HashSize]byte

// TxHash identifies a transaction by its signature-excluded digest.
type TxHash = Hash

// BlockHash identifies a block.
type BlockHash = Hash

// String renders h as lowercase hex.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// ParseHash decodes a lowercase-hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("meltypes: parse hash: %w", err)
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("meltypes: hash must be %d bytes, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Address is a covenant hash, printed as lowercase hex.
type Address = Hash

// ParseAddress decodes a lowercase-hex string into an Address.
func ParseAddress(s string) (Address, error) { return ParseHash(s) }

// Denom is an opaque byte string identifying a token kind (e.g. MEL, SYM).
type Denom []byte

// Bytes returns the canonical byte encoding used for storage.
func (d Denom) Bytes() []byte { return []byte(d) }

// Well-known denominations.
var (
	DenomMel = Denom([]byte("MEL"))
	DenomSym = Denom([]byte("SYM"))
)

// CoinID identifies a coin by the hash of its creating transaction and its
// output index within that transaction.
type CoinID struct {
	TxHash TxHash
	Index  uint8
}

// CoinData is the payload carried by a coin.
type CoinData struct {
	Value          enc.Uint128
	Denom          Denom
	Covhash        Address
	AdditionalData []byte
}

// TxKind identifies the shape of a transaction's special handling, if any.
type TxKind uint8

// Transaction kinds that trigger snapshot-truth output overrides. Other
// kinds have no special handling and use a transaction's outputs as-is.
const (
	TxKindNormal      TxKind = 0
	TxKindSwap        TxKind = 1
	TxKindLiqDeposit  TxKind = 2
	TxKindLiqWithdraw TxKind = 3
)

// StakeDoc is a staker registration read from the raw staker map.
type StakeDoc struct {
	TxHash   TxHash
	PubKey   []byte
	EStart   uint64
	EPostEnd uint64
	Staked   enc.Uint128
}

// Header is a block header, carrying only the fields the indexer consumes.
type Header struct {
	Height        uint64
	BlockHash     BlockHash
	StakesHash    Hash
	FeePool       enc.Uint128
	FeeMultiplier enc.Uint128
	DoscSpeed     enc.Uint128
}

// TxInput is a single spent coin reference.
type TxInput struct {
	CoinID CoinID
}

// Transaction is a transaction as read from a block.
type Transaction struct {
	hash      TxHash
	Kind      TxKind
	Fee       enc.Uint128
	Covenants [][]byte
	Data      []byte
	Sigs      [][]byte
	Inputs    []TxInput
	Outputs   []CoinData
}

// HashNoSigs is the transaction's identity hash, excluding its witness
// signatures. The indexer never verifies signatures, so this is computed
// eagerly by the RPC layer and carried alongside the transaction rather
// than recomputed here.
func (t Transaction) HashNoSigs() TxHash { return t.hash }

// SetHashNoSigs attaches the precomputed signature-excluded hash. The real
// node client is expected to populate this when it decodes a block; it is
// a setter rather than a constructor argument so that test fixtures can
// build a Transaction literal and patch in a hash afterward.
func (t *Transaction) SetHashNoSigs(h TxHash) { t.hash = h }

// Block is a decoded block: its header and ordered transaction list.
type Block struct {
	Header       Header
	Transactions []Transaction
}
