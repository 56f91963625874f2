package query

import "github.com/mel-project/melblkidx/internal/meltypes"

// CoinSpendInfo is the spend triple of a coin that has been spent.
type CoinSpendInfo struct {
	SpendTxHash meltypes.TxHash
	SpendIndex  uint64
	SpendHeight uint64
}

// CoinInfo is one row of the coins table, decoded into domain types.
type CoinInfo struct {
	CreateTxHash meltypes.TxHash
	CreateIndex  uint8
	CreateHeight uint64
	CoinData     meltypes.CoinData
	SpendInfo    *CoinSpendInfo
}

// Unspent reports whether the coin has no recorded spend.
func (c CoinInfo) Unspent() bool { return c.SpendInfo == nil }
