package meltypes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashRoundTrip(t *testing.T) {
	var h Hash
	h[0] = 0xab
	h[31] = 0xcd
	s := h.String()
	require.Len(t, s, 64)

	got, err := ParseHash(s)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestParseHashRejectsWrongLength(t *testing.T) {
	_, err := ParseHash("ab")
	require.Error(t, err)
}

func TestTransactionHashNoSigs(t *testing.T) {
	var tx Transaction
	var h Hash
	h[5] = 1
	tx.SetHashNoSigs(h)
	require.Equal(t, h, tx.HashNoSigs())
}
