package enc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruncateDataLeavesShortDataUntouched(t *testing.T) {
	short := bytes.Repeat([]byte{0xab}, 100)
	require.Equal(t, short, TruncateData(short))
}

func TestTruncateDataCutsLongData(t *testing.T) {
	long := bytes.Repeat([]byte{0xcd}, TxVarDataLimit+500)
	out := TruncateData(long)
	require.Len(t, out, TxVarDataLimit)
	require.Equal(t, long[:TxVarDataLimit], out)
}

func TestHexArrayRoundTrip(t *testing.T) {
	items := [][]byte{{0x01, 0x02}, {}, {0xff, 0xee, 0xdd}}
	encoded, err := EncodeHexArray(items)
	require.NoError(t, err)
	require.Equal(t, `["0102","","ffeedd"]`, encoded)

	decoded, err := DecodeHexArray(encoded)
	require.NoError(t, err)
	require.Equal(t, items, decoded)
}

func TestDecodeHexArrayRejectsMalformedHex(t *testing.T) {
	_, err := DecodeHexArray(`["zz"]`)
	require.Error(t, err)
}

func TestDecodeHexArrayRejectsMalformedJSON(t *testing.T) {
	_, err := DecodeHexArray(`not json`)
	require.Error(t, err)
}
