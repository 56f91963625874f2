package enc

import (
	"encoding/hex"
	"encoding/json"
)

// TxVarDataLimit is the maximum number of bytes of a transaction's data
// field that are persisted; the rest is truncated, per spec.md §3.
const TxVarDataLimit = 1024

// TruncateData truncates b to TxVarDataLimit bytes.
func TruncateData(b []byte) []byte {
	if len(b) <= TxVarDataLimit {
		return b
	}
	return b[:TxVarDataLimit]
}

// EncodeHexArray encodes a list of byte strings as a JSON array of
// lowercase-hex strings, the wire format txvars.covenants and txvars.sigs
// use. Grounded on original_source/src/lib.rs's
// serde_json::to_string(&...iter().map(hex::encode).collect_vec()).
func EncodeHexArray(items [][]byte) (string, error) {
	hexes := make([]string, len(items))
	for i, b := range items {
		hexes[i] = hex.EncodeToString(b)
	}
	out, err := json.Marshal(hexes)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DecodeHexArray is the inverse of EncodeHexArray.
func DecodeHexArray(s string) ([][]byte, error) {
	var hexes []string
	if err := json.Unmarshal([]byte(s), &hexes); err != nil {
		return nil, err
	}
	out := make([][]byte, len(hexes))
	for i, h := range hexes {
		b, err := hex.DecodeString(h)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
