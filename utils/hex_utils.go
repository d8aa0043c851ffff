package utils

import (
	"encoding/hex"
	"strings"
)

// HexStringToBytes decodes a hex string into bytes, tolerating an optional "0x" prefix. An empty
// string decodes to an empty byte slice.
func HexStringToBytes(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
