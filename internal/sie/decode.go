package sie

import (
	"golang.org/x/text/encoding/charmap"
)

// Decode converts raw file bytes to text. SIE files are single-byte
// Western-European encoded, so every byte maps to exactly one rune and
// decoding never fails.
func Decode(b []byte) string {
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		// Unreachable for a single-byte charmap; keep the bytes rather than lose data.
		return string(b)
	}
	return string(decoded)
}
