// Package checksum computes fast content fingerprints for change detection.
package checksum

import (
	"encoding/binary"
	"encoding/hex"
	"hash/fnv"
)

// Sum returns the hex-encoded FNV-1a 64-bit digest of data. The digest
// gates redundant sync passes; it is not an integrity check.
func Sum(data []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(data)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h.Sum64())
	return hex.EncodeToString(buf[:])
}
