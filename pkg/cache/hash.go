package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
)

// hashKey returns prefix:sha256(json(parts)).
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	sum := sha256.Sum256(data)
	return prefix + ":" + hex.EncodeToString(sum[:])
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashImage hashes a grayscale raster together with its dimensions, so two
// masks with the same pixels but a different shape never collide.
func HashImage(width, height int, pix []byte) string {
	h := sha256.New()
	var dims [16]byte
	binary.BigEndian.PutUint64(dims[:8], uint64(width))
	binary.BigEndian.PutUint64(dims[8:], uint64(height))
	h.Write(dims[:])
	h.Write(pix)
	return hex.EncodeToString(h.Sum(nil))
}
