// Package integrity provides the hashing primitives behind deduplication
// and the evidence chain. All functions are pure and deterministic.
package integrity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"time"
)

// ContentHash returns the hex SHA-256 of raw asset bytes.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ContentHashReader streams r through SHA-256.
func ContentHashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyContentHash reports whether stored is the content hash of data.
func VerifyContentHash(stored string, data []byte) bool {
	return stored == ContentHash(data)
}

// HashFields hashes an ordered list of fields. Each field is written as a
// 4-byte big-endian length followed by its bytes, so no choice of field
// contents can make two different lists encode the same way.
func HashFields(fields ...string) string {
	h := sha256.New()
	var lenBuf [4]byte
	for _, f := range fields {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(f))) //nolint:gosec // record fields are far below 4 GiB
		h.Write(lenBuf[:])
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Sign binds a record hash to the analyst and time of the change.
func Sign(hash, analyst string, at time.Time) string {
	return HashFields(hash, analyst, at.UTC().Format(time.RFC3339Nano))
}

// hashPair produces SHA-256(0x01 || a || b) as a hex string.
// The 0x01 prefix separates internal nodes from leaves (RFC 6962).
func hashPair(a, b string) string {
	h := sha256.New()
	h.Write([]byte{0x01})
	h.Write([]byte(a))
	h.Write([]byte(b))
	return hex.EncodeToString(h.Sum(nil))
}

// BuildMerkleRoot constructs a Merkle tree from leaf hashes and returns the root.
// Leaves must be sorted by the caller for determinism.
// An empty input yields "", a single leaf is its own root, and an odd node
// at any level is paired with itself.
func BuildMerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}
	level := append([]string(nil), leaves...)
	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, hashPair(level[i], right))
		}
		level = next
	}
	return level[0]
}
