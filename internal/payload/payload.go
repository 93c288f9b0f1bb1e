// Package payload builds the synthetic object body sent by the load generator
// and the SHA256 digest a receiver can recompute from the object size alone.
package payload

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Char is the byte every payload is filled with.
const Char byte = '*'

// Generate returns a buffer of exactly size bytes, all equal to Char.
// Non-positive sizes yield an empty buffer.
func Generate(size int) []byte {
	if size <= 0 {
		return []byte{}
	}
	return bytes.Repeat([]byte{Char}, size)
}

// Digest returns the lowercase hex SHA256 of Generate(size).
func Digest(size int) string {
	sum := sha256.Sum256(Generate(size))
	return hex.EncodeToString(sum[:])
}

// DigestReader hashes everything readable from r and returns the lowercase hex
// digest together with the number of bytes consumed.
func DigestReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
