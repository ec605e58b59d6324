// Package randutil implements random utilities.
package randutil

import (
	"encoding/hex"
	"math/rand"
	"time"
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

const ll = "0123456789abcdefghijklmnopqrstuvwxyz"

// String returns a random string of the given length.
func String(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ll[rand.Intn(len(ll))]
	}
	return string(b)
}

// Bytes returns random bytes of the given length.
func Bytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = ll[rand.Intn(len(ll))]
	}
	return b
}

// Hex returns a random hex string of the given length.
func Hex(n int) string {
	b := make([]byte, n/2+1)
	rand.Read(b)
	return hex.EncodeToString(b)[:n]
}
