package common

import (
	"crypto/rand"
	"encoding/base64"
	"io"
)

// RandReader is the entropy source for every random secret minted by the
// server. Tests may replace it to simulate a failing source.
var RandReader io.Reader = rand.Reader

// GenerateRandByteArray returns size bytes read from RandReader.
func GenerateRandByteArray(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(RandReader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// MakeRandString returns size random bytes encoded with enc.
//
// Example:
//
//	s, err := MakeRandString(32, base64.RawURLEncoding)
func MakeRandString(size int, enc *base64.Encoding) (string, error) {
	b, err := GenerateRandByteArray(size)
	if err != nil {
		return "", err
	}
	return enc.EncodeToString(b), nil
}

// WipeByteArray overwrites b with zeros. A nil slice is ignored.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
