package utils

import (
	"crypto/sha256"
	"fmt"
)

// HashBytes fingerprints raw content, used to key cached diagnosis results
// by image payload.
func HashBytes(input []byte) string {
	hash := sha256.Sum256(input)
	return fmt.Sprintf("%x", hash)
}

func HashString(input string) string {
	return HashBytes([]byte(input))
}
