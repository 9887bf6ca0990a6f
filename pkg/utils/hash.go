package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// CalculateStringSHA256 returns the hex SHA-256 digest of content
func CalculateStringSHA256(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// CalculateBytesSHA256 returns the hex SHA-256 digest of data
func CalculateBytesSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
