package pii

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// hashValue implements HashAlgorithm::HmacSha1: HMAC-SHA1 of value keyed by
// key (empty key when none is configured), rendered as 40-character
// uppercase hex.
func hashValue(value, key string) string {
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(value))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// HashValue exports hashValue for the attachment scrubber, which applies
// the same HmacSha1 redaction to matched spans of a raw byte buffer.
func HashValue(value, key string) string { return hashValue(value, key) }
