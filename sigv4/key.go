package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	keyPrefix       = "AWS4"
	scopeTerminator = "aws4_request"
)

// DeriveKey computes the scoped signing key:
//
//	kDate    = HMAC("AWS4"+secretKey, date)
//	kRegion  = HMAC(kDate, region)
//	kService = HMAC(kRegion, service)
//	kSigning = HMAC(kService, "aws4_request")
//
// Each stage output is the key of the next one; the literals are messages.
// date is in YYYYMMDD form.
func DeriveKey(secretKey, date, region, service string) []byte {
	if secretKey == "" {
		panic("sigv4: derive key called with empty secret key")
	}
	if len(date) != len(ShortTimeFormat) {
		panic(fmt.Sprintf("sigv4: derive key date %q is not YYYYMMDD", date))
	}
	if region == "" || service == "" {
		panic("sigv4: derive key requires region and service")
	}

	kDate := hmacSHA256([]byte(keyPrefix+secretKey), date)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, scopeTerminator)
}

// Scope returns the credential scope date/region/service/aws4_request.
func Scope(date, region, service string) string {
	return strings.Join([]string{date, region, service, scopeTerminator}, "/")
}

// StringToSign returns algorithm, timestamp, scope and the hex SHA-256 of
// the canonical request joined by newlines.
func StringToSign(timestamp, scope, canonicalRequest string) string {
	return strings.Join([]string{
		Algorithm,
		timestamp,
		scope,
		hashHex([]byte(canonicalRequest)),
	}, "\n")
}

// Signature returns hex(HMAC(key, stringToSign)).
func Signature(key []byte, stringToSign string) string {
	return hex.EncodeToString(hmacSHA256(key, stringToSign))
}

// PayloadHash returns the hex SHA-256 of body. A nil or empty body hashes
// to the digest of the empty string.
func PayloadHash(body []byte) string {
	return hashHex(body)
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
