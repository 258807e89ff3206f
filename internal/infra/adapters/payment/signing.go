package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
)

func hmacSHA256Hex(secret string, data []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func hmacSHA512Hex(secret string, data []byte) string {
	h := hmac.New(sha512.New, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// signSortedParams concatenates name+value pairs sorted by name and returns the
// HMAC-SHA256 hex digest. Flow signs both outbound requests and webhook bodies
// this way; the signature parameter itself must not be part of the input.
func signSortedParams(secret string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "s" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf []byte
	for _, k := range keys {
		buf = append(buf, k...)
		buf = append(buf, params.Get(k)...)
	}
	return hmacSHA256Hex(secret, buf)
}

func hmacEqualHex(a, b string) bool {
	ab, err := hex.DecodeString(a)
	if err != nil {
		return false
	}
	bb, err := hex.DecodeString(b)
	if err != nil {
		return false
	}
	return hmac.Equal(ab, bb)
}
