package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
)

// canonicalBytes returns the deterministic byte encoding a signature is
// computed over: the token with its Signature field cleared. Struct field
// order is fixed by the Go type declaration and encoding/json sorts map keys,
// so two calls over equal tokens always produce identical bytes.
func canonicalBytes(t Token) []byte {
	t.Signature = ""
	// json.Marshal over a struct value never fails for the types Token holds
	// (strings, slices, maps of strings, *time.Time).
	b, _ := json.Marshal(t)
	return b
}

// sign computes the base64url (no padding) HMAC-SHA256 signature for t under
// key, following the same sign-over-claims-minus-signature shape a JIT token
// broker elsewhere in the pack uses for its own HMAC tokens.
func sign(key []byte, t Token) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(canonicalBytes(t))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// signatureValid reports whether t.Signature verifies under any of keys,
// using a constant-time comparison against each recomputed signature.
func signatureValid(keys [][]byte, t Token) bool {
	got, err := base64.RawURLEncoding.DecodeString(t.Signature)
	if err != nil {
		return false
	}
	for _, key := range keys {
		mac := hmac.New(sha256.New, key)
		mac.Write(canonicalBytes(t))
		want := mac.Sum(nil)
		if hmac.Equal(got, want) {
			return true
		}
	}
	return false
}
