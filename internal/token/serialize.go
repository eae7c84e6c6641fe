package token

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Serialize encodes t as base64url (no padding) over its JSON form. Struct
// field order and sorted map keys make repeated calls over an equal Token
// byte-identical.
func Serialize(t Token) (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("token: serialize: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Deserialize is the inverse of Serialize. It does not verify the
// signature; callers must still call Verify before trusting the result.
func Deserialize(s string) (Token, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Token{}, fmt.Errorf("token: deserialize: decoding: %w", err)
	}
	var t Token
	if err := json.Unmarshal(b, &t); err != nil {
		return Token{}, fmt.Errorf("token: deserialize: %w", err)
	}
	return t, nil
}
