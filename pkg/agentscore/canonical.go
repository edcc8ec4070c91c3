// Copyright 2025 Certen Protocol
//
// Canonical JSON is the serialisation every content-addressed id in
// this system hashes over: sorted object keys, no insignificant
// whitespace, numbers in minimal form. encoding/json already sorts
// map[string]interface{} keys when marshalling, so the trick is to
// round-trip through a generic interface{} first — that throws away
// Go's struct field order and replaces it with the map ordering.

package agentscore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CanonicalJSON marshals v into its canonical form.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	return json.Marshal(generic)
}

// HashCanonicalJSON returns the lowercase hex SHA-256 digest of v's
// canonical JSON encoding.
func HashCanonicalJSON(v interface{}) (string, error) {
	b, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
