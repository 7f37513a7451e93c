package license

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// codecVersion prefixes every encoded license so the format can evolve.
// Decoding any unrecognized version fails closed.
const codecVersion = "POSL1"

// codecSecret keys the integrity check. It ships inside the binary, which
// bounds the protection at casual tampering — see the package doc.
const codecSecret = "POS-License-Codec-2024-Do-Not-Share"

// Codec encodes license records to an opaque, tamper-evident string and
// back. The encoding is self-contained: decoding needs no key server, only
// the embedded key, so verification works fully offline.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec with the embedded application key.
func NewCodec() *Codec {
	return &Codec{secret: []byte(codecSecret)}
}

// NewCodecWithSecret creates a codec with an explicit key. Used by tests
// and by deployments that inject a build-specific key.
func NewCodecWithSecret(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode serializes a record into the versioned, signed wire form:
// POSL1.<base64url payload>.<base64url mac>. The result is binary-safe text
// and survives copy/paste, which the recovery flow depends on.
func (c *Codec) Encode(record *Record) (string, error) {
	if record == nil {
		return "", fmt.Errorf("cannot encode nil record")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal license record: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	mac := c.sign(encoded)

	return fmt.Sprintf("%s.%s.%s", codecVersion, encoded, mac), nil
}

// Decode parses and verifies an encoded license. Any structural damage,
// signature mismatch or unknown version yields an error wrapping ErrDecode;
// a partially populated record is never returned.
func (c *Codec) Decode(encoded string) (*Record, error) {
	parts := strings.Split(strings.TrimSpace(encoded), ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: malformed token structure", ErrDecode)
	}

	version, payload, mac := parts[0], parts[1], parts[2]
	if version != codecVersion {
		return nil, fmt.Errorf("%w: unknown format version %q", ErrDecode, version)
	}

	// Integrity first: the payload is not even parsed until the MAC over it
	// has been verified.
	if !hmac.Equal([]byte(c.sign(payload)), []byte(mac)) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrDecode)
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not valid base64", ErrDecode)
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("%w: payload is not a valid license record", ErrDecode)
	}

	if record.MachineFingerprint == "" || record.ExpiryDate.IsZero() {
		return nil, fmt.Errorf("%w: license record is missing required fields", ErrDecode)
	}

	return &record, nil
}

// sign computes the keyed digest over the version and payload.
func (c *Codec) sign(payload string) string {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(codecVersion))
	h.Write([]byte("."))
	h.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
