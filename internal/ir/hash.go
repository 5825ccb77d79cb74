package ir

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainPlan = "geoff/plan/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PlanFingerprint computes a stable identity for raw plan JSON. Two plans
// that differ only in key order or whitespace share a fingerprint.
func PlanFingerprint(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("PlanFingerprint: decode: %w", err)
	}

	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("PlanFingerprint: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainPlan, canonical), nil
}
