package types

import (
	"regexp"
	"strings"
	"time"
)

// RootAuthority is the sentinel authority value for a delegation that chains
// directly off the delegator rather than off another delegation.
const RootAuthority = "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"

// Caveat is one scope restriction attached to a delegation. The enforcer is a
// contract address; terms and args are opaque hex blobs interpreted by it.
type Caveat struct {
	Enforcer string `json:"enforcer"`
	Terms    string `json:"terms"`
	Args     string `json:"args"`
}

// Delegation is a signed capability granting the delegate the right to act on
// behalf of the delegator's smart account, restricted by its caveats. The
// signature is carried opaquely; this service never verifies it locally.
type Delegation struct {
	Delegate  string   `json:"delegate"`
	Delegator string   `json:"delegator"`
	Authority string   `json:"authority"`
	Caveats   []Caveat `json:"caveats"`
	Salt      string   `json:"salt"`
	Signature string   `json:"signature"`
}

// StoredDelegation is a Delegation at rest, keyed by the subscriber smart
// account it pays from. Subscriber is always stored lower-cased.
type StoredDelegation struct {
	Subscriber string     `json:"subscriber"`
	Delegation Delegation `json:"delegation"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

var (
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	hexPattern     = regexp.MustCompile(`^0x([0-9a-fA-F]{2})*$`)
)

// IsHexAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsHexAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// IsHexBlob reports whether s is a 0x-prefixed even-length hex string.
// The empty blob "0x" is valid.
func IsHexBlob(s string) bool {
	return hexPattern.MatchString(s)
}

// NormalizeAddress lower-cases a hex address so that map keys and database
// lookups are case-insensitive.
func NormalizeAddress(s string) string {
	return strings.ToLower(s)
}

// SameAddress compares two hex addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Validate checks structural well-formedness of a delegation payload at the
// API edge. Signature contents are not interpreted, only their encoding.
func (d Delegation) Validate() error {
	switch {
	case !IsHexAddress(d.Delegate):
		return &ValidationError{Field: "delegate", Reason: "must be a 0x-prefixed 20-byte hex address"}
	case !IsHexAddress(d.Delegator):
		return &ValidationError{Field: "delegator", Reason: "must be a 0x-prefixed 20-byte hex address"}
	case d.Authority != "" && !IsHexBlob(d.Authority):
		return &ValidationError{Field: "authority", Reason: "must be 0x-prefixed hex"}
	case d.Salt != "" && !IsHexBlob(d.Salt):
		return &ValidationError{Field: "salt", Reason: "must be 0x-prefixed hex"}
	case d.Signature == "" || !IsHexBlob(d.Signature):
		return &ValidationError{Field: "signature", Reason: "must be non-empty 0x-prefixed hex"}
	}
	for i, c := range d.Caveats {
		if !IsHexAddress(c.Enforcer) {
			return &ValidationError{Field: "caveats", Reason: "enforcer must be a hex address", Index: i}
		}
		if !IsHexBlob(c.Terms) || !IsHexBlob(c.Args) {
			return &ValidationError{Field: "caveats", Reason: "terms and args must be 0x-prefixed hex", Index: i}
		}
	}
	return nil
}
