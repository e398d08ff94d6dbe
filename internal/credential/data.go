// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package credential defines the JSON blob stored for each account and the
// password hashing behind it. Storage backends treat the blob as opaque text.
package credential

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"
)

// ErrNoData is returned when decoding an empty blob.
var ErrNoData = errors.New("no credential data")

// Data is the credential state of one account.
type Data struct {
	// PasswordHash is a PHC-formatted password hash; empty until a password is set.
	PasswordHash string `json:"password,omitempty"`
	// LastIP is the address of the last authenticated session.
	LastIP string `json:"last_ip,omitempty"`
	// ValidUntil bounds how long the last session stays authenticated.
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	// OnlineAccount marks accounts verified by the identity authority.
	OnlineAccount bool `json:"online_account,omitempty"`
	// RegisteredAt is when the account was registered.
	RegisteredAt time.Time `json:"registered_at"`
}

// Encode serializes d.
func Encode(d Data) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", oops.Code("CREDENTIAL_ENCODE_FAILED").Wrap(err)
	}
	return string(b), nil
}

// Decode parses a stored blob.
func Decode(blob string) (Data, error) {
	if strings.TrimSpace(blob) == "" {
		return Data{}, oops.Code("CREDENTIAL_MISSING").Wrap(ErrNoData)
	}
	var d Data
	if err := json.Unmarshal([]byte(blob), &d); err != nil {
		return Data{}, oops.Code("CREDENTIAL_DECODE_FAILED").Wrap(err)
	}
	return d, nil
}

// SetPassword hashes password into d.
func (d *Data) SetPassword(h PasswordHasher, password string) error {
	hash, err := h.Hash(password)
	if err != nil {
		return err //nolint:wrapcheck // hasher errors are coded
	}
	d.PasswordHash = hash
	return nil
}

// CheckPassword reports whether password matches the stored hash. An account
// without a password never matches.
func (d Data) CheckPassword(h PasswordHasher, password string) (bool, error) {
	if d.PasswordHash == "" {
		return false, nil
	}
	return h.Verify(password, d.PasswordHash) //nolint:wrapcheck // hasher errors are coded
}

// SessionValid reports whether the last session is still authenticated at now
// from ip.
func (d Data) SessionValid(ip string, now time.Time) bool {
	return d.ValidUntil != nil && ip != "" && d.LastIP == ip && now.Before(*d.ValidUntil)
}
