// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package context

import (
	"encoding/json"
)

// Member is an EMM context field that tracks presence and validity separately.
// A valid member is always present; a present member may have been
// invalidated (for instance a GUTI the UE reported but the MME did not assign).
type Member[T any] struct {
	value   T
	present bool
	valid   bool
}

// Set stores v and marks it present and valid.
func (m *Member[T]) Set(v T) {
	m.value = v
	m.present = true
	m.valid = true
}

// SetInvalid stores v as present but not yet valid.
func (m *Member[T]) SetInvalid(v T) {
	m.value = v
	m.present = true
	m.valid = false
}

// Validate marks a present member valid. It is a no-op for an absent member.
func (m *Member[T]) Validate() {
	if m.present {
		m.valid = true
	}
}

// Invalidate keeps the value but drops the valid flag.
func (m *Member[T]) Invalidate() {
	m.valid = false
}

// Clear zeroes the storage and both flags.
func (m *Member[T]) Clear() {
	var zero T
	m.value = zero
	m.present = false
	m.valid = false
}

// Get returns the value and whether it is valid.
func (m Member[T]) Get() (T, bool) {
	return m.value, m.valid
}

// Value returns the stored value regardless of flags.
func (m Member[T]) Value() T {
	return m.value
}

func (m Member[T]) IsPresent() bool {
	return m.present
}

func (m Member[T]) IsValid() bool {
	return m.valid
}

type memberJSON[T any] struct {
	Value   T    `json:"value" bson:"value"`
	Present bool `json:"present" bson:"present"`
	Valid   bool `json:"valid" bson:"valid"`
}

func (m Member[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(memberJSON[T]{Value: m.value, Present: m.present, Valid: m.valid})
}

func (m *Member[T]) UnmarshalJSON(b []byte) error {
	var v memberJSON[T]
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	m.value = v.Value
	m.present = v.Present
	m.valid = v.Valid && v.Present
	return nil
}
