// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package message

import (
	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/nas/nasMessage"
)

// SecurityData describes the protection available for one downlink message.
type SecurityData struct {
	Ksi          uint8
	IntegrityKey bool
	CipheringKey bool
	// first message protected with a freshly derived context
	NewContext bool
}

// NewSecurityData describes how sc may protect the next downlink message.
// An existing context protects messages only once it was activated by a
// security mode control procedure; a new context is used by the security
// mode command itself, which must not be ciphered.
func NewSecurityData(sc *context.SecurityContext, newContext, ciphered bool) SecurityData {
	sd := SecurityData{Ksi: nasMessage.NasKeySetIdentifierNoKeyAvailable}
	if !sc.Available() {
		return sd
	}
	if !newContext && !sc.Activated {
		return sd
	}
	sd.Ksi = sc.Eksi
	sd.IntegrityKey = sc.KeysDerived
	sd.CipheringKey = ciphered && sc.KeysDerived
	sd.NewContext = newContext
	return sd
}

// SetHeader returns the security header type for a message sent with sd.
func SetHeader(sd SecurityData) uint8 {
	if sd.Ksi == nasMessage.NasKeySetIdentifierNoKeyAvailable || !sd.IntegrityKey {
		return nasMessage.SecurityHeaderTypePlainNas
	}
	switch {
	case sd.CipheringKey && sd.NewContext:
		return nasMessage.SecurityHeaderTypeIntegrityProtectedAndCipheredWithNewEpsSecurityContext
	case sd.NewContext:
		return nasMessage.SecurityHeaderTypeIntegrityProtectedWithNewEpsSecurityContext
	case sd.CipheringKey:
		return nasMessage.SecurityHeaderTypeIntegrityProtectedAndCiphered
	default:
		return nasMessage.SecurityHeaderTypeIntegrityProtected
	}
}
