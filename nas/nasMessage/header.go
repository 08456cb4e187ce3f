// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package nasMessage

import (
	"encoding/binary"
)

const (
	PlainHeaderSize          = 1
	SecurityHeaderSize       = 6
	ServiceRequestHeaderSize = 4
	// SequenceNumberOffset is where the MAC input starts in a protected PDU.
	SequenceNumberOffset = 5
)

// SecurityHeader (9.1 and 9.3.1). For the compact service request form, Ksi,
// SequenceNumber (5 bits) and ShortMac are filled instead of Mac.
type SecurityHeader struct {
	ProtocolDiscriminator     uint8
	SecurityHeaderType        uint8
	MessageAuthenticationCode uint32
	SequenceNumber            uint8
	Ksi                       uint8
	ShortMac                  uint16
}

// IsProtected reports whether the header carries a MAC.
func (h SecurityHeader) IsProtected() bool {
	return h.ProtocolDiscriminator == ProtocolDiscriminatorEMM &&
		h.SecurityHeaderType != SecurityHeaderTypePlainNas
}

// IsCiphered reports whether the header type implies a ciphered body.
func IsCiphered(securityHeaderType uint8) bool {
	return securityHeaderType == SecurityHeaderTypeIntegrityProtectedAndCiphered ||
		securityHeaderType == SecurityHeaderTypeIntegrityProtectedAndCipheredWithNewEpsSecurityContext
}

// IsNewSecurityContext reports whether the header type starts a new EPS
// security context.
func IsNewSecurityContext(securityHeaderType uint8) bool {
	return securityHeaderType == SecurityHeaderTypeIntegrityProtectedWithNewEpsSecurityContext ||
		securityHeaderType == SecurityHeaderTypeIntegrityProtectedAndCipheredWithNewEpsSecurityContext
}

// DecodeHeader reads the header of a NAS PDU and returns the number of octets
// it occupies: 1 for a plain message, 6 for the security protected form and 4
// for the compact service request.
func DecodeHeader(b []byte) (SecurityHeader, int, error) {
	var h SecurityHeader
	if len(b) < 1 {
		return h, 0, ErrBufferTooShort
	}
	h.ProtocolDiscriminator = b[0] & 0x0f
	switch h.ProtocolDiscriminator {
	case ProtocolDiscriminatorEMM:
	case ProtocolDiscriminatorESM:
		// The high nibble of an ESM PDU is the EPS bearer identity.
		return h, PlainHeaderSize, nil
	default:
		return h, 0, ErrProtocolNotSupported
	}
	h.SecurityHeaderType = b[0] >> 4
	switch h.SecurityHeaderType {
	case SecurityHeaderTypePlainNas:
		return h, PlainHeaderSize, nil
	case SecurityHeaderTypeServiceRequest:
		if len(b) < ServiceRequestHeaderSize {
			return h, 0, ErrBufferTooShort
		}
		h.Ksi = b[1] >> 5
		h.SequenceNumber = b[1] & 0x1f
		h.ShortMac = binary.BigEndian.Uint16(b[2:4])
		return h, ServiceRequestHeaderSize, nil
	default:
		if len(b) < SecurityHeaderSize {
			return h, 0, ErrBufferTooShort
		}
		h.MessageAuthenticationCode = binary.BigEndian.Uint32(b[1:5])
		h.SequenceNumber = b[5]
		return h, SecurityHeaderSize, nil
	}
}

// EncodeHeader writes the header octets for h.
func EncodeHeader(h SecurityHeader) []byte {
	first := h.SecurityHeaderType<<4 | h.ProtocolDiscriminator&0x0f
	switch {
	case h.SecurityHeaderType == SecurityHeaderTypeServiceRequest:
		out := []byte{first, (h.Ksi&0x07)<<5 | h.SequenceNumber&0x1f}
		return binary.BigEndian.AppendUint16(out, h.ShortMac)
	case h.IsProtected():
		out := binary.BigEndian.AppendUint32([]byte{first}, h.MessageAuthenticationCode)
		return append(out, h.SequenceNumber)
	default:
		return []byte{first}
	}
}
