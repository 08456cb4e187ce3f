// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package nas_security

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/logger"
	"github.com/omec-project/mme/nas/nasMessage"
	"github.com/omec-project/nas/security"
)

// EPS NAS signalling always uses bearer identity 0 (TS 33.401 8.1).
const nasBearer uint8 = 0x00

var (
	ErrMacMismatch       = errors.New("nas mac mismatch")
	ErrDecryptionRefused = errors.New("decryption refused: message failed integrity check")
	ErrNoSecurityContext = errors.New("no security context")
)

// DecodeStatus reports what the security layer found in a received PDU.
type DecodeStatus struct {
	IntegrityProtected       bool
	Ciphered                 bool
	MacMatched               bool
	SecurityContextAvailable bool
	// EMM cause to report for the message, zero if none
	EmmCause uint8
}

func encodeCount(sc *context.SecurityContext) *context.NasCount {
	if sc.DirectionEncode == security.DirectionUplink {
		return &sc.ULCount
	}
	return &sc.DLCount
}

func decodeCount(sc *context.SecurityContext) *context.NasCount {
	if sc.DirectionDecode == security.DirectionUplink {
		return &sc.ULCount
	}
	return &sc.DLCount
}

func countFor(sc *context.SecurityContext, direction uint8) *context.NasCount {
	if direction == security.DirectionUplink {
		return &sc.ULCount
	}
	return &sc.DLCount
}

// ComputeMac returns the 32-bit NAS-MAC of buf. It returns 0 when there is
// no security context or the selected integrity algorithm is EIA0; callers
// must not treat that value as an authenticated MAC.
func ComputeMac(sc *context.SecurityContext, direction uint8, buf []byte) uint32 {
	if !sc.HasIntegrityKey() || sc.SelectedAlgorithms.Integrity == security.AlgIntegrity128NIA0 {
		return 0
	}
	count := countFor(sc, direction).Get()
	mac, err := security.NASMacCalculate(sc.SelectedAlgorithms.Integrity, sc.KnasInt, count, nasBearer,
		direction, buf)
	if err != nil || len(mac) != 4 {
		logger.NasLog.Errorf("MAC calculate error: %+v", err)
		return 0
	}
	return binary.BigEndian.Uint32(mac)
}

// Encrypt returns the ciphered copy of payload for the given header type
// and sequence number. Header types without ciphering return a plain copy.
func Encrypt(sc *context.SecurityContext, securityHeaderType, seq uint8, payload []byte) ([]byte, error) {
	out := append([]byte(nil), payload...)
	if !nasMessage.IsCiphered(securityHeaderType) || !sc.HasCipheringKey() {
		return out, nil
	}
	count := encodeCount(sc)
	value := uint32(count.Overflow())<<8 | uint32(seq)
	if err := security.NASEncrypt(sc.SelectedAlgorithms.Encryption, sc.KnasEnc, value, nasBearer,
		sc.DirectionEncode, out); err != nil {
		return nil, fmt.Errorf("encrypt error: %+v", err)
	}
	return out, nil
}

// Decrypt returns the deciphered copy of payload. A ciphered payload whose
// MAC did not verify is never deciphered.
func Decrypt(sc *context.SecurityContext, securityHeaderType, seq uint8, payload []byte,
	status DecodeStatus,
) ([]byte, error) {
	if !nasMessage.IsCiphered(securityHeaderType) {
		return append([]byte(nil), payload...), nil
	}
	if !status.MacMatched {
		return nil, ErrDecryptionRefused
	}
	if !sc.HasIntegrityKey() {
		return nil, ErrNoSecurityContext
	}
	out := append([]byte(nil), payload...)
	if !sc.HasCipheringKey() {
		return out, nil
	}
	count := decodeCount(sc)
	value := uint32(count.Overflow())<<8 | uint32(seq)
	if err := security.NASEncrypt(sc.SelectedAlgorithms.Encryption, sc.KnasEnc, value, nasBearer,
		sc.DirectionDecode, out); err != nil {
		return nil, fmt.Errorf("decrypt error: %+v", err)
	}
	return out, nil
}

// Encode serializes msg and applies the protection named by its security
// header type. The encode-direction COUNT advances only when a protected
// message was produced.
func Encode(sc *context.SecurityContext, msg *nasMessage.Message) ([]byte, error) {
	if msg == nil || msg.Body == nil {
		return nil, fmt.Errorf("nas message is empty")
	}
	if _, ok := msg.Body.(*nasMessage.ServiceRequest); ok {
		return encodeServiceRequest(sc)
	}
	plain, err := nasMessage.EncodePlain(msg.Body)
	if err != nil {
		return nil, err
	}
	sht := msg.SecurityHeader.SecurityHeaderType
	if sht == nasMessage.SecurityHeaderTypePlainNas ||
		msg.Body.ProtocolDiscriminator() != nasMessage.ProtocolDiscriminatorEMM {
		return plain, nil
	}
	return Protect(sc, sht, plain)
}

// Protect wraps an already encoded plain NAS message in a security header
// of type sht: the body is ciphered when sht asks for it and the MAC is
// computed over the sequence number and the (ciphered) body.
func Protect(sc *context.SecurityContext, sht uint8, plain []byte) ([]byte, error) {
	if sht == nasMessage.SecurityHeaderTypePlainNas {
		return append([]byte(nil), plain...), nil
	}
	if !sc.Available() {
		return nil, ErrNoSecurityContext
	}
	if nasMessage.IsNewSecurityContext(sht) {
		sc.ResetCounts()
	}

	count := encodeCount(sc)
	seq := count.SQN()
	ciphered, err := Encrypt(sc, sht, seq, plain)
	if err != nil {
		return nil, err
	}
	// MAC input is the sequence number followed by the (ciphered) message.
	body := append([]byte{seq}, ciphered...)
	mac := ComputeMac(sc, sc.DirectionEncode, body)

	header := nasMessage.EncodeHeader(nasMessage.SecurityHeader{
		ProtocolDiscriminator:     nasMessage.ProtocolDiscriminatorEMM,
		SecurityHeaderType:        sht,
		MessageAuthenticationCode: mac,
		SequenceNumber:            seq,
	})
	count.AddOne()
	return append(header[:nasMessage.SequenceNumberOffset], body...), nil
}

// encodeServiceRequest fills KSI, the 5-bit sequence number and the short
// MAC of a compact service request (TS 24.301 9.9.3.28).
func encodeServiceRequest(sc *context.SecurityContext) ([]byte, error) {
	if !sc.Available() {
		return nil, ErrNoSecurityContext
	}
	count := encodeCount(sc)
	out := nasMessage.EncodeHeader(nasMessage.SecurityHeader{
		ProtocolDiscriminator: nasMessage.ProtocolDiscriminatorEMM,
		SecurityHeaderType:    nasMessage.SecurityHeaderTypeServiceRequest,
		Ksi:                   sc.Eksi,
		SequenceNumber:        count.SQN(),
	})
	mac := ComputeMac(sc, sc.DirectionEncode, out[:2])
	binary.BigEndian.PutUint16(out[2:4], uint16(mac))
	count.AddOne()
	return out, nil
}

// Decode removes the security header from payload, verifies the MAC and
// deciphers the message. On MAC mismatch the plain body of an integrity-only
// message is still returned and status.MacMatched is false; the caller
// decides whether to act on it. A ciphered message failing the check is not
// deciphered and ErrDecryptionRefused is returned.
func Decode(sc *context.SecurityContext, payload []byte) (*nasMessage.Message, DecodeStatus, error) {
	status := DecodeStatus{SecurityContextAvailable: sc.Available()}
	header, size, err := nasMessage.DecodeHeader(payload)
	if err != nil {
		return nil, status, err
	}
	msg := &nasMessage.Message{SecurityHeader: header}

	switch size {
	case nasMessage.PlainHeaderSize:
		msg.Body, err = nasMessage.DecodePlain(payload)
		return msg, status, err

	case nasMessage.ServiceRequestHeaderSize:
		status.IntegrityProtected = true
		if status.SecurityContextAvailable {
			estimateServiceRequestSqn(sc, header.SequenceNumber)
			mac := ComputeMac(sc, sc.DirectionDecode, payload[:2])
			status.MacMatched = macAccepted(sc, uint16(mac) == header.ShortMac)
		}
		if !status.MacMatched {
			logger.NasLog.Warnf("service request short MAC verification failed (received: 0x%04x)",
				header.ShortMac)
		}
		msg.Body, err = nasMessage.DecodePlain(payload[:size])
		return msg, status, err
	}

	status.IntegrityProtected = true
	status.Ciphered = nasMessage.IsCiphered(header.SecurityHeaderType)
	seq := header.SequenceNumber
	if status.SecurityContextAvailable {
		count := decodeCount(sc)
		if count.SQN() > seq {
			logger.NasLog.Debugf("set NAS count overflow")
			count.SetOverflow(count.Overflow() + 1)
		}
		count.SetSQN(seq)
		mac := ComputeMac(sc, sc.DirectionDecode, payload[nasMessage.SequenceNumberOffset:])
		status.MacMatched = macAccepted(sc, mac == header.MessageAuthenticationCode)
		if !status.MacMatched {
			logger.NasLog.Warnf("NAS MAC verification failed (received: 0x%08x, expected: 0x%08x)",
				header.MessageAuthenticationCode, mac)
		}
	}

	plain, err := Decrypt(sc, header.SecurityHeaderType, seq, payload[size:], status)
	if err != nil {
		return nil, status, err
	}
	msg.Body, err = nasMessage.DecodePlain(plain)
	return msg, status, err
}

// macAccepted requires a context with integrity keys. Under EIA0 the
// computed MAC is 0, so only a zero MAC is accepted.
func macAccepted(sc *context.SecurityContext, matched bool) bool {
	return sc.HasIntegrityKey() && matched
}

// estimateServiceRequestSqn rebuilds the full 8-bit sequence number from
// the 5 bits carried in a service request and stores it in the decode COUNT.
func estimateServiceRequestSqn(sc *context.SecurityContext, rx uint8) {
	count := decodeCount(sc)
	stored := count.SQN()
	high := stored >> 5
	if rx&0x1f < stored&0x1f {
		high = (high + 1) & 0x07
		if high == 0 {
			count.SetOverflow(count.Overflow() + 1)
		}
	}
	count.SetSQN(high<<5 | rx&0x1f)
}
