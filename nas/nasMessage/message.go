// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package nasMessage

import (
	"fmt"
)

// Body is the plain part of a NAS message: an EMM message or an ESM message.
type Body interface {
	ProtocolDiscriminator() uint8
}

// EmmMessage is implemented by every EMM message struct in this package.
type EmmMessage interface {
	Body
	MessageType() uint8
	encodeBody(w *writer) error
	decodeBody(r *reader) error
}

// Message is one decoded or to-be-encoded NAS PDU.
type Message struct {
	SecurityHeader SecurityHeader
	Body           Body
}

// EmmMessageType returns the message type of an EMM body, or false for ESM.
func (m *Message) EmmMessageType() (uint8, bool) {
	if m == nil || m.Body == nil {
		return 0, false
	}
	if emm, ok := m.Body.(EmmMessage); ok {
		return emm.MessageType(), true
	}
	return 0, false
}

// EsmMessage is carried opaquely; ESM procedures live outside this package.
type EsmMessage struct {
	EpsBearerIdentity            uint8
	ProcedureTransactionIdentity uint8
	MessageType                  uint8
	Payload                      []byte
}

func (*EsmMessage) ProtocolDiscriminator() uint8 { return ProtocolDiscriminatorESM }

func newEmmMessage(msgType uint8) EmmMessage {
	switch msgType {
	case MsgTypeAttachRequest:
		return &AttachRequest{}
	case MsgTypeAttachAccept:
		return &AttachAccept{}
	case MsgTypeAttachComplete:
		return &AttachComplete{}
	case MsgTypeAttachReject:
		return &AttachReject{}
	case MsgTypeDetachRequest:
		return &DetachRequest{}
	case MsgTypeDetachAccept:
		return &DetachAccept{}
	case MsgTypeTrackingAreaUpdateRequest:
		return &TrackingAreaUpdateRequest{}
	case MsgTypeTrackingAreaUpdateAccept:
		return &TrackingAreaUpdateAccept{}
	case MsgTypeTrackingAreaUpdateComplete:
		return &TrackingAreaUpdateComplete{}
	case MsgTypeTrackingAreaUpdateReject:
		return &TrackingAreaUpdateReject{}
	case MsgTypeExtendedServiceRequest:
		return &ExtendedServiceRequest{}
	case MsgTypeServiceReject:
		return &ServiceReject{}
	case MsgTypeAuthenticationRequest:
		return &AuthenticationRequest{}
	case MsgTypeAuthenticationResponse:
		return &AuthenticationResponse{}
	case MsgTypeAuthenticationReject:
		return &AuthenticationReject{}
	case MsgTypeAuthenticationFailure:
		return &AuthenticationFailure{}
	case MsgTypeIdentityRequest:
		return &IdentityRequest{}
	case MsgTypeIdentityResponse:
		return &IdentityResponse{}
	case MsgTypeSecurityModeCommand:
		return &SecurityModeCommand{}
	case MsgTypeSecurityModeComplete:
		return &SecurityModeComplete{}
	case MsgTypeSecurityModeReject:
		return &SecurityModeReject{}
	case MsgTypeEmmStatus:
		return &EmmStatus{}
	case MsgTypeEmmInformation:
		return &EmmInformation{}
	case MsgTypeDownlinkNasTransport:
		return &DownlinkNasTransport{}
	case MsgTypeUplinkNasTransport:
		return &UplinkNasTransport{}
	}
	return nil
}

// DecodePlain decodes a plain NAS message. A detach request is decoded in its
// UE originating form since that is the only direction the MME receives.
func DecodePlain(b []byte) (Body, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return nil, err
	}
	switch h.ProtocolDiscriminator {
	case ProtocolDiscriminatorEMM:
		if h.SecurityHeaderType == SecurityHeaderTypeServiceRequest {
			return &ServiceRequest{Ksi: h.Ksi, SequenceNumber: h.SequenceNumber, ShortMac: h.ShortMac}, nil
		}
		if len(b) < 2 {
			return nil, ErrBufferTooShort
		}
		msg := newEmmMessage(b[1])
		if msg == nil {
			return nil, fmt.Errorf("%w: 0x%02x", ErrMessageTypeNotImplemented, b[1])
		}
		if err := msg.decodeBody(newReader(b[2:])); err != nil {
			return nil, fmt.Errorf("decode %T: %w", msg, err)
		}
		return msg, nil
	case ProtocolDiscriminatorESM:
		if len(b) < 3 {
			return nil, ErrBufferTooShort
		}
		payload := make([]byte, len(b)-3)
		copy(payload, b[3:])
		return &EsmMessage{
			EpsBearerIdentity:            b[0] >> 4,
			ProcedureTransactionIdentity: b[1],
			MessageType:                  b[2],
			Payload:                      payload,
		}, nil
	default:
		return nil, ErrProtocolNotSupported
	}
}

// EncodePlain encodes a body without security protection.
func EncodePlain(body Body) ([]byte, error) {
	switch msg := body.(type) {
	case nil:
		return nil, fmt.Errorf("%w: empty body", ErrInvalidMandatoryIe)
	case *ServiceRequest:
		return EncodeHeader(SecurityHeader{
			ProtocolDiscriminator: ProtocolDiscriminatorEMM,
			SecurityHeaderType:    SecurityHeaderTypeServiceRequest,
			Ksi:                   msg.Ksi,
			SequenceNumber:        msg.SequenceNumber,
			ShortMac:              msg.ShortMac,
		}), nil
	case *EsmMessage:
		out := []byte{msg.EpsBearerIdentity<<4 | ProtocolDiscriminatorESM, msg.ProcedureTransactionIdentity, msg.MessageType}
		return append(out, msg.Payload...), nil
	case EmmMessage:
		w := &writer{buf: []byte{ProtocolDiscriminatorEMM, msg.MessageType()}}
		if err := msg.encodeBody(w); err != nil {
			return nil, fmt.Errorf("encode %T: %w", msg, err)
		}
		return w.buf, nil
	default:
		return nil, fmt.Errorf("%w: body %T", ErrProtocolNotSupported, body)
	}
}
