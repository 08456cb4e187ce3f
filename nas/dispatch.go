// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package nas

import (
	"errors"
	"fmt"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/emm"
	"github.com/omec-project/mme/emm/message"
	"github.com/omec-project/mme/metrics"
	"github.com/omec-project/mme/msgtypes/nasmsgtypes"
	"github.com/omec-project/mme/nas/nasMessage"
	"github.com/omec-project/mme/nas/nas_security"
)

// ErrProtocolError is returned when a message fails the integrity gate of its
// message type and is not handed to EMM.
var ErrProtocolError = errors.New("nas message failed integrity requirements")

var dispatchEmm = emm.Dispatch

type gate uint8

const (
	// no integrity requirement
	gateNone gate = iota
	// verified integrity required, failure answered with EMM STATUS #111
	gateComplete
	// verified integrity required, failure answered with a reject #9
	gateRequest
	// verified integrity required once the security context is activated
	gateDetach
)

func gateOf(msgType uint8) gate {
	switch msgType {
	case nasMessage.MsgTypeEmmStatus,
		nasMessage.MsgTypeSecurityModeComplete,
		nasMessage.MsgTypeAttachComplete,
		nasMessage.MsgTypeTrackingAreaUpdateComplete,
		nasMessage.MsgTypeUplinkNasTransport:
		return gateComplete
	case nasMessage.MsgTypeServiceRequestPseudo,
		nasMessage.MsgTypeExtendedServiceRequest,
		nasMessage.MsgTypeTrackingAreaUpdateRequest:
		return gateRequest
	case nasMessage.MsgTypeDetachRequest,
		nasMessage.MsgTypeDetachAccept:
		return gateDetach
	}
	return gateNone
}

// verified reports whether the message arrived integrity protected under an
// available security context and its MAC matched.
func verified(status nas_security.DecodeStatus) bool {
	return status.SecurityContextAvailable && status.IntegrityProtected && status.MacMatched
}

// acceptedWithoutIntegrity lists the messages processed even when their
// integrity check fails (TS 24.301 4.4.4.3).
func acceptedWithoutIntegrity(msgType uint8, sc *context.SecurityContext) bool {
	switch msgType {
	case nasMessage.MsgTypeAttachRequest,
		nasMessage.MsgTypeIdentityResponse,
		nasMessage.MsgTypeAuthenticationResponse,
		nasMessage.MsgTypeAuthenticationFailure,
		nasMessage.MsgTypeSecurityModeReject:
		return true
	case nasMessage.MsgTypeDetachRequest,
		nasMessage.MsgTypeDetachAccept:
		return !sc.Available() || !sc.Activated
	}
	return false
}

// causeOf maps a codec error to the EMM cause reported to the UE. Zero means
// the message is discarded silently.
func causeOf(err error) uint8 {
	switch {
	case errors.Is(err, nasMessage.ErrBufferTooShort),
		errors.Is(err, nasMessage.ErrProtocolNotSupported):
		return 0
	case errors.Is(err, nasMessage.ErrMessageTypeNotImplemented):
		return nasMessage.Cause97MessageTypeNonExistentOrNotImplemented
	case errors.Is(err, nasMessage.ErrInvalidMandatoryIe):
		return nasMessage.Cause96InvalidMandatoryInformation
	default:
		return nasMessage.Cause111ProtocolErrorUnspecified
	}
}

// recv decodes one uplink NAS PDU of ue, applies the integrity gate of its
// message type and hands it to EMM.
func recv(mme *context.MmeContext, ue *context.UeContext, pdu []byte) error {
	msg, status, err := nas_security.Decode(ue.Emm.SecurityContext, pdu)
	if err != nil {
		cause := causeOf(err)
		metrics.IncrementNasMsgStats(mme.Name, "Undecodable", "in", "failure", nasMessage.CauseName(cause))
		if cause == 0 {
			ue.Emm.Log.Debugf("discard nas message: %v", err)
			return nil
		}
		ue.Emm.Log.Warnf("decode nas message: %v", err)
		if sendErr := message.SendEmmStatus(mme, ue, cause); sendErr != nil {
			ue.Emm.Log.Errorln(sendErr)
		}
		return fmt.Errorf("decode nas message: %w", err)
	}

	msgType, ok := msg.EmmMessageType()
	if !ok {
		ue.Emm.Log.Warnln("esm message outside of an emm container discarded")
		return nil
	}
	name := nasmsgtypes.Name(msgType)
	ue.Emm.Log.Debugf("received %s, %+v", name, status)

	sc := ue.Emm.SecurityContext
	if status.IntegrityProtected && status.SecurityContextAvailable && !status.MacMatched &&
		!mme.Configuration().TolerateMacMismatch() && !acceptedWithoutIntegrity(msgType, sc) {
		ue.Emm.Log.Warnf("%s discarded, MAC mismatch", name)
		metrics.IncrementNasMsgStats(mme.Name, name, "in", "failure", "mac_mismatch")
		return nil
	}

	switch gateOf(msgType) {
	case gateComplete:
		if !verified(status) {
			return reject(mme, ue, name, nasMessage.Cause111ProtocolErrorUnspecified, func() error {
				return message.SendEmmStatus(mme, ue, nasMessage.Cause111ProtocolErrorUnspecified)
			})
		}
	case gateRequest:
		if !verified(status) {
			return reject(mme, ue, name, nasMessage.Cause9UeIdentityCannotBeDerivedByNetwork, func() error {
				return emm.RejectUnidentified(mme, ue, msgType)
			})
		}
	case gateDetach:
		if sc.Available() && sc.Activated && !verified(status) {
			return reject(mme, ue, name, nasMessage.Cause111ProtocolErrorUnspecified, func() error {
				return message.SendEmmStatus(mme, ue, nasMessage.Cause111ProtocolErrorUnspecified)
			})
		}
	}

	metrics.IncrementNasMsgStats(mme.Name, name, "in", "success", "")
	return dispatchEmm(mme, ue, msg, status)
}

func reject(mme *context.MmeContext, ue *context.UeContext, name string, cause uint8, respond func() error) error {
	ue.Emm.Log.Warnf("%s failed integrity requirements, cause %d", name, cause)
	metrics.IncrementNasMsgStats(mme.Name, name, "in", "failure", nasMessage.CauseName(cause))
	if err := respond(); err != nil {
		ue.Emm.Log.Errorln(err)
	}
	return fmt.Errorf("%s: %w", name, ErrProtocolError)
}
