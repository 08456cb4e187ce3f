// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package message

import (
	"fmt"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/nas/nasMessage"
	"github.com/omec-project/mme/nas/nas_security"
)

// T3412 default value when none is configured (TS 24.301 10.2).
const defaultT3412Seconds = 54 * 60

func encode(ue *context.UeContext, body nasMessage.Body, newContext, ciphered bool) ([]byte, error) {
	sc := ue.Emm.SecurityContext
	msg := &nasMessage.Message{Body: body}
	msg.SecurityHeader = nasMessage.SecurityHeader{
		ProtocolDiscriminator: nasMessage.ProtocolDiscriminatorEMM,
		SecurityHeaderType:    SetHeader(NewSecurityData(sc, newContext, ciphered)),
	}
	pdu, err := nas_security.Encode(sc, msg)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", body, err)
	}
	return pdu, nil
}

// ProtectPdu applies the current security context to a NAS PDU that was
// encoded elsewhere, such as an ESM message from the session side.
func ProtectPdu(ue *context.UeContext, plain []byte) ([]byte, error) {
	sc := ue.Emm.SecurityContext
	sht := SetHeader(NewSecurityData(sc, false, true))
	return nas_security.Protect(sc, sht, plain)
}

// GprsTimer encodes seconds as a GPRS timer value (TS 24.008 10.5.7.3).
// Zero or less deactivates the timer.
func GprsTimer(seconds int) uint8 {
	switch {
	case seconds <= 0:
		return 0xe0
	case seconds%60 != 0 && seconds/2 <= 0x1f:
		return uint8(seconds / 2)
	case seconds/60 <= 0x1f:
		return 0x20 | uint8(seconds/60)
	case seconds/360 <= 0x1f:
		return 0x40 | uint8(seconds/360)
	default:
		return 0x40 | 0x1f
	}
}

func timerPtr(seconds int) *uint8 {
	if seconds == 0 {
		return nil
	}
	v := GprsTimer(seconds)
	return &v
}

func BuildAttachAccept(mme *context.MmeContext, ue *context.UeContext, esmContainer []byte) ([]byte, error) {
	cfg := mme.Configuration()
	guti, ok := ue.Emm.Guti.Get()
	if !ok {
		return nil, fmt.Errorf("no valid guti for %s", ue)
	}
	t3412 := cfg.T3412Value
	if t3412 == 0 {
		t3412 = defaultT3412Seconds
	}

	accept := &nasMessage.AttachAccept{
		EpsAttachResult:     nasMessage.EpsAttachResultEpsOnly,
		T3412Value:          GprsTimer(t3412),
		TaiList:             ue.Emm.TaiList,
		EsmMessageContainer: esmContainer,
		Guti:                &guti,
		T3402Value:          timerPtr(cfg.T3402Value),
		T3423Value:          timerPtr(cfg.T3423Value),
	}
	if ue.Emm.IsCombinedAttach() {
		if cfg.CsfbSmsSupported() {
			accept.EpsAttachResult = nasMessage.EpsAttachResultCombinedEpsImsi
		} else {
			cause := nasMessage.Cause18CsDomainNotAvailable
			accept.EmmCause = &cause
		}
	}
	return encode(ue, accept, false, true)
}

func BuildAttachReject(ue *context.UeContext, cause uint8, esmContainer []byte) ([]byte, error) {
	return encode(ue, &nasMessage.AttachReject{EmmCause: cause, EsmMessageContainer: esmContainer}, false, true)
}

func BuildDetachAccept(ue *context.UeContext) ([]byte, error) {
	return encode(ue, &nasMessage.DetachAccept{}, false, true)
}

// BuildDetachRequest builds the network originating detach request.
func BuildDetachRequest(ue *context.UeContext, detachType uint8, cause uint8) ([]byte, error) {
	req := &nasMessage.DetachRequest{UeTerminated: true, DetachType: detachType}
	if cause != 0 {
		req.EmmCause = &cause
	}
	return encode(ue, req, false, true)
}

// BuildTrackingAreaUpdateAccept includes guti when a new one was allocated.
func BuildTrackingAreaUpdateAccept(mme *context.MmeContext, ue *context.UeContext, result uint8,
	guti *nasMessage.Guti,
) ([]byte, error) {
	cfg := mme.Configuration()
	accept := &nasMessage.TrackingAreaUpdateAccept{
		EpsUpdateResult: result,
		T3412Value:      timerPtr(cfg.T3412Value),
		Guti:            guti,
		TaiList:         ue.Emm.TaiList,
		T3402Value:      timerPtr(cfg.T3402Value),
		T3423Value:      timerPtr(cfg.T3423Value),
	}
	return encode(ue, accept, false, true)
}

func BuildTrackingAreaUpdateReject(ue *context.UeContext, cause uint8) ([]byte, error) {
	return encode(ue, &nasMessage.TrackingAreaUpdateReject{EmmCause: cause}, false, true)
}

func BuildServiceReject(ue *context.UeContext, cause uint8) ([]byte, error) {
	return encode(ue, &nasMessage.ServiceReject{EmmCause: cause}, false, true)
}

// BuildAuthenticationRequest challenges the UE with the vector held by the
// non-current security context.
func BuildAuthenticationRequest(ue *context.UeContext) ([]byte, error) {
	sc := ue.Emm.NonCurrentSecurityContext
	if sc == nil || sc.Vector == nil {
		return nil, fmt.Errorf("no authentication vector for %s", ue)
	}
	req := &nasMessage.AuthenticationRequest{
		NasKeySetIdentifier: nasMessage.NasKeySetIdentifier{
			Tsc: nasMessage.TypeOfSecurityContextNative,
			Ksi: sc.Eksi,
		},
		Rand: sc.Vector.Rand,
		Autn: sc.Vector.Autn,
	}
	return encode(ue, req, false, true)
}

func BuildAuthenticationReject(ue *context.UeContext) ([]byte, error) {
	return nasMessage.EncodePlain(&nasMessage.AuthenticationReject{})
}

func BuildIdentityRequest(ue *context.UeContext, identityType uint8) ([]byte, error) {
	return encode(ue, &nasMessage.IdentityRequest{IdentityType: identityType}, false, true)
}

// BuildSecurityModeCommand is protected with the new context and is never
// ciphered.
func BuildSecurityModeCommand(ue *context.UeContext) ([]byte, error) {
	sc := ue.Emm.SecurityContext
	if !sc.Available() {
		return nil, fmt.Errorf("no security context for %s", ue)
	}
	imeisvRequest := uint8(0x01)
	cmd := &nasMessage.SecurityModeCommand{
		SelectedEea: sc.SelectedAlgorithms.Encryption,
		SelectedEia: sc.SelectedAlgorithms.Integrity,
		NasKeySetIdentifier: nasMessage.NasKeySetIdentifier{
			Tsc: nasMessage.TypeOfSecurityContextNative,
			Ksi: sc.Eksi,
		},
		ReplayedUeSecurityCapabilities: ue.Emm.UeNetworkCapability.ReplayedSecurityCapabilities(),
		ImeisvRequest:                  &imeisvRequest,
	}
	return encode(ue, cmd, true, false)
}

func BuildEmmStatus(ue *context.UeContext, cause uint8) ([]byte, error) {
	return encode(ue, &nasMessage.EmmStatus{EmmCause: cause}, false, true)
}

func BuildEmmInformation(mme *context.MmeContext, ue *context.UeContext) ([]byte, error) {
	name := mme.Configuration().NetworkName
	info := &nasMessage.EmmInformation{
		FullNameForNetwork:  networkName(name.Full),
		ShortNameForNetwork: networkName(name.Short),
	}
	return encode(ue, info, false, true)
}

// networkName encodes a network name IE value (TS 24.008 10.5.3.5a) in the
// GSM 7 bit default alphabet. Only the ASCII subset shared with it is kept.
func networkName(name string) []byte {
	if name == "" {
		return nil
	}
	septets := make([]byte, 0, len(name))
	for _, c := range []byte(name) {
		if c < 0x20 || c > 0x7e || c == '@' || c == '$' || c == '_' || c == '`' {
			c = ' '
		}
		septets = append(septets, c)
	}
	packed := make([]byte, (len(septets)*7+7)/8)
	for i, s := range septets {
		bit := i * 7
		packed[bit/8] |= s << (bit % 8)
		if bit%8 > 1 {
			packed[bit/8+1] |= s >> (8 - bit%8)
		}
	}
	spare := uint8((8 - (len(septets)*7)%8) % 8)
	// ext, GSM default alphabet, no country initials
	return append([]byte{0x80 | spare}, packed...)
}
