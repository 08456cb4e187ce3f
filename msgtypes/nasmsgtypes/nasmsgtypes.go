// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package nasmsgtypes

import (
	"fmt"

	"github.com/omec-project/mme/nas/nasMessage"
)

var NasMsg map[uint8]string

func init() {
	BuildMessageTypeToMsgMap()
}

func BuildMessageTypeToMsgMap() {
	NasMsg = make(map[uint8]string, 32)
	NasMsg[nasMessage.MsgTypeAttachRequest] = "AttachRequest"
	NasMsg[nasMessage.MsgTypeAttachAccept] = "AttachAccept"
	NasMsg[nasMessage.MsgTypeAttachComplete] = "AttachComplete"
	NasMsg[nasMessage.MsgTypeAttachReject] = "AttachReject"
	NasMsg[nasMessage.MsgTypeDetachRequest] = "DetachRequest"
	NasMsg[nasMessage.MsgTypeDetachAccept] = "DetachAccept"
	NasMsg[nasMessage.MsgTypeTrackingAreaUpdateRequest] = "TrackingAreaUpdateRequest"
	NasMsg[nasMessage.MsgTypeTrackingAreaUpdateAccept] = "TrackingAreaUpdateAccept"
	NasMsg[nasMessage.MsgTypeTrackingAreaUpdateComplete] = "TrackingAreaUpdateComplete"
	NasMsg[nasMessage.MsgTypeTrackingAreaUpdateReject] = "TrackingAreaUpdateReject"
	NasMsg[nasMessage.MsgTypeExtendedServiceRequest] = "ExtendedServiceRequest"
	NasMsg[nasMessage.MsgTypeServiceReject] = "ServiceReject"
	NasMsg[nasMessage.MsgTypeGutiReallocationCommand] = "GutiReallocationCommand"
	NasMsg[nasMessage.MsgTypeGutiReallocationComplete] = "GutiReallocationComplete"
	NasMsg[nasMessage.MsgTypeAuthenticationRequest] = "AuthenticationRequest"
	NasMsg[nasMessage.MsgTypeAuthenticationResponse] = "AuthenticationResponse"
	NasMsg[nasMessage.MsgTypeAuthenticationReject] = "AuthenticationReject"
	NasMsg[nasMessage.MsgTypeIdentityRequest] = "IdentityRequest"
	NasMsg[nasMessage.MsgTypeIdentityResponse] = "IdentityResponse"
	NasMsg[nasMessage.MsgTypeAuthenticationFailure] = "AuthenticationFailure"
	NasMsg[nasMessage.MsgTypeSecurityModeCommand] = "SecurityModeCommand"
	NasMsg[nasMessage.MsgTypeSecurityModeComplete] = "SecurityModeComplete"
	NasMsg[nasMessage.MsgTypeSecurityModeReject] = "SecurityModeReject"
	NasMsg[nasMessage.MsgTypeEmmStatus] = "EmmStatus"
	NasMsg[nasMessage.MsgTypeEmmInformation] = "EmmInformation"
	NasMsg[nasMessage.MsgTypeDownlinkNasTransport] = "DownlinkNasTransport"
	NasMsg[nasMessage.MsgTypeUplinkNasTransport] = "UplinkNasTransport"
	NasMsg[nasMessage.MsgTypeCsServiceNotification] = "CsServiceNotification"
	NasMsg[nasMessage.MsgTypeDownlinkGenericNasTransport] = "DownlinkGenericNasTransport"
	NasMsg[nasMessage.MsgTypeUplinkGenericNasTransport] = "UplinkGenericNasTransport"
	NasMsg[nasMessage.MsgTypeServiceRequestPseudo] = "ServiceRequest"
}

// Name returns the counter label of an EMM message type.
func Name(msgType uint8) string {
	if name, ok := NasMsg[msgType]; ok {
		return name
	}
	return fmt.Sprintf("Unknown_0x%02x", msgType)
}
