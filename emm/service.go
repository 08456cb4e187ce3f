// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package emm

import (
	"strconv"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/emm/message"
	"github.com/omec-project/mme/metrics"
	"github.com/omec-project/mme/nas/nasMessage"
	s1ap_message "github.com/omec-project/mme/s1ap/message"
)

func countResult(name, result string, cause uint8) {
	labels := []metrics.Label{{Key: "result", Value: result}}
	if cause != 0 {
		labels = append(labels, metrics.Label{Key: "cause", Value: nasMessage.CauseName(cause)})
	}
	metrics.IncrementCounter(name, labels...)
}

// resumeConnection re-establishes the radio bearers of a registered UE with a
// fresh KeNB.
func resumeConnection(mme *context.MmeContext, ue *context.UeContext) error {
	sc := ue.Emm.SecurityContext
	if !sc.Available() {
		return s1ap_message.SendUeContextReleaseCommand(mme, ue, context.S1apCauseNasNormalRelease)
	}
	if err := sc.DeriveKenb(); err != nil {
		return err
	}
	if err := s1ap_message.SendInitialContextSetupRequest(mme, ue, nil); err != nil {
		return err
	}
	ue.PublishUeCtxtInfo(mme.NfId)
	return nil
}

// HandleServiceRequest resumes the connection of a registered UE.
func HandleServiceRequest(mme *context.MmeContext, ue *context.UeContext, _ *nasMessage.ServiceRequest) error {
	ue.Emm.Log.Infoln("handle Service Request")
	if !ue.Emm.State.Is(context.Registered) {
		countResult("service_request", "failure", nasMessage.Cause10ImplicitlyDetached)
		ue.DestroyOnRelease = true
		return message.SendServiceReject(mme, ue, nasMessage.Cause10ImplicitlyDetached)
	}
	if err := resumeConnection(mme, ue); err != nil {
		countResult("service_request", "failure", nasMessage.Cause111ProtocolErrorUnspecified)
		return err
	}
	countResult("service_request", "success", 0)
	return nil
}

// HandleExtendedServiceRequest serves CS fallback requests. They are refused
// with congestion unless the UE did a combined attach and CS fallback with
// SMS is offered.
func HandleExtendedServiceRequest(mme *context.MmeContext, ue *context.UeContext,
	req *nasMessage.ExtendedServiceRequest,
) error {
	emm := ue.Emm
	emm.Log.Infof("handle Extended Service Request, service type %d", req.ServiceType)
	if !emm.IsCombinedAttach() || !mme.Configuration().CsfbSmsSupported() {
		countResult("extended_service_request", "failure", nasMessage.Cause22Congestion)
		return message.SendServiceReject(mme, ue, nasMessage.Cause22Congestion)
	}
	if !emm.State.Is(context.Registered) {
		countResult("extended_service_request", "failure", nasMessage.Cause10ImplicitlyDetached)
		ue.DestroyOnRelease = true
		return message.SendServiceReject(mme, ue, nasMessage.Cause10ImplicitlyDetached)
	}
	if req.CsfbResponse != nil {
		emm.Csfb.CsfbResponse.Set(*req.CsfbResponse)
	}
	mme.MarkDirty(ue.UeId)
	if err := resumeConnection(mme, ue); err != nil {
		countResult("extended_service_request", "failure", nasMessage.Cause111ProtocolErrorUnspecified)
		return err
	}
	countResult("extended_service_request", "success", 0)
	return nil
}

// RejectUnidentified answers a service request, extended service request or
// tracking area update request whose sender could not be verified.
func RejectUnidentified(mme *context.MmeContext, ue *context.UeContext, msgType uint8) error {
	cause := nasMessage.Cause9UeIdentityCannotBeDerivedByNetwork
	switch msgType {
	case nasMessage.MsgTypeServiceRequestPseudo:
		countResult("service_request", "failure", cause)
		return message.SendUnprotectedServiceReject(mme, ue, cause)
	case nasMessage.MsgTypeExtendedServiceRequest:
		countResult("extended_service_request", "failure", cause)
		return message.SendUnprotectedServiceReject(mme, ue, cause)
	case nasMessage.MsgTypeTrackingAreaUpdateRequest:
		countResult("tracking_area_update_req", "failure", cause)
		return message.SendUnprotectedTrackingAreaUpdateReject(mme, ue, cause)
	}
	return nil
}

// HandleTrackingAreaUpdateRequest accepts a TAU from a registered UE. A new
// GUTI and TAI list are allocated when the UE left its TAI list.
func HandleTrackingAreaUpdateRequest(mme *context.MmeContext, ue *context.UeContext,
	req *nasMessage.TrackingAreaUpdateRequest,
) error {
	emm := ue.Emm
	updateType := req.EpsUpdateType & 0x07
	emm.Log.Infof("handle Tracking Area Update Request, update type %d, active %t", updateType, req.ActiveFlag())
	if !emm.State.Is(context.Registered) {
		countResult("tracking_area_update_req", "failure", nasMessage.Cause10ImplicitlyDetached)
		ue.DestroyOnRelease = true
		return message.SendTrackingAreaUpdateReject(mme, ue, nasMessage.Cause10ImplicitlyDetached)
	}

	if len(req.UeNetworkCapability) > 0 {
		emm.UeNetworkCapability = req.UeNetworkCapability
	}
	if req.DrxParameter != nil {
		emm.DrxParameter = req.DrxParameter
	}
	if req.LastVisitedRegisteredTai != nil {
		emm.LastVisitedTai.Set(*req.LastVisitedRegisteredTai)
	}
	if req.AdditionalUpdateType != nil {
		emm.Csfb.AdditionalUpdateType.Set(*req.AdditionalUpdateType)
	}
	if req.MsNetworkCapability != nil {
		emm.Csfb.MsNetworkCapability.Set(req.MsNetworkCapability)
	}

	result := nasMessage.EpsUpdateResultTaUpdated
	combined := updateType == nasMessage.EpsUpdateTypeCombinedTaLaUpdating ||
		updateType == nasMessage.EpsUpdateTypeCombinedTaLaUpdatingWithImsi
	if combined && emm.IsCombinedAttach() && mme.Configuration().CsfbSmsSupported() {
		result = nasMessage.EpsUpdateResultCombinedTaLaUpdated
		emm.Csfb.SgsAssociated = true
	}

	emm.StartProcedure(context.ProcedureTau, mme.Timers)
	var guti *nasMessage.Guti
	if !inTaiList(emm.TaiList, ue.Tai) {
		allocated, err := mme.AllocateGuti(ue)
		if err != nil {
			emm.Log.Errorf("allocate guti: %v", err)
		} else {
			guti = &allocated
		}
		emm.TaiList = taiListFor(mme, ue)
	}
	mme.MarkDirty(ue.UeId)
	if err := message.SendTrackingAreaUpdateAccept(mme, ue, result, guti); err != nil {
		countResult("tracking_area_update_req", "failure", nasMessage.Cause111ProtocolErrorUnspecified)
		return err
	}
	countResult("tracking_area_update_req", "success", 0)
	if req.ActiveFlag() {
		return resumeConnection(mme, ue)
	}
	return nil
}

func inTaiList(list nasMessage.TaiList, tai nasMessage.Tai) bool {
	for _, t := range list {
		if t == tai {
			return true
		}
	}
	return false
}

func HandleTrackingAreaUpdateComplete(mme *context.MmeContext, ue *context.UeContext,
	_ *nasMessage.TrackingAreaUpdateComplete,
) error {
	if _, ok := ue.Emm.Procedure(context.ProcedureTau); !ok {
		ue.Emm.Log.Warnln("tracking area update complete without tracking area update procedure")
		return nil
	}
	ue.Emm.Log.Infoln("handle Tracking Area Update Complete")
	ue.Emm.StopProcedure(context.ProcedureTau, mme.Timers)
	mme.ReleaseOldGuti(ue)
	return nil
}

func HandleEmmStatus(mme *context.MmeContext, ue *context.UeContext, status *nasMessage.EmmStatus) error {
	ue.Emm.Log.Infof("handle EMM Status, cause %d", status.EmmCause)
	metrics.IncrementCounter("emm_status_rcvd",
		metrics.Label{Key: "cause", Value: strconv.Itoa(int(status.EmmCause))})
	return nil
}

// HandleUplinkNasTransport would carry SMS over SGs, which is not offered.
func HandleUplinkNasTransport(mme *context.MmeContext, ue *context.UeContext,
	msg *nasMessage.UplinkNasTransport,
) error {
	ue.Emm.Log.Infof("uplink nas transport dropped, %d bytes, SGs associated %t",
		len(msg.NasMessageContainer), ue.Emm.Csfb.SgsAssociated)
	return nil
}
