// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package message

import (
	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/factory"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/metrics"
	"github.com/omec-project/mme/nas/nasMessage"
	s1ap_message "github.com/omec-project/mme/s1ap/message"
)

func deliver(mme *context.MmeContext, ue *context.UeContext, msgType string, pdu []byte,
	disposition itti.Disposition,
) error {
	err := s1ap_message.SendDownlinkNasTransport(mme, ue, pdu, disposition)
	if err != nil {
		metrics.IncrementNasMsgStats(mme.Name, msgType, "out", "failure", "bus_error")
		return err
	}
	metrics.IncrementNasMsgStats(mme.Name, msgType, "out", "success", "")
	return nil
}

// arm records pdu for retransmission on procedure t and (re)starts its timer.
func arm(mme *context.MmeContext, ue *context.UeContext, t context.ProcedureType, timer string,
	tv factory.TimerValue, pdu []byte,
) *context.Procedure {
	p, ok := ue.Emm.Procedure(t)
	if !ok {
		p = ue.Emm.StartProcedure(t, mme.Timers)
	}
	mme.Timers.Stop(p.Timer)
	p.Pdu = pdu
	p.Timer = mme.Timers.Start(ue.UeId, timer, tv)
	return p
}

// SendAttachAccept carries the attach accept in the initial context setup
// request that also hands KeNB to the eNB, then runs T3450.
func SendAttachAccept(mme *context.MmeContext, ue *context.UeContext, esmContainer []byte) error {
	ue.Emm.Log.Infoln("send Attach Accept")
	pdu, err := BuildAttachAccept(mme, ue, esmContainer)
	if err != nil {
		ue.Emm.Log.Errorln(err.Error())
		return err
	}
	if err := s1ap_message.SendInitialContextSetupRequest(mme, ue, pdu); err != nil {
		ue.Emm.Log.Errorln(err.Error())
		return err
	}
	metrics.IncrementNasMsgStats(mme.Name, "AttachAccept", "out", "success", "")
	arm(mme, ue, context.ProcedureAttach, context.T3450, mme.Configuration().T3450, pdu)
	return nil
}

func SendAttachReject(mme *context.MmeContext, ue *context.UeContext, cause uint8, esmContainer []byte) error {
	ue.Emm.Log.Infof("send Attach Reject, cause %d", cause)
	pdu, err := BuildAttachReject(ue, cause, esmContainer)
	if err != nil {
		ue.Emm.Log.Errorln(err.Error())
		return err
	}
	return deliver(mme, ue, "AttachReject", pdu, itti.DispositionReleaseAfterSend)
}

func SendDetachAccept(mme *context.MmeContext, ue *context.UeContext, disposition itti.Disposition) error {
	ue.Emm.Log.Infoln("send Detach Accept")
	pdu, err := BuildDetachAccept(ue)
	if err != nil {
		ue.Emm.Log.Errorln(err.Error())
		return err
	}
	return deliver(mme, ue, "DetachAccept", pdu, disposition)
}

// SendDetachRequest starts a network initiated detach guarded by T3422.
func SendDetachRequest(mme *context.MmeContext, ue *context.UeContext, detachType, cause uint8) error {
	ue.Emm.Log.Infof("send Detach Request, type %d cause %d", detachType, cause)
	pdu, err := BuildDetachRequest(ue, detachType, cause)
	if err != nil {
		ue.Emm.Log.Errorln(err.Error())
		return err
	}
	if err := deliver(mme, ue, "DetachRequest", pdu, itti.DispositionSuccess); err != nil {
		return err
	}
	p := arm(mme, ue, context.ProcedureNetworkDetach, context.T3422, mme.Configuration().T3422, pdu)
	p.Cause = detachType
	return nil
}

// SendTrackingAreaUpdateAccept runs T3450 only when a new GUTI is included.
func SendTrackingAreaUpdateAccept(mme *context.MmeContext, ue *context.UeContext, result uint8,
	guti *nasMessage.Guti,
) error {
	ue.Emm.Log.Infof("send Tracking Area Update Accept, result %d", result)
	pdu, err := BuildTrackingAreaUpdateAccept(mme, ue, result, guti)
	if err != nil {
		ue.Emm.Log.Errorln(err.Error())
		return err
	}
	if err := deliver(mme, ue, "TrackingAreaUpdateAccept", pdu, itti.DispositionSuccess); err != nil {
		return err
	}
	if guti != nil {
		arm(mme, ue, context.ProcedureTau, context.T3450, mme.Configuration().T3450, pdu)
	} else {
		ue.Emm.StopProcedure(context.ProcedureTau, mme.Timers)
	}
	return nil
}

func SendTrackingAreaUpdateReject(mme *context.MmeContext, ue *context.UeContext, cause uint8) error {
	ue.Emm.Log.Infof("send Tracking Area Update Reject, cause %d", cause)
	pdu, err := BuildTrackingAreaUpdateReject(ue, cause)
	if err != nil {
		ue.Emm.Log.Errorln(err.Error())
		return err
	}
	return deliver(mme, ue, "TrackingAreaUpdateReject", pdu, itti.DispositionReleaseAfterSend)
}

func SendServiceReject(mme *context.MmeContext, ue *context.UeContext, cause uint8) error {
	ue.Emm.Log.Infof("send Service Reject, cause %d", cause)
	pdu, err := BuildServiceReject(ue, cause)
	if err != nil {
		ue.Emm.Log.Errorln(err.Error())
		return err
	}
	return deliver(mme, ue, "ServiceReject", pdu, itti.DispositionReleaseAfterSend)
}

// SendUnprotectedServiceReject is used when the UE could not be identified and
// may not hold the keys of the current security context.
func SendUnprotectedServiceReject(mme *context.MmeContext, ue *context.UeContext, cause uint8) error {
	ue.Emm.Log.Infof("send unprotected Service Reject, cause %d", cause)
	pdu, err := nasMessage.EncodePlain(&nasMessage.ServiceReject{EmmCause: cause})
	if err != nil {
		ue.Emm.Log.Errorln(err.Error())
		return err
	}
	return deliver(mme, ue, "ServiceReject", pdu, itti.DispositionReleaseAfterSend)
}

func SendUnprotectedTrackingAreaUpdateReject(mme *context.MmeContext, ue *context.UeContext, cause uint8) error {
	ue.Emm.Log.Infof("send unprotected Tracking Area Update Reject, cause %d", cause)
	pdu, err := nasMessage.EncodePlain(&nasMessage.TrackingAreaUpdateReject{EmmCause: cause})
	if err != nil {
		ue.Emm.Log.Errorln(err.Error())
		return err
	}
	return deliver(mme, ue, "TrackingAreaUpdateReject", pdu, itti.DispositionReleaseAfterSend)
}

func SendAuthenticationRequest(mme *context.MmeContext, ue *context.UeContext) error {
	ue.Emm.Log.Infoln("send Authentication Request")
	pdu, err := BuildAuthenticationRequest(ue)
	if err != nil {
		ue.Emm.Log.Errorln(err.Error())
		return err
	}
	if err := deliver(mme, ue, "AuthenticationRequest", pdu, itti.DispositionSuccess); err != nil {
		return err
	}
	arm(mme, ue, context.ProcedureAuthentication, context.T3460, mme.Configuration().T3460, pdu)
	return nil
}

func SendAuthenticationReject(mme *context.MmeContext, ue *context.UeContext) error {
	ue.Emm.Log.Infoln("send Authentication Reject")
	pdu, err := BuildAuthenticationReject(ue)
	if err != nil {
		ue.Emm.Log.Errorln(err.Error())
		return err
	}
	return deliver(mme, ue, "AuthenticationReject", pdu, itti.DispositionReleaseAfterSend)
}

func SendIdentityRequest(mme *context.MmeContext, ue *context.UeContext, identityType uint8) error {
	ue.Emm.Log.Infof("send Identity Request, type %d", identityType)
	pdu, err := BuildIdentityRequest(ue, identityType)
	if err != nil {
		ue.Emm.Log.Errorln(err.Error())
		return err
	}
	if err := deliver(mme, ue, "IdentityRequest", pdu, itti.DispositionSuccess); err != nil {
		return err
	}
	p := arm(mme, ue, context.ProcedureIdentification, context.T3470, mme.Configuration().T3470, pdu)
	p.Cause = identityType
	return nil
}

func SendSecurityModeCommand(mme *context.MmeContext, ue *context.UeContext) error {
	ue.Emm.Log.Infoln("send Security Mode Command")
	pdu, err := BuildSecurityModeCommand(ue)
	if err != nil {
		ue.Emm.Log.Errorln(err.Error())
		return err
	}
	if err := deliver(mme, ue, "SecurityModeCommand", pdu, itti.DispositionSuccess); err != nil {
		return err
	}
	arm(mme, ue, context.ProcedureSecurityMode, context.T3460, mme.Configuration().T3460, pdu)
	return nil
}

func SendEmmStatus(mme *context.MmeContext, ue *context.UeContext, cause uint8) error {
	ue.Emm.Log.Infof("send EMM Status, cause %d", cause)
	pdu, err := BuildEmmStatus(ue, cause)
	if err != nil {
		ue.Emm.Log.Errorln(err.Error())
		return err
	}
	return deliver(mme, ue, "EmmStatus", pdu, itti.DispositionSuccess)
}

func SendEmmInformation(mme *context.MmeContext, ue *context.UeContext) error {
	if mme.Configuration().NetworkName.Full == "" {
		return nil
	}
	ue.Emm.Log.Infoln("send EMM Information")
	pdu, err := BuildEmmInformation(mme, ue)
	if err != nil {
		ue.Emm.Log.Errorln(err.Error())
		return err
	}
	return deliver(mme, ue, "EmmInformation", pdu, itti.DispositionSuccess)
}

// Retransmit resends the PDU recorded for p unchanged.
func Retransmit(mme *context.MmeContext, ue *context.UeContext, p *context.Procedure) error {
	if len(p.Pdu) == 0 {
		return nil
	}
	return deliver(mme, ue, string(p.Type), p.Pdu, itti.DispositionSuccess)
}
