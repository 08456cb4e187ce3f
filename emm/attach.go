// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package emm

import (
	"bytes"
	"fmt"

	"github.com/omec-project/mme/consumer"
	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/emm/message"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/metrics"
	"github.com/omec-project/mme/mmeapp"
	"github.com/omec-project/mme/nas/nasMessage"
	s1ap_message "github.com/omec-project/mme/s1ap/message"
)

// HandleAttachRequest stores the attach parameters and starts identifying
// and authenticating the UE. A registered UE is detached implicitly first.
func HandleAttachRequest(mme *context.MmeContext, ue *context.UeContext, req *nasMessage.AttachRequest) error {
	emm := ue.Emm
	emm.Log.Infof("handle Attach Request, attach type %d, identity type %d",
		req.EpsAttachType, req.EpsMobileIdentity.Type)

	if emm.State.Is(context.Registered) {
		emm.Log.Infoln("attach request from a registered UE, detaching implicitly")
		metrics.IncrementCounter("ue_detach", metrics.Label{Key: "cause", Value: "implicit_detach"})
		mmeapp.ReleasePdnSessions(mme, ue)
		sendEvent(mme, ue, DetachSuccessEvent)
	}

	emm.ClearProcedures(mme.Timers)
	emm.AttachType = req.EpsAttachType
	emm.UeNetworkCapability = req.UeNetworkCapability
	emm.DrxParameter = req.DrxParameter
	if req.LastVisitedRegisteredTai != nil {
		emm.LastVisitedTai.Set(*req.LastVisitedRegisteredTai)
	}
	emm.PendingEsmMessage = req.EsmMessageContainer
	emm.Csfb = context.CsfbParameters{}
	if req.AdditionalUpdateType != nil {
		emm.Csfb.AdditionalUpdateType.Set(*req.AdditionalUpdateType)
	}
	if req.VoiceDomainPreference != nil {
		emm.Csfb.VoiceDomainPreference.Set(req.VoiceDomainPreference)
	}
	if req.MsNetworkCapability != nil {
		emm.Csfb.MsNetworkCapability.Set(req.MsNetworkCapability)
	}
	emm.Detach = context.DetachFlags{}
	ue.DestroyOnRelease = false
	emm.StartProcedure(context.ProcedureAttach, mme.Timers)
	mme.MarkDirty(ue.UeId)

	switch id := req.EpsMobileIdentity; id.Type {
	case nasMessage.MobileIdentityTypeImsi:
		bindImsi(mme, ue, id.Digits)
	case nasMessage.EpsMobileIdentityTypeGuti:
		if id.Guti == nil {
			return attachAbort(mme, ue, nasMessage.Cause96InvalidMandatoryInformation, "invalid_identity")
		}
		if known, ok := mme.UeContextByGuti(*id.Guti); ok && known.UeId != ue.UeId {
			if imsi, present := mme.ImsiOf(known.UeId); present {
				bindImsi(mme, ue, imsi)
			}
		} else if !ok {
			mme.BindGuti(ue, *id.Guti)
		}
	case nasMessage.EpsMobileIdentityTypeImei:
		emm.Imei.Set(id.Digits)
	}

	if !emm.Imsi.IsPresent() {
		return startIdentification(mme, ue)
	}
	return startAuthentication(mme, ue, nil)
}

// bindImsi records the IMSI and detaches any other context that held it.
func bindImsi(mme *context.MmeContext, ue *context.UeContext, imsi string) {
	if previous, ok := mme.BindImsi(ue, imsi); ok {
		ue.Emm.Log.Infof("imsi was held by ue %d, detaching it", previous.UeId)
		mmeapp.RequestImplicitDetach(mme, previous, context.S1apCauseNasNormalRelease)
	}
}

func startIdentification(mme *context.MmeContext, ue *context.UeContext) error {
	sendEvent(mme, ue, CommonProcedureStartEvent)
	return message.SendIdentityRequest(mme, ue, nasMessage.MobileIdentityTypeImsi)
}

func startAuthentication(mme *context.MmeContext, ue *context.UeContext, resyncInfo []byte) error {
	sendEvent(mme, ue, CommonProcedureStartEvent)
	ue.Emm.StartProcedure(context.ProcedureAuthentication, mme.Timers)
	if err := consumer.SendAuthenticationInfoRequest(mme, ue, resyncInfo); err != nil {
		abortErr := attachAbort(mme, ue, nasMessage.Cause17NetworkFailure, "hss_unreachable")
		if abortErr != nil {
			ue.Emm.Log.Errorln(abortErr)
		}
		return fmt.Errorf("authentication information request: %w", err)
	}
	return nil
}

// abortCommonProcedures stops identification, authentication and security
// mode control and returns the UE to EMM-DEREGISTERED.
func abortCommonProcedures(mme *context.MmeContext, ue *context.UeContext) {
	for _, t := range []context.ProcedureType{
		context.ProcedureIdentification,
		context.ProcedureAuthentication,
		context.ProcedureSecurityMode,
	} {
		ue.Emm.StopProcedure(t, mme.Timers)
	}
	sendEvent(mme, ue, CommonProcedureFailEvent)
}

// attachAbort ends an attach attempt. A non zero cause is reported to the UE
// in an attach reject. The UE context is then torn down.
func attachAbort(mme *context.MmeContext, ue *context.UeContext, cause uint8, reason string) error {
	ue.Emm.Log.Infof("attach aborted: %s", reason)
	metrics.IncrementCounter("ue_attach",
		metrics.Label{Key: "result", Value: "failure"},
		metrics.Label{Key: "cause", Value: reason})

	var err error
	if cause != 0 {
		err = message.SendAttachReject(mme, ue, cause, nil)
	}
	ue.Emm.ClearProcedures(mme.Timers)
	sendEvent(mme, ue, DetachSuccessEvent)
	mmeapp.HandleDetachRequest(mme, ue, context.S1apCauseNasNormalRelease)
	return err
}

func HandleIdentityResponse(mme *context.MmeContext, ue *context.UeContext, rsp *nasMessage.IdentityResponse) error {
	emm := ue.Emm
	p, ok := emm.Procedure(context.ProcedureIdentification)
	if !ok {
		emm.Log.Warnln("identity response without identification procedure")
		return nil
	}
	requested := p.Cause
	emm.StopProcedure(context.ProcedureIdentification, mme.Timers)

	id := rsp.MobileIdentity
	emm.Log.Infof("handle Identity Response, type %d", id.Type)
	switch id.Type {
	case nasMessage.MobileIdentityTypeImsi:
		bindImsi(mme, ue, id.Digits)
	case nasMessage.MobileIdentityTypeImei:
		emm.Imei.Set(id.Digits)
	case nasMessage.MobileIdentityTypeImeisv:
		emm.Imeisv.Set(id.Digits)
	}
	if requested == nasMessage.MobileIdentityTypeImsi && !emm.Imsi.IsPresent() {
		return attachAbort(mme, ue, nasMessage.Cause96InvalidMandatoryInformation, "identity_mismatch")
	}
	if _, attaching := emm.Procedure(context.ProcedureAttach); attaching {
		return startAuthentication(mme, ue, nil)
	}
	sendEvent(mme, ue, CommonProcedureSuccessEvent)
	return nil
}

// HandleAuthInfoAnswer continues authentication with the vector from the HSS.
func HandleAuthInfoAnswer(mme *context.MmeContext, ans *itti.AuthInfoAnswer) error {
	ue, ok := mme.UeContextById(ans.UeId)
	if !ok {
		return fmt.Errorf("authentication information answer for unknown ue %d", ans.UeId)
	}
	if _, ok := ue.Emm.Procedure(context.ProcedureAuthentication); !ok {
		ue.Emm.Log.Warnln("authentication information answer without authentication procedure")
		return nil
	}
	if ans.Result != itti.ResultSuccess || len(ans.Vectors) == 0 {
		ue.Emm.Log.Warnf("authentication information answer, result %d", ans.Result)
		if ans.Result == itti.ResultUserUnknown {
			return attachAbort(mme, ue, nasMessage.Cause8EpsAndNonEpsServicesNotAllowed, "user_unknown")
		}
		return attachAbort(mme, ue, nasMessage.Cause17NetworkFailure, "authentication_info_failure")
	}

	v := ans.Vectors[0]
	if len(v.Rand) != 16 || len(v.Kasme) != 32 {
		return attachAbort(mme, ue, nasMessage.Cause17NetworkFailure, "invalid_vector")
	}
	vector := &context.AuthVector{Xres: v.Xres, Autn: v.Autn, Kasme: v.Kasme}
	copy(vector.Rand[:], v.Rand)
	ue.Emm.NewNonCurrentSecurityContext(context.NewSecurityContext(ue.Emm.NextKsi(), vector))
	return message.SendAuthenticationRequest(mme, ue)
}

func HandleAuthenticationResponse(mme *context.MmeContext, ue *context.UeContext,
	rsp *nasMessage.AuthenticationResponse,
) error {
	emm := ue.Emm
	if _, ok := emm.Procedure(context.ProcedureAuthentication); !ok {
		emm.Log.Warnln("authentication response without authentication procedure")
		return nil
	}
	emm.StopProcedure(context.ProcedureAuthentication, mme.Timers)
	sc := emm.NonCurrentSecurityContext
	if sc == nil || sc.Vector == nil {
		return attachAbort(mme, ue, nasMessage.Cause111ProtocolErrorUnspecified, "no_authentication_vector")
	}

	if len(rsp.Res) == 0 || !bytes.Equal(rsp.Res, sc.Vector.Xres) {
		emm.Log.Warnln("authentication response does not match XRES")
		metrics.IncrementCounter("nas_auth_rsp", metrics.Label{Key: "result", Value: "failure"})
		return authenticationReject(mme, ue)
	}
	metrics.IncrementCounter("nas_auth_rsp", metrics.Label{Key: "result", Value: "success"})
	emm.PromoteSecurityContext()
	return startSecurityMode(mme, ue)
}

func authenticationReject(mme *context.MmeContext, ue *context.UeContext) error {
	err := message.SendAuthenticationReject(mme, ue)
	if abortErr := attachAbort(mme, ue, 0, "authentication_rejected"); abortErr != nil && err == nil {
		err = abortErr
	}
	return err
}

// HandleAuthenticationFailure resynchronises once on a synch failure and
// re-identifies the UE once on a MAC failure before giving up.
func HandleAuthenticationFailure(mme *context.MmeContext, ue *context.UeContext,
	f *nasMessage.AuthenticationFailure,
) error {
	emm := ue.Emm
	if _, ok := emm.Procedure(context.ProcedureAuthentication); !ok {
		emm.Log.Warnln("authentication failure without authentication procedure")
		return nil
	}
	emm.StopProcedure(context.ProcedureAuthentication, mme.Timers)
	emm.Log.Infof("handle Authentication Failure, cause %d", f.EmmCause)
	metrics.IncrementCounter("nas_auth_rsp", metrics.Label{Key: "result", Value: "failure"})

	attach, attaching := emm.Procedure(context.ProcedureAttach)
	switch f.EmmCause {
	case nasMessage.Cause21SynchFailure:
		sc := emm.NonCurrentSecurityContext
		if !attaching || attach.Retries > 0 || len(f.AuthenticationFailureParameter) != 14 ||
			sc == nil || sc.Vector == nil {
			return authenticationReject(mme, ue)
		}
		attach.Retries++
		resync := append(sc.Vector.Rand[:], f.AuthenticationFailureParameter...)
		return startAuthentication(mme, ue, resync)
	case nasMessage.Cause20MacFailure, nasMessage.Cause26NonEpsAuthenticationUnacceptable:
		if !attaching || attach.Retries > 0 {
			return authenticationReject(mme, ue)
		}
		attach.Retries++
		return startIdentification(mme, ue)
	default:
		return attachAbort(mme, ue, nasMessage.Cause111ProtocolErrorUnspecified, "authentication_failure")
	}
}

func startSecurityMode(mme *context.MmeContext, ue *context.UeContext) error {
	sc := ue.Emm.SecurityContext
	err := sc.SelectAlgorithms(ue.Emm.UeNetworkCapability, mme.CipheringOrder(), mme.IntegrityOrder())
	if err != nil {
		ue.Emm.Log.Warnf("select algorithms: %v", err)
		return attachAbort(mme, ue, nasMessage.Cause23UeSecurityCapabilitiesMismatch,
			"ue_security_capabilities_mismatch")
	}
	if err := sc.DeriveNasKeys(); err != nil {
		ue.Emm.Log.Errorf("derive nas keys: %v", err)
		return attachAbort(mme, ue, nasMessage.Cause111ProtocolErrorUnspecified, "key_derivation_failure")
	}
	sc.Activated = false
	sc.ResetCounts()
	return message.SendSecurityModeCommand(mme, ue)
}

func HandleSecurityModeComplete(mme *context.MmeContext, ue *context.UeContext,
	msg *nasMessage.SecurityModeComplete,
) error {
	emm := ue.Emm
	if _, ok := emm.Procedure(context.ProcedureSecurityMode); !ok {
		emm.Log.Warnln("security mode complete without security mode procedure")
		return nil
	}
	emm.StopProcedure(context.ProcedureSecurityMode, mme.Timers)
	emm.SecurityContext.Activated = true
	if msg.Imeisv != nil && msg.Imeisv.Type == nasMessage.MobileIdentityTypeImeisv {
		emm.Imeisv.Set(msg.Imeisv.Digits)
	}
	metrics.IncrementCounter("nas_security_mode_command", metrics.Label{Key: "result", Value: "success"})
	sendEvent(mme, ue, CommonProcedureSuccessEvent)
	mme.MarkDirty(ue.UeId)

	if _, attaching := emm.Procedure(context.ProcedureAttach); attaching {
		return createDefaultSession(mme, ue)
	}
	return nil
}

func HandleSecurityModeReject(mme *context.MmeContext, ue *context.UeContext,
	msg *nasMessage.SecurityModeReject,
) error {
	emm := ue.Emm
	if _, ok := emm.Procedure(context.ProcedureSecurityMode); !ok {
		emm.Log.Warnln("security mode reject without security mode procedure")
		return nil
	}
	emm.Log.Infof("handle Security Mode Reject, cause %d", msg.EmmCause)
	emm.StopProcedure(context.ProcedureSecurityMode, mme.Timers)
	metrics.IncrementCounter("nas_security_mode_command", metrics.Label{Key: "result", Value: "failure"})
	return attachAbort(mme, ue, 0, "security_mode_rejected")
}

// createDefaultSession asks the gateway for the default bearer requested by
// the PDN connectivity request carried in the attach request.
func createDefaultSession(mme *context.MmeContext, ue *context.UeContext) error {
	ebi, err := ue.AllocateEbi()
	if err != nil {
		return attachAbort(mme, ue, nasMessage.Cause19EsmFailure, "no_bearer_identity")
	}
	s := context.NewPdnSession(ebi, "")
	ue.AddPdnSession(s)
	if err := consumer.SendCreateSessionRequest(mme, ue, s, ue.Emm.PendingEsmMessage); err != nil {
		ue.RemovePdnSession(ebi)
		ue.Emm.Log.Errorf("create session request: %v", err)
		return attachAbort(mme, ue, nasMessage.Cause17NetworkFailure, "gateway_unreachable")
	}
	mme.MarkDirty(ue.UeId)
	return nil
}

// HandleCreateSessionResponse completes the default bearer of an attach with
// an attach accept, or brings up an additional bearer of a registered UE.
func HandleCreateSessionResponse(mme *context.MmeContext, rsp *itti.CreateSessionResponse) error {
	ue, ok := mme.UeContextById(rsp.UeId)
	if !ok {
		return fmt.Errorf("create session response for unknown ue %d", rsp.UeId)
	}
	s, ok := ue.PdnSessions[rsp.Ebi]
	if !ok || s.State != context.PdnSessionCreating {
		ue.Log.Warnf("unexpected create session response, ebi %d", rsp.Ebi)
		return nil
	}
	_, attaching := ue.Emm.Procedure(context.ProcedureAttach)
	if rsp.Cause != itti.ResultSuccess {
		ue.Log.Warnf("create session ebi %d failed with cause %d", rsp.Ebi, rsp.Cause)
		ue.RemovePdnSession(rsp.Ebi)
		mme.MarkDirty(ue.UeId)
		if attaching {
			return attachAbort(mme, ue, nasMessage.Cause19EsmFailure, "esm_failure")
		}
		return nil
	}

	s.State = context.PdnSessionActive
	s.SgwTeid = rsp.SgwTeid
	s.Address = rsp.PdnAddress
	if rsp.Apn != "" {
		s.Apn = rsp.Apn
	}
	mme.MarkDirty(ue.UeId)

	switch {
	case attaching:
		return acceptAttach(mme, ue, rsp.EsmContainer)
	case ue.Emm.State.Is(context.Registered) && ue.IsConnected():
		pdu, err := message.ProtectPdu(ue, rsp.EsmContainer)
		if err != nil {
			return err
		}
		return s1ap_message.SendErabSetupRequest(mme, ue, s, pdu)
	}
	return nil
}

func acceptAttach(mme *context.MmeContext, ue *context.UeContext, esmContainer []byte) error {
	if _, err := mme.AllocateGuti(ue); err != nil {
		ue.Emm.Log.Errorf("allocate guti: %v", err)
		return attachAbort(mme, ue, nasMessage.Cause17NetworkFailure, "guti_allocation_failure")
	}
	ue.Emm.TaiList = taiListFor(mme, ue)
	if err := ue.Emm.SecurityContext.DeriveKenb(); err != nil {
		ue.Emm.Log.Errorf("derive KeNB: %v", err)
		return attachAbort(mme, ue, nasMessage.Cause17NetworkFailure, "key_derivation_failure")
	}
	if ue.Emm.IsCombinedAttach() && mme.Configuration().CsfbSmsSupported() {
		ue.Emm.Csfb.SgsAssociated = true
	}
	return message.SendAttachAccept(mme, ue, esmContainer)
}

// taiListFor lists the served TAIs of the PLMN the UE is camping on, or only
// the current TAI when it is not among them.
func taiListFor(mme *context.MmeContext, ue *context.UeContext) nasMessage.TaiList {
	list := nasMessage.TaiList{}
	current := false
	for _, tai := range mme.SupportTaiList {
		if tai.PlmnId != ue.Tai.PlmnId {
			continue
		}
		if tai == ue.Tai {
			current = true
		}
		list = append(list, tai)
	}
	if !current {
		return nasMessage.TaiList{ue.Tai}
	}
	return list
}

func HandleAttachComplete(mme *context.MmeContext, ue *context.UeContext, msg *nasMessage.AttachComplete) error {
	emm := ue.Emm
	if _, ok := emm.Procedure(context.ProcedureAttach); !ok {
		emm.Log.Warnln("attach complete without attach procedure")
		return nil
	}
	emm.Log.Infoln("handle Attach Complete")
	emm.StopProcedure(context.ProcedureAttach, mme.Timers)
	mme.ReleaseOldGuti(ue)
	emm.PendingEsmMessage = nil
	sendEvent(mme, ue, AttachSuccessEvent)
	metrics.IncrementCounter("ue_attach",
		metrics.Label{Key: "result", Value: "attach_proc_successful"})
	ue.PublishUeCtxtInfo(mme.NfId)
	if len(msg.EsmMessageContainer) > 0 {
		emm.Log.Debugf("activate default bearer accept, %d bytes", len(msg.EsmMessageContainer))
	}
	return message.SendEmmInformation(mme, ue)
}
