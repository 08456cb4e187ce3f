// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package emm

import (
	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/emm/message"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/metrics"
	"github.com/omec-project/mme/mmeapp"
	"github.com/omec-project/mme/nas/nasMessage"
)

// HandleDetachRequest handles a UE originating detach. An IMSI detach only
// drops the SGs association; any other type detaches the UE for EPS.
func HandleDetachRequest(mme *context.MmeContext, ue *context.UeContext, req *nasMessage.DetachRequest) error {
	emm := ue.Emm
	detachType := req.DetachType & 0x07
	switchOff := req.SwitchOff()
	emm.Log.Infof("handle Detach Request, type %d, switch off %t", detachType, switchOff)
	metrics.IncrementCounter("ue_detach", metrics.Label{Key: "cause", Value: "ue_initiated"})

	emm.Detach = context.DetachFlags{DetachType: detachType, SwitchOff: switchOff}
	if detachType == nasMessage.DetachTypeImsi && emm.State.Is(context.Registered) {
		emm.Detach.ImsiOnly = true
		emm.Csfb.SgsAssociated = false
		mme.MarkDirty(ue.UeId)
		if switchOff {
			return nil
		}
		return message.SendDetachAccept(mme, ue, itti.DispositionSuccess)
	}

	var err error
	if !switchOff {
		err = message.SendDetachAccept(mme, ue, itti.DispositionSuccess)
	}
	emm.ClearProcedures(mme.Timers)
	sendEvent(mme, ue, DetachSuccessEvent)
	mmeapp.HandleDetachRequest(mme, ue, context.S1apCauseNasDetach)
	return err
}

// NetworkDetach detaches a registered UE from the network side. A UE that
// cannot be reached without paging is detached locally.
func NetworkDetach(mme *context.MmeContext, ue *context.UeContext, reattachRequired bool) error {
	emm := ue.Emm
	metrics.IncrementCounter("ue_detach", metrics.Label{Key: "cause", Value: "network_initiated"})
	if !emm.State.Is(context.Registered) || !ue.IsConnected() {
		emm.Log.Infof("local detach in state %s, %s", emm.State.Current(), ue.EcmState)
		emm.ClearProcedures(mme.Timers)
		sendEvent(mme, ue, DetachSuccessEvent)
		mmeapp.HandleDetachRequest(mme, ue, context.S1apCauseNasDetach)
		return nil
	}

	detachType := nasMessage.DetachTypeReattachNotRequired
	if reattachRequired {
		detachType = nasMessage.DetachTypeReattachRequired
	}
	emm.Detach = context.DetachFlags{
		DetachType:        detachType,
		NetworkInitiated:  true,
		ReattachRequested: reattachRequired,
	}
	sendEvent(mme, ue, NetworkDetachInitiatedEvent)
	return message.SendDetachRequest(mme, ue, detachType, 0)
}

func HandleDetachAccept(mme *context.MmeContext, ue *context.UeContext, _ *nasMessage.DetachAccept) error {
	if _, ok := ue.Emm.Procedure(context.ProcedureNetworkDetach); !ok {
		ue.Emm.Log.Warnln("detach accept without network detach procedure")
		return nil
	}
	ue.Emm.Log.Infoln("handle Detach Accept")
	completeNetworkDetach(mme, ue)
	return nil
}

func completeNetworkDetach(mme *context.MmeContext, ue *context.UeContext) {
	ue.Emm.ClearProcedures(mme.Timers)
	sendEvent(mme, ue, DetachSuccessEvent)
	mmeapp.HandleDetachRequest(mme, ue, context.S1apCauseNasDetach)
}
