// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package emm

import (
	"strings"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/emm/message"
	"github.com/omec-project/mme/logger"
)

func procedureOf(ue *context.UeContext, t *context.Timer) *context.Procedure {
	for _, p := range ue.Emm.Procedures {
		if p.Timer == t {
			return p
		}
	}
	return nil
}

// HandleTimerExpiry retransmits the message guarded by an EMM timer, or
// aborts its procedure once the retransmissions are exhausted. Expiries of
// timers that were stopped meanwhile are ignored.
func HandleTimerExpiry(mme *context.MmeContext, exp context.TimerExpiry) error {
	ue, ok := mme.UeContextById(exp.UeId)
	if !ok {
		logger.EmmLog.Debugf("%s expired for unknown ue %d", exp.Name, exp.UeId)
		return nil
	}
	p := procedureOf(ue, exp.Timer)
	if p == nil || !mme.Timers.Active(exp.Timer) {
		ue.Emm.Log.Debugf("stale %s expiry ignored", exp.Name)
		return nil
	}
	if !exp.Final {
		ue.Emm.Log.Infof("%s expired, retransmission %d of %s", exp.Name, exp.Attempt, p.Type)
		return message.Retransmit(mme, ue, p)
	}

	ue.Emm.Log.Warnf("%s expired %d times, abort %s procedure", exp.Name, exp.Attempt, p.Type)
	mme.Timers.Stop(p.Timer)
	p.Timer = nil
	reason := strings.ToLower(exp.Name) + "_expiry"
	switch p.Type {
	case context.ProcedureTau:
		// both GUTIs stay valid until the UE uses one of them
		ue.Emm.StopProcedure(context.ProcedureTau, mme.Timers)
	case context.ProcedureNetworkDetach:
		completeNetworkDetach(mme, ue)
	case context.ProcedureAttach:
		return attachAbort(mme, ue, 0, reason)
	default:
		if _, attaching := ue.Emm.Procedure(context.ProcedureAttach); attaching {
			return attachAbort(mme, ue, 0, reason)
		}
		ue.Emm.StopProcedure(p.Type, mme.Timers)
		sendEvent(mme, ue, CommonProcedureFailEvent)
	}
	return nil
}
