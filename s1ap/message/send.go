// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

// Package message builds the S1AP requests the MME hands to the S1AP task.
// ASN.1 encoding towards the eNB happens in that task; here each request is
// an ITTI message on the bus.
package message

import (
	ctxt "context"
	"fmt"
	"time"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/logger"
)

const sendTimeout = 3 * time.Second

func send(mme *context.MmeContext, msg itti.Message) error {
	if mme.Bus == nil {
		return fmt.Errorf("no itti bus for %s", msg.MessageType())
	}
	ctx, cancel := ctxt.WithTimeout(ctxt.Background(), sendTimeout)
	defer cancel()
	if err := mme.Bus.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.MessageType(), err)
	}
	return nil
}

// SendDownlinkNasTransport hands an encoded NAS PDU to the eNB. The
// disposition tells S1AP whether to release the signalling connection after
// delivery.
func SendDownlinkNasTransport(mme *context.MmeContext, ue *context.UeContext, nasPdu []byte,
	disposition itti.Disposition,
) error {
	if ue == nil {
		logger.AsLog.Errorln("ue context is nil")
		return fmt.Errorf("ue context is nil")
	}
	if len(nasPdu) == 0 {
		ue.Log.Errorln("nas pdu is empty")
		return fmt.Errorf("nas pdu is empty")
	}
	ue.Log.Infof("send Downlink Nas Transport (%s)", disposition)
	if disposition != itti.DispositionSuccess {
		ue.ReleasePending = true
	}
	return send(mme, &itti.DownlinkNasTransport{
		UeId:        ue.UeId,
		EnbUeS1apId: ue.EnbUeS1apId,
		NasPdu:      nasPdu,
		Disposition: disposition,
	})
}

// SendInitialContextSetupRequest establishes the UE context at the eNB with
// the current KeNB, one E-RAB per active PDN session and an optional NAS PDU.
func SendInitialContextSetupRequest(mme *context.MmeContext, ue *context.UeContext, nasPdu []byte) error {
	if ue == nil {
		logger.AsLog.Errorln("ue context is nil")
		return fmt.Errorf("ue context is nil")
	}
	sc := ue.Emm.SecurityContext
	if sc == nil || len(sc.Kenb) == 0 {
		return fmt.Errorf("no KeNB for %s", ue)
	}
	ue.Log.Infoln("send Initial Context Setup Request")

	req := &itti.InitialContextSetupRequest{
		UeId:                 ue.UeId,
		EnbUeS1apId:          ue.EnbUeS1apId,
		Kenb:                 append([]byte(nil), sc.Kenb...),
		UeSecurityCapability: ue.Emm.UeNetworkCapability.ReplayedSecurityCapabilities(),
		NasPdu:               nasPdu,
	}
	for _, s := range ue.SortedPdnSessions() {
		if !s.IsActive() {
			continue
		}
		req.Erabs = append(req.Erabs, itti.ErabToSetup{Ebi: s.Ebi, SgwTeid: s.SgwTeid})
	}
	return send(mme, req)
}

// SendUeContextReleaseCommand asks the eNB to release the UE context. The
// cause is remembered so the release complete can be matched to it.
func SendUeContextReleaseCommand(mme *context.MmeContext, ue *context.UeContext, cause context.S1apCause) error {
	if ue == nil {
		logger.AsLog.Errorln("ue context is nil")
		return fmt.Errorf("ue context is nil")
	}
	ue.Log.Infof("send UE Context Release Command, cause %s", cause)
	ue.ReleaseCause = cause
	ue.ReleasePending = true
	return send(mme, &itti.UeContextReleaseCommand{
		UeId:        ue.UeId,
		EnbUeS1apId: ue.EnbUeS1apId,
		Cause:       cause.String(),
	})
}

func SendErabSetupRequest(mme *context.MmeContext, ue *context.UeContext, session *context.PdnSession,
	nasPdu []byte,
) error {
	if ue == nil || session == nil {
		return fmt.Errorf("ue context or pdn session is nil")
	}
	ue.Log.Infof("send E-RAB Setup Request, ebi %d", session.Ebi)
	return send(mme, &itti.ErabSetupRequest{
		UeId:        ue.UeId,
		EnbUeS1apId: ue.EnbUeS1apId,
		Erab:        itti.ErabToSetup{Ebi: session.Ebi, SgwTeid: session.SgwTeid, NasPdu: nasPdu},
	})
}
