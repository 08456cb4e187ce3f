// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

// Package emm implements the EPS mobility management procedures of the MME
// on top of a per UE state machine.
package emm

import (
	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/logger"
	"github.com/omec-project/mme/nas/nasMessage"
	"github.com/omec-project/mme/nas/nas_security"
	"github.com/omec-project/util/fsm"
)

const (
	EmmMessageEvent             fsm.EventType = "Emm Message"
	CommonProcedureStartEvent   fsm.EventType = "Common Procedure Start"
	CommonProcedureSuccessEvent fsm.EventType = "Common Procedure Success"
	CommonProcedureFailEvent    fsm.EventType = "Common Procedure Fail"
	AttachSuccessEvent          fsm.EventType = "Attach Success"
	NetworkDetachInitiatedEvent fsm.EventType = "Network Detach Initiated"
	DetachSuccessEvent          fsm.EventType = "Detach Success"
)

const (
	ArgMme          string = "MME Context"
	ArgUeContext    string = "UE Context"
	ArgNasMessage   string = "NAS Message"
	ArgDecodeStatus string = "Decode Status"
)

var transitions = fsm.Transitions{
	{Event: EmmMessageEvent, From: context.Deregistered, To: context.Deregistered},
	{Event: EmmMessageEvent, From: context.CommonProcedureInitiated, To: context.CommonProcedureInitiated},
	{Event: EmmMessageEvent, From: context.Registered, To: context.Registered},
	{Event: EmmMessageEvent, From: context.DeregistrationInitiated, To: context.DeregistrationInitiated},
	{Event: CommonProcedureStartEvent, From: context.Deregistered, To: context.CommonProcedureInitiated},
	{Event: CommonProcedureStartEvent, From: context.CommonProcedureInitiated, To: context.CommonProcedureInitiated},
	{Event: CommonProcedureStartEvent, From: context.Registered, To: context.Registered},
	{Event: CommonProcedureSuccessEvent, From: context.CommonProcedureInitiated, To: context.Deregistered},
	{Event: CommonProcedureSuccessEvent, From: context.Registered, To: context.Registered},
	{Event: CommonProcedureFailEvent, From: context.CommonProcedureInitiated, To: context.Deregistered},
	{Event: CommonProcedureFailEvent, From: context.Registered, To: context.Registered},
	{Event: AttachSuccessEvent, From: context.Deregistered, To: context.Registered},
	{Event: NetworkDetachInitiatedEvent, From: context.Registered, To: context.DeregistrationInitiated},
	{Event: DetachSuccessEvent, From: context.Deregistered, To: context.Deregistered},
	{Event: DetachSuccessEvent, From: context.CommonProcedureInitiated, To: context.Deregistered},
	{Event: DetachSuccessEvent, From: context.Registered, To: context.Deregistered},
	{Event: DetachSuccessEvent, From: context.DeregistrationInitiated, To: context.Deregistered},
}

var callbacks = fsm.Callbacks{
	context.Deregistered:             Deregistered,
	context.CommonProcedureInitiated: CommonProcedureInitiated,
	context.Registered:               Registered,
	context.DeregistrationInitiated:  DeregistrationInitiated,
}

var EmmFSM *fsm.FSM

func init() {
	if f, err := fsm.NewFSM(transitions, callbacks); err != nil {
		logger.EmmLog.Errorf("Initialize Emm FSM Error: %+v", err)
	} else {
		EmmFSM = f
	}
}

// Dispatch feeds one decoded EMM message into the state machine of ue.
func Dispatch(mme *context.MmeContext, ue *context.UeContext, msg *nasMessage.Message,
	status nas_security.DecodeStatus,
) error {
	return EmmFSM.SendEvent(ue.Emm.State, EmmMessageEvent, fsm.ArgsType{
		ArgMme:          mme,
		ArgUeContext:    ue,
		ArgNasMessage:   msg,
		ArgDecodeStatus: status,
	})
}

func sendEvent(mme *context.MmeContext, ue *context.UeContext, event fsm.EventType) {
	err := EmmFSM.SendEvent(ue.Emm.State, event, fsm.ArgsType{
		ArgMme:       mme,
		ArgUeContext: ue,
	})
	if err != nil {
		ue.Emm.Log.Errorln(err)
	}
}
